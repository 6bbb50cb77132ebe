package errors

// Convenience functions for common error patterns

// Config errors

func ConfigNotFound(path string) *SpecBuilderError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigInvalid(cause error) *SpecBuilderError {
	return Wrap(cause, CategoryConfig, SeverityFatal, "invalid configuration")
}

// Registration errors are detected before any hook runs.

func RegistrationFailed(cause error) *SpecBuilderError {
	return Wrap(cause, CategoryValidation, SeverityFatal, "plugin registration failed")
}

func ValidationFailed(field, reason string) *SpecBuilderError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Lifecycle errors

func HookFailed(plugin, hook string, cause error) *SpecBuilderError {
	return Wrap(cause, CategoryPlugin, SeverityFatal, "plugin hook failed").
		WithContext("plugin", plugin).
		WithContext("hook", hook)
}

func BuildVetoed(cause error) *SpecBuilderError {
	return Wrap(cause, CategoryValidation, SeverityFatal, "build vetoed by plugin")
}

func BuildCanceled(cause error) *SpecBuilderError {
	return Wrap(cause, CategoryCanceled, SeverityError, "build canceled")
}

func OutputWriteFailed(path string, cause error) *SpecBuilderError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "writing output failed").
		WithContext("path", path)
}

// Input errors

func InputFetchFailed(location string, cause error) *SpecBuilderError {
	return Wrap(cause, CategoryInput, SeverityFatal, "loading API description failed").
		WithContext("input", location)
}

func GitCloneError(repo string, cause error) *SpecBuilderError {
	return Wrap(cause, CategoryGit, SeverityFatal, "repository clone failed").
		WithContext("repository", repo)
}

func NetworkTimeout(url string, cause error) *SpecBuilderError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "network timeout").
		WithContext("url", url)
}

// Internal errors

func InternalError(message string, cause error) *SpecBuilderError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
