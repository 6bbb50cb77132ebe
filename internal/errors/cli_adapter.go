package errors

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// CLIErrorAdapter handles error presentation and exit code determination for CLI applications.
type CLIErrorAdapter struct {
	verbose bool
	logger  *slog.Logger
	out     io.Writer
	exit    func(int)
}

// NewCLIErrorAdapter creates a new CLI error adapter.
func NewCLIErrorAdapter(verbose bool, logger *slog.Logger) *CLIErrorAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CLIErrorAdapter{
		verbose: verbose,
		logger:  logger,
		out:     os.Stderr,
		exit:    os.Exit,
	}
}

// ExitCodeFor determines the appropriate exit code for an error.
func (a *CLIErrorAdapter) ExitCodeFor(err error) int {
	if err == nil {
		return 0
	}

	if sbe, ok := As(err); ok {
		return exitCodeFromCategory(sbe.Category)
	}

	return 1
}

func exitCodeFromCategory(c ErrorCategory) int {
	switch c {
	case CategoryValidation:
		return 2 // Invalid usage or plugin set
	case CategoryConfig:
		return 7 // Configuration error
	case CategoryInput, CategoryNetwork, CategoryGit:
		return 8 // External system error
	case CategoryInternal:
		return 10 // Internal error
	case CategoryPlugin, CategoryFileSystem:
		return 11 // Build error
	case CategoryRuntime:
		return 12 // Runtime error
	case CategoryCanceled:
		return 130 // Interrupted
	default:
		return 1 // General error
	}
}

// FormatError formats an error for user-friendly display.
func (a *CLIErrorAdapter) FormatError(err error) string {
	if err == nil {
		return ""
	}

	sbe, ok := As(err)
	if !ok {
		return fmt.Sprintf("Error: %v", err)
	}
	if a.verbose {
		return sbe.Error()
	}

	switch sbe.Category {
	case CategoryConfig, CategoryValidation:
		if sbe.Cause != nil {
			return fmt.Sprintf("%s: %v", sbe.Message, sbe.Cause)
		}
		return sbe.Message
	case CategoryPlugin:
		return fmt.Sprintf("%s: %v", sbe.Message, sbe.Cause)
	default:
		return fmt.Sprintf("%s: %s", sbe.Category, sbe.Message)
	}
}

// HandleError processes an error and exits the program with appropriate code.
func (a *CLIErrorAdapter) HandleError(err error) {
	if err == nil {
		return
	}

	if a.shouldLog(err) {
		a.logError(err)
	}

	_, _ = fmt.Fprintf(a.out, "%s\n", a.FormatError(err))
	a.exit(a.ExitCodeFor(err))
}

func (a *CLIErrorAdapter) shouldLog(err error) bool {
	if a.verbose {
		return true
	}

	if sbe, ok := As(err); ok {
		return sbe.Category == CategoryInternal ||
			sbe.Category == CategoryRuntime ||
			sbe.Severity == SeverityFatal
	}

	return true
}

func (a *CLIErrorAdapter) logError(err error) {
	sbe, ok := As(err)
	if !ok {
		a.logger.Error("Unclassified error", "error", err)
		return
	}

	attrs := []slog.Attr{slog.String("category", string(sbe.Category))}
	for k, v := range sbe.Context {
		attrs = append(attrs, slog.Any(k, v))
	}
	if sbe.Retryable {
		attrs = append(attrs, slog.Bool("retryable", true))
	}
	if sbe.Cause != nil {
		attrs = append(attrs, slog.String("error", sbe.Cause.Error()))
	}
	a.logger.LogAttrs(context.Background(), slogLevelFromSeverity(sbe.Severity), sbe.Message, attrs...)
}

func slogLevelFromSeverity(severity ErrorSeverity) slog.Level {
	switch severity {
	case SeverityInfo:
		return slog.LevelInfo
	case SeverityWarning:
		return slog.LevelWarn
	default:
		return slog.LevelError
	}
}
