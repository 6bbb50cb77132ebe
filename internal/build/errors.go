package build

import "errors"

// Sentinel errors for requests that never reach plugin registration.
// They are always wrapped in a SpecBuilderError by Run.
var (
	ErrConfigRequired = errors.New("specbuilder: config required")
	ErrNoPlugins      = errors.New("specbuilder: no plugins configured")
)
