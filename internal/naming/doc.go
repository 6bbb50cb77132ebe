// Package naming resolves logical output requests into physical paths and
// identifier-safe names.
//
// Everything here is a pure function of its inputs. Plugins wrap a Resolver in
// their resolvePath/resolveName hooks; the plugin registry falls back to
// CamelCase when no plugin provides a name resolver.
package naming
