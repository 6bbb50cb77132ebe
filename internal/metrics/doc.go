// Package metrics provides build and hook metrics for specbuilder.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics stay optional without nil checks at call sites:
//
//	svc := build.NewService().WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// The watch command serves the registry through HTTPHandler when
// metrics.listen is configured.
package metrics
