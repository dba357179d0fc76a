// Package metrics provides observability hooks for spark render passes.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics code never needs nil checks:
//
//	r := build.New(root, host) // records nothing
//	r = build.New(root, host, build.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The serve command exposes the registry on /metrics through HTTPHandler.
package metrics
