// Package metrics provides the observability hooks for docstream runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	gen := pipeline.NewGenerator(pipeline.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The Prometheus implementation registers its collectors once on the supplied
// registry; HTTPHandler exposes that registry on /metrics.
package metrics
