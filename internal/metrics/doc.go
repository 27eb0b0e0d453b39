// Package metrics provides observability hooks for toc resolution.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics cost nothing unless enabled:
//
//	svc := toc.NewService(opts, toc.WithRecorder(metrics.NewPrometheusRecorder(reg)))
//
// The CLI has no long-running HTTP surface, so Prometheus metrics are exported with
// WriteTextfile (node_exporter textfile collector format) at the end of a build.
package metrics
