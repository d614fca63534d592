// Package metrics exposes supervisor metrics in Prometheus format.
//
// Collector observes the lifecycle event bus and keeps its own registry, so
// the launcher never touches the global default registerer. Handler serves
// the registry for the control API's /metrics route.
package metrics
