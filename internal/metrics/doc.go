// Package metrics provides Prometheus metrics for the capture and
// processing pipeline, event fan-out and persistence.
//
// All instruments are registered with promauto on the default registry
// under the "visionnode" namespace and exported by exporters.HTTPHandler.
package metrics
