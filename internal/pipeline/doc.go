// Package pipeline runs the frame loop that ties the pieces together:
//
//   - pipeline.go: Pipeline type, constructor and the Run loop.
//   - result.go: completion handling for model calls.
//   - service.go: the control-endpoint surface (Query, Status, Ready, History).
//   - metrics.go: frame counters.
//
// The loop never blocks on inference. A frame is submitted only when the
// client is idle; every other frame is counted as skipped and, when an
// overlay presenter is configured, rendered with the latest reply.
package pipeline
