// Package vlm talks to a remote vision-language model over an OpenAI-style
// chat completions endpoint and gates those calls so that at most one is in
// flight at any time.
//
//   - client.go: Client, the single-slot gate, Submit/Busy/Close and the
//     synchronous Describe call used by the background worker.
//   - config.go: Config and package defaults applied by New.
//   - encode.go: frame encoding (RGB, square resize, JPEG, base64).
//   - protocol.go: request/response payloads.
//   - errors.go: sentinel and typed errors.
//   - metrics.go: Prometheus collectors for submits and calls.
//
// Submit never blocks: a submission while a call is outstanding is rejected,
// not queued. The gate is released before the completion callback runs so
// the caller may submit again on its very next iteration.
package vlm
