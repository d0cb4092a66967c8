// Package batch contains the orchestration engine: it enumerates the source
// tree, decides per file whether to move, transcode, or fail it, publishes
// results atomically through staging files, and keeps run statistics
// consistent under cancellation.
//
// The per-file branch logic lives in Decide, a pure function, so the policy
// table is testable without encoders. The Orchestrator owns all I/O and is
// strictly sequential; the only concurrency is the external subprocess it
// blocks on and the signal path that cancels its context.
package batch
