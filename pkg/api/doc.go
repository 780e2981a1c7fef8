// Package api defines the data model shared by the workbridge orchestration
// engine and its callers.
//
// The package performs no I/O. It holds the immutable input of one
// orchestration run, the references to artifacts created in remote systems,
// per-step results, and the aggregate result returned to the calling layer.
//
// Core types:
//   - [WorkItemRequest]: input of a single orchestration run
//   - [ArtifactReference]: identity of an artifact created remotely
//   - [StepResult]: outcome of one orchestration step
//   - [OrchestrationResult]: the four-key aggregate returned to callers
//   - [ErrorInfo]: user-visible error detail attached to a failed step
package api
