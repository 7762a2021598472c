package db

import "context"

// ArtifactAndEvent is one (artifact, optional event) pair of a PutExecution
// request. Event is nil when the pair carries no event.
type ArtifactAndEvent struct {
	Artifact Artifact
	Event    *Event
}

type PutExecutionRequest struct {
	Execution         Execution
	ArtifactAndEvents []ArtifactAndEvent
}

type PutExecutionResponse struct {
	ExecutionId int64
	ArtifactIds []int64
}

// ExecutionWriter is the Composite Writer component:
// it atomically upserts an execution plus its artifact/event pairs in
// exactly one transaction.
type ExecutionWriter interface {
	PutExecution(ctx context.Context, req PutExecutionRequest) (PutExecutionResponse, error)
}
