package db

import "context"

// Attribution is the unordered edge artifact↔context.
type Attribution struct {
	ArtifactId int64
	ContextId  int64
}

// Association is the unordered edge execution↔context.
type Association struct {
	ExecutionId int64
	ContextId   int64
}

type PutAttributionsAndAssociationsRequest struct {
	Attributions []Attribution
	Associations []Association
}

// GraphLinker is the Graph Linker component, including
// the full bidirectional traversal set carried over from the original API.
type GraphLinker interface {
	PutAttributionsAndAssociations(ctx context.Context, req PutAttributionsAndAssociationsRequest) error

	GetContextsByArtifact(ctx context.Context, artifactId int64) ([]Context, error)
	GetContextsByExecution(ctx context.Context, executionId int64) ([]Context, error)
	GetArtifactsByContext(ctx context.Context, contextId int64) ([]Artifact, error)
	GetExecutionsByContext(ctx context.Context, contextId int64) ([]Execution, error)
}
