package db

import (
	"context"

	"github.com/mlmetastore/mlmd/pkg/cmp"
)

// Event is an append-only edge from an Execution to an Artifact.
type Event struct {
	ArtifactId            int64
	ExecutionId           int64
	Type                  EventType
	MillisecondsSinceEpoch int64
	Path                  []string
}

func (e *Event) Equal(other *Event) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.ArtifactId == other.ArtifactId &&
		e.ExecutionId == other.ExecutionId &&
		e.Type == other.Type &&
		e.MillisecondsSinceEpoch == other.MillisecondsSinceEpoch &&
		cmp.SliceEq(e.Path, other.Path)
}

// EventLog is the Event Log component.
type EventLog interface {
	PutEvents(ctx context.Context, events []Event) error
	GetEventsByArtifactIDs(ctx context.Context, ids []int64) ([]Event, error)
	GetEventsByExecutionIDs(ctx context.Context, ids []int64) ([]Event, error)
}
