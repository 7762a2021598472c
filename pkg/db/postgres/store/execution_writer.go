package store

import (
	"context"

	"github.com/google/uuid"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
	kdb "github.com/mlmetastore/mlmd/pkg/db"
	kerrors "github.com/mlmetastore/mlmd/pkg/errors"
)

// PutExecution implements the Composite Writer: the execution, every
// artifact/event pair, and any events all land in the artifact/execution
// ids resolved inside this one transaction, never split
// across separate Put calls the caller would have to retry independently.
//
// Each attempt is tagged with a correlation id so a failure deep in the
// pair loop can be traced back to the request that caused it without
// threading a request id through every helper signature.
func (s *Store) PutExecution(ctx context.Context, req kdb.PutExecutionRequest) (kdb.PutExecutionResponse, error) {
	correlationID := uuid.New()

	return withTx(ctx, s, func(tx kpool.Tx) (kdb.PutExecutionResponse, error) {
		if err := s.checkConformance(ctx, tx, kdb.KindExecution, req.Execution.TypeId, req.Execution.Properties); err != nil {
			return kdb.PutExecutionResponse{}, annotate(correlationID, err)
		}
		executionID, err := putOne(ctx, tx, executionSpec, req.Execution)
		if err != nil {
			return kdb.PutExecutionResponse{}, annotate(correlationID, err)
		}

		artifactIDs := make([]int64, len(req.ArtifactAndEvents))
		for i, pair := range req.ArtifactAndEvents {
			if err := s.checkConformance(ctx, tx, kdb.KindArtifact, pair.Artifact.TypeId, pair.Artifact.Properties); err != nil {
				return kdb.PutExecutionResponse{}, annotate(correlationID, err)
			}
			artifactID, err := putOne(ctx, tx, artifactSpec, pair.Artifact)
			if err != nil {
				return kdb.PutExecutionResponse{}, annotate(correlationID, err)
			}
			artifactIDs[i] = artifactID

			if pair.Event != nil {
				event := *pair.Event
				event.ArtifactId = artifactID
				event.ExecutionId = executionID
				if err := putEvent(ctx, tx, event); err != nil {
					return kdb.PutExecutionResponse{}, annotate(correlationID, err)
				}
			}
		}

		return kdb.PutExecutionResponse{ExecutionId: executionID, ArtifactIds: artifactIDs}, nil
	})
}

func annotate(correlationID uuid.UUID, err error) error {
	return kerrors.WrapWithNote("put_execution "+correlationID.String(), err)
}
