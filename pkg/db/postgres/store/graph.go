package store

import (
	"context"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/pgerr"
)

// PutAttributionsAndAssociations implements db.GraphLinker. Both edge kinds
// are idempotent: relinking an already-linked pair is a no-op, never a
// conflict, since the edge carries no properties of its own to overwrite.
func (s *Store) PutAttributionsAndAssociations(ctx context.Context, req kdb.PutAttributionsAndAssociationsRequest) error {
	_, err := withTx(ctx, s, func(tx kpool.Tx) (struct{}, error) {
		for _, a := range req.Attributions {
			if _, err := tx.Exec(ctx, catalog.OpAttributionInsert, a.ArtifactId, a.ContextId); err != nil {
				return struct{}{}, pgerr.Classify(err, "attributions", "insert")
			}
		}
		for _, a := range req.Associations {
			if _, err := tx.Exec(ctx, catalog.OpAssociationInsert, a.ExecutionId, a.ContextId); err != nil {
				return struct{}{}, pgerr.Classify(err, "associations", "insert")
			}
		}
		return struct{}{}, nil
	})
	return err
}

func (s *Store) GetContextsByArtifact(ctx context.Context, artifactId int64) ([]kdb.Context, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Context, error) {
		rows, err := tx.Query(ctx, catalog.OpContextsByArtifact, artifactId)
		if err != nil {
			return nil, pgerr.Classify(err, "contexts", "by artifact")
		}
		return scanNodes(ctx, tx, contextSpec, rows)
	})
}

func (s *Store) GetContextsByExecution(ctx context.Context, executionId int64) ([]kdb.Context, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Context, error) {
		rows, err := tx.Query(ctx, catalog.OpContextsByExecution, executionId)
		if err != nil {
			return nil, pgerr.Classify(err, "contexts", "by execution")
		}
		return scanNodes(ctx, tx, contextSpec, rows)
	})
}

func (s *Store) GetArtifactsByContext(ctx context.Context, contextId int64) ([]kdb.Artifact, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Artifact, error) {
		rows, err := tx.Query(ctx, catalog.OpArtifactsByContext, contextId)
		if err != nil {
			return nil, pgerr.Classify(err, "artifacts", "by context")
		}
		return scanNodes(ctx, tx, artifactSpec, rows)
	})
}

func (s *Store) GetExecutionsByContext(ctx context.Context, contextId int64) ([]kdb.Execution, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Execution, error) {
		rows, err := tx.Query(ctx, catalog.OpExecutionsByContext, contextId)
		if err != nil {
			return nil, pgerr.Classify(err, "executions", "by context")
		}
		return scanNodes(ctx, tx, executionSpec, rows)
	})
}
