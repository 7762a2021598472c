package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/pgerr"
)

// PutEvents implements db.EventLog. Each event's (artifact_id, execution_id,
// type) triple is unique: a caller that replays an event it has already
// recorded observes a silent no-op rather than a duplicate row or an error,
// so retries after a partial failure are safe.
func (s *Store) PutEvents(ctx context.Context, events []kdb.Event) error {
	_, err := withTx(ctx, s, func(tx kpool.Tx) (struct{}, error) {
		for _, e := range events {
			if err := putEvent(ctx, tx, e); err != nil {
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	})
	return err
}

func putEvent(ctx context.Context, tx kpool.Tx, e kdb.Event) error {
	if e.MillisecondsSinceEpoch == 0 {
		e.MillisecondsSinceEpoch = time.Now().UnixMilli()
	}

	var id int64
	row := tx.QueryRow(ctx, catalog.OpEventInsert, e.ArtifactId, e.ExecutionId, int(e.Type), e.MillisecondsSinceEpoch)
	if err := row.Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			// ON CONFLICT DO NOTHING found the triple already recorded.
			return nil
		}
		return pgerr.Classify(err, "events", fmt.Sprintf("artifact_id=%d execution_id=%d", e.ArtifactId, e.ExecutionId))
	}

	for i, step := range e.Path {
		if _, err := tx.Exec(ctx, catalog.OpEventPathInsert, id, i, step); err != nil {
			return pgerr.Classify(err, "event_paths", step)
		}
	}
	return nil
}

func (s *Store) GetEventsByArtifactIDs(ctx context.Context, ids []int64) ([]kdb.Event, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Event, error) {
		if len(ids) == 0 {
			return []kdb.Event{}, nil
		}
		return scanEvents(ctx, tx, catalog.OpEventSelectByArtifact, ids)
	})
}

func (s *Store) GetEventsByExecutionIDs(ctx context.Context, ids []int64) ([]kdb.Event, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Event, error) {
		if len(ids) == 0 {
			return []kdb.Event{}, nil
		}
		return scanEvents(ctx, tx, catalog.OpEventSelectByExecution, ids)
	})
}

func scanEvents(ctx context.Context, tx kpool.Tx, op string, ids []int64) ([]kdb.Event, error) {
	rows, err := tx.Query(ctx, op, ids)
	if err != nil {
		return nil, pgerr.Classify(err, "events", "select")
	}

	type core struct {
		id                     int64
		artifactID, executionID int64
		typ                    int
		millis                 int64
	}
	var cores []core
	for rows.Next() {
		var c core
		if err := rows.Scan(&c.id, &c.artifactID, &c.executionID, &c.typ, &c.millis); err != nil {
			rows.Close()
			return nil, pgerr.Classify(err, "events", "scan")
		}
		cores = append(cores, c)
	}
	closeErr := rows.Err()
	rows.Close()
	if closeErr != nil {
		return nil, pgerr.Classify(closeErr, "events", "scan")
	}

	events := make([]kdb.Event, 0, len(cores))
	for _, c := range cores {
		path, err := loadEventPath(ctx, tx, c.id)
		if err != nil {
			return nil, err
		}
		events = append(events, kdb.Event{
			ArtifactId:             c.artifactID,
			ExecutionId:            c.executionID,
			Type:                   kdb.EventType(c.typ),
			MillisecondsSinceEpoch: c.millis,
			Path:                   path,
		})
	}
	return events, nil
}

func loadEventPath(ctx context.Context, tx kpool.Tx, eventID int64) ([]string, error) {
	rows, err := tx.Query(ctx, catalog.OpEventPathSelectByEvent, eventID)
	if err != nil {
		return nil, pgerr.Classify(err, "event_paths", fmt.Sprintf("event_id=%d", eventID))
	}
	defer rows.Close()

	var path []string
	for rows.Next() {
		var stepIndex int
		var step string
		if err := rows.Scan(&stepIndex, &step); err != nil {
			return nil, pgerr.Classify(err, "event_paths", step)
		}
		path = append(path, step)
	}
	return path, rows.Err()
}
