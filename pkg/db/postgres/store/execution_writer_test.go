package store_test

import (
	"context"
	"testing"

	"github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool/proxy"
	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/pool/testenv"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/store"
)

func TestPutExecution_WritesExecutionArtifactsAndEventsTogether(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)

	executionTypeID, _ := s.PutType(ctx, kdb.KindExecution, kdb.Type{Name: "job"}, kdb.PutTypeOptions{})
	artifactTypeID, _ := s.PutType(ctx, kdb.KindArtifact, kdb.Type{Name: "output"}, kdb.PutTypeOptions{})

	resp, err := s.PutExecution(ctx, kdb.PutExecutionRequest{
		Execution: kdb.Execution{Node: kdb.Node{TypeId: executionTypeID}, LastKnownState: kdb.ExecutionStateComplete},
		ArtifactAndEvents: []kdb.ArtifactAndEvent{
			{
				Artifact: kdb.Artifact{Node: kdb.Node{TypeId: artifactTypeID}, URI: "s3://out/1"},
				Event:    &kdb.Event{Type: kdb.EventOutput, MillisecondsSinceEpoch: 5},
			},
		},
	})
	if err != nil {
		t.Fatalf("PutExecution: %v", err)
	}
	if resp.ExecutionId == 0 || len(resp.ArtifactIds) != 1 {
		t.Fatalf("got %+v", resp)
	}

	events, err := s.GetEventsByExecutionIDs(ctx, []int64{resp.ExecutionId})
	if err != nil {
		t.Fatalf("GetEventsByExecutionIDs: %v", err)
	}
	if len(events) != 1 || events[0].ArtifactId != resp.ArtifactIds[0] {
		t.Errorf("got %+v", events)
	}
}

// TestPutExecution_FailureMidTransactionRollsBackEverything injects a
// context cancellation between the execution insert and the artifact insert
// via the fault-injection proxy: the whole attempt must leave no trace, not
// a half-written execution row.
func TestPutExecution_FailureMidTransactionRollsBackEverything(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool := testenv.Connect(ctx, t).GetPool(ctx, t)
	proxied := proxy.Wrap(pool)

	queries := 0
	proxied.Events().Query.Before(func() {
		queries++
		if queries == 2 {
			cancel()
		}
	})

	s, err := store.Open(ctx, proxied, catalog.DefaultCatalog(), kdb.MigrationDirective{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	executionTypeID, err := s.PutType(context.Background(), kdb.KindExecution, kdb.Type{Name: "job"}, kdb.PutTypeOptions{})
	if err != nil {
		t.Fatalf("PutType: %v", err)
	}
	artifactTypeID, err := s.PutType(context.Background(), kdb.KindArtifact, kdb.Type{Name: "output"}, kdb.PutTypeOptions{})
	if err != nil {
		t.Fatalf("PutType: %v", err)
	}

	queries = 0
	_, err = s.PutExecution(ctx, kdb.PutExecutionRequest{
		Execution: kdb.Execution{Node: kdb.Node{TypeId: executionTypeID}},
		ArtifactAndEvents: []kdb.ArtifactAndEvent{
			{Artifact: kdb.Artifact{Node: kdb.Node{TypeId: artifactTypeID}}},
		},
	})
	if err == nil {
		t.Fatalf("expected PutExecution to fail once the context is canceled mid-transaction")
	}

	all, listErr := s.GetExecutions(context.Background(), kdb.PageRequest{})
	if listErr != nil {
		t.Fatalf("GetExecutions: %v", listErr)
	}
	if len(all) != 0 {
		t.Errorf("got %d executions after a rolled-back PutExecution, want 0", len(all))
	}
}

// TestPutExecution_UpsertSequence walks the canonical three-call sequence:
// execution alone, then the same execution with a new artifact, then the
// prior artifact plus events and a second artifact. One execution, two
// artifacts, and two events must exist at the end.
func TestPutExecution_UpsertSequence(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)

	executionTypeID, _ := s.PutType(ctx, kdb.KindExecution, kdb.Type{Name: "job"}, kdb.PutTypeOptions{})
	artifactTypeID, _ := s.PutType(ctx, kdb.KindArtifact, kdb.Type{Name: "blob"}, kdb.PutTypeOptions{})

	first, err := s.PutExecution(ctx, kdb.PutExecutionRequest{
		Execution: kdb.Execution{Node: kdb.Node{TypeId: executionTypeID}},
	})
	if err != nil {
		t.Fatalf("first PutExecution: %v", err)
	}
	if len(first.ArtifactIds) != 0 {
		t.Fatalf("got %d artifact ids, want 0", len(first.ArtifactIds))
	}

	second, err := s.PutExecution(ctx, kdb.PutExecutionRequest{
		Execution: kdb.Execution{Node: kdb.Node{Id: first.ExecutionId, TypeId: executionTypeID}},
		ArtifactAndEvents: []kdb.ArtifactAndEvent{
			{Artifact: kdb.Artifact{Node: kdb.Node{TypeId: artifactTypeID}, URI: "u1"}},
		},
	})
	if err != nil {
		t.Fatalf("second PutExecution: %v", err)
	}
	if second.ExecutionId != first.ExecutionId || len(second.ArtifactIds) != 1 {
		t.Fatalf("got %+v", second)
	}

	third, err := s.PutExecution(ctx, kdb.PutExecutionRequest{
		Execution: kdb.Execution{Node: kdb.Node{Id: first.ExecutionId, TypeId: executionTypeID}},
		ArtifactAndEvents: []kdb.ArtifactAndEvent{
			{
				Artifact: kdb.Artifact{Node: kdb.Node{Id: second.ArtifactIds[0], TypeId: artifactTypeID}, URI: "u1"},
				Event:    &kdb.Event{Type: kdb.EventInput, MillisecondsSinceEpoch: 1},
			},
			{
				Artifact: kdb.Artifact{Node: kdb.Node{TypeId: artifactTypeID}, URI: "u2"},
				Event:    &kdb.Event{Type: kdb.EventOutput, MillisecondsSinceEpoch: 2},
			},
		},
	})
	if err != nil {
		t.Fatalf("third PutExecution: %v", err)
	}
	if len(third.ArtifactIds) != 2 {
		t.Fatalf("got %d artifact ids, want 2", len(third.ArtifactIds))
	}

	events, err := s.GetEventsByExecutionIDs(ctx, []int64{first.ExecutionId})
	if err != nil {
		t.Fatalf("GetEventsByExecutionIDs: %v", err)
	}
	if len(events) != 2 {
		t.Errorf("got %d events, want 2", len(events))
	}

	executions, err := s.GetExecutions(ctx, kdb.PageRequest{})
	if err != nil {
		t.Fatalf("GetExecutions: %v", err)
	}
	if len(executions) != 1 {
		t.Errorf("got %d executions, want 1", len(executions))
	}
}
