package store_test

import (
	"context"
	"errors"
	"testing"

	kdb "github.com/mlmetastore/mlmd/pkg/db"
)

func putArtifactType(ctx context.Context, t *testing.T, s interface {
	PutType(context.Context, kdb.Kind, kdb.Type, kdb.PutTypeOptions) (int64, error)
}, name string, props map[string]kdb.PropertyType) int64 {
	t.Helper()
	id, err := s.PutType(ctx, kdb.KindArtifact, kdb.Type{Name: name, Properties: props}, kdb.PutTypeOptions{})
	if err != nil {
		t.Fatalf("PutType(%s): %v", name, err)
	}
	return id
}

func TestPutArtifacts_RejectsUndeclaredProperty(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)

	typeID := putArtifactType(ctx, t, s, "dataset", map[string]kdb.PropertyType{"rows": kdb.PropertyTypeInt})

	_, err := s.PutArtifacts(ctx, []kdb.Artifact{{
		Node:       kdb.Node{TypeId: typeID, Properties: map[string]kdb.PropertyValue{"unknown": kdb.IntValue(1)}},
		URI:        "s3://bucket/dataset.csv",
	}})
	if !errors.Is(err, kdb.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestPutArtifacts_RoundTripsByID(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)

	typeID := putArtifactType(ctx, t, s, "dataset", map[string]kdb.PropertyType{"rows": kdb.PropertyTypeInt})

	ids, err := s.PutArtifacts(ctx, []kdb.Artifact{{
		Node: kdb.Node{
			TypeId:     typeID,
			Properties: map[string]kdb.PropertyValue{"rows": kdb.IntValue(42)},
			CustomProperties: map[string]kdb.PropertyValue{
				"note": kdb.StringValue("first run"),
			},
		},
		URI: "s3://bucket/dataset.csv",
	}})
	if err != nil {
		t.Fatalf("PutArtifacts: %v", err)
	}
	if len(ids) != 1 {
		t.Fatalf("got %d ids, want 1", len(ids))
	}

	got, err := s.GetArtifactsByID(ctx, ids)
	if err != nil {
		t.Fatalf("GetArtifactsByID: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(got))
	}
	a := got[0]
	if a.URI != "s3://bucket/dataset.csv" {
		t.Errorf("got uri %q", a.URI)
	}
	if !a.Properties["rows"].Equal(kdb.IntValue(42)) {
		t.Errorf("got properties %+v", a.Properties)
	}
	if !a.CustomProperties["note"].Equal(kdb.StringValue("first run")) {
		t.Errorf("got custom properties %+v", a.CustomProperties)
	}
}

func TestPutArtifacts_UpdateInPlacePreservesID(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)
	typeID := putArtifactType(ctx, t, s, "dataset", nil)

	ids, err := s.PutArtifacts(ctx, []kdb.Artifact{{Node: kdb.Node{TypeId: typeID}, URI: "uri-1"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	_, err = s.PutArtifacts(ctx, []kdb.Artifact{{Node: kdb.Node{Id: ids[0], TypeId: typeID}, URI: "uri-2"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetArtifactsByID(ctx, ids)
	if err != nil {
		t.Fatalf("GetArtifactsByID: %v", err)
	}
	if got[0].URI != "uri-2" {
		t.Errorf("got uri %q, want uri-2 after update", got[0].URI)
	}
}

func TestGetArtifactsByURI_MatchesExact(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)
	typeID := putArtifactType(ctx, t, s, "dataset", nil)

	if _, err := s.PutArtifacts(ctx, []kdb.Artifact{
		{Node: kdb.Node{TypeId: typeID}, URI: "s3://same"},
		{Node: kdb.Node{TypeId: typeID}, URI: "s3://same"},
		{Node: kdb.Node{TypeId: typeID}, URI: "s3://other"},
	}); err != nil {
		t.Fatalf("PutArtifacts: %v", err)
	}

	got, err := s.GetArtifactsByURI(ctx, "s3://same")
	if err != nil {
		t.Fatalf("GetArtifactsByURI: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d artifacts, want 2", len(got))
	}
}

func TestPutContexts_RejectsDuplicateNameWithinType(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)

	typeID, err := s.PutType(ctx, kdb.KindContext, kdb.Type{Name: "experiment"}, kdb.PutTypeOptions{})
	if err != nil {
		t.Fatalf("PutType: %v", err)
	}

	if _, err := s.PutContexts(ctx, []kdb.Context{{Node: kdb.Node{TypeId: typeID}, Name: "run-1"}}); err != nil {
		t.Fatalf("first PutContexts: %v", err)
	}

	_, err = s.PutContexts(ctx, []kdb.Context{{Node: kdb.Node{TypeId: typeID}, Name: "run-1"}})
	if !errors.Is(err, kdb.ErrAlreadyExists) {
		t.Errorf("got %v, want ErrAlreadyExists", err)
	}
}

func TestGetArtifactsByURI_EmptyStringAndMisses(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)
	typeID := putArtifactType(ctx, t, s, "dataset", nil)

	uris := []string{"u1", "u2", "u2", "", "", ""}
	artifacts := make([]kdb.Artifact, len(uris))
	for i, uri := range uris {
		artifacts[i] = kdb.Artifact{Node: kdb.Node{TypeId: typeID}, URI: uri}
	}
	if _, err := s.PutArtifacts(ctx, artifacts); err != nil {
		t.Fatalf("PutArtifacts: %v", err)
	}

	for _, tc := range []struct {
		uri  string
		want int
	}{
		{"u1", 1},
		{"u2", 2},
		{"", 3},
		{"none", 0},
	} {
		got, err := s.GetArtifactsByURI(ctx, tc.uri)
		if err != nil {
			t.Fatalf("GetArtifactsByURI(%q): %v", tc.uri, err)
		}
		if len(got) != tc.want {
			t.Errorf("GetArtifactsByURI(%q): got %d artifacts, want %d", tc.uri, len(got), tc.want)
		}
	}
}

func TestPutArtifacts_PropertyUpdateInPlace(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)
	typeID := putArtifactType(ctx, t, s, "dataset", map[string]kdb.PropertyType{"property": kdb.PropertyTypeString})

	ids, err := s.PutArtifacts(ctx, []kdb.Artifact{{
		Node: kdb.Node{TypeId: typeID, Properties: map[string]kdb.PropertyValue{"property": kdb.StringValue("3")}},
	}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	if _, err := s.PutArtifacts(ctx, []kdb.Artifact{{
		Node: kdb.Node{Id: ids[0], TypeId: typeID, Properties: map[string]kdb.PropertyValue{"property": kdb.StringValue("2")}},
	}}); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := s.GetArtifactsByID(ctx, ids)
	if err != nil {
		t.Fatalf("GetArtifactsByID: %v", err)
	}
	if len(got) != 1 || !got[0].Properties["property"].Equal(kdb.StringValue("2")) {
		t.Errorf("got %+v, want property = \"2\"", got)
	}
}

func TestPutArtifacts_RejectsWrongTagValue(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)
	typeID := putArtifactType(ctx, t, s, "dataset", map[string]kdb.PropertyType{"rows": kdb.PropertyTypeInt})

	_, err := s.PutArtifacts(ctx, []kdb.Artifact{{
		Node: kdb.Node{TypeId: typeID, Properties: map[string]kdb.PropertyValue{"rows": kdb.StringValue("42")}},
	}})
	if !errors.Is(err, kdb.ErrInvalidArgument) {
		t.Errorf("got %v, want ErrInvalidArgument", err)
	}
}

func TestGetArtifactsByType_UnknownTypeIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)

	got, err := s.GetArtifactsByType(ctx, "no-such-type")
	if err != nil {
		t.Fatalf("GetArtifactsByType: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d artifacts, want 0", len(got))
	}
}

func TestGetArtifactsByID_DropsMissingIDs(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)
	typeID := putArtifactType(ctx, t, s, "dataset", nil)

	ids, err := s.PutArtifacts(ctx, []kdb.Artifact{{Node: kdb.Node{TypeId: typeID}}})
	if err != nil {
		t.Fatalf("PutArtifacts: %v", err)
	}

	got, err := s.GetArtifactsByID(ctx, []int64{ids[0], ids[0] + 1000})
	if err != nil {
		t.Fatalf("GetArtifactsByID: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d artifacts, want 1", len(got))
	}
}

func TestPutContexts_UpdateByIDKeepsName(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)

	typeID, err := s.PutType(ctx, kdb.KindContext, kdb.Type{Name: "experiment"}, kdb.PutTypeOptions{})
	if err != nil {
		t.Fatalf("PutType: %v", err)
	}

	ids, err := s.PutContexts(ctx, []kdb.Context{{Node: kdb.Node{TypeId: typeID}, Name: "run-1"}})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	// updating through the assigned id is not a duplicate-name collision.
	if _, err := s.PutContexts(ctx, []kdb.Context{{Node: kdb.Node{Id: ids[0], TypeId: typeID}, Name: "run-1"}}); err != nil {
		t.Fatalf("update in place: %v", err)
	}

	got, err := s.GetContextsByID(ctx, ids)
	if err != nil {
		t.Fatalf("GetContextsByID: %v", err)
	}
	if len(got) != 1 || got[0].Name != "run-1" {
		t.Errorf("got %+v", got)
	}
}

func TestGetExecutions_PaginatesInIDOrder(t *testing.T) {
	ctx := context.Background()
	s := openStore(ctx, t)

	typeID, err := s.PutType(ctx, kdb.KindExecution, kdb.Type{Name: "job"}, kdb.PutTypeOptions{})
	if err != nil {
		t.Fatalf("PutType: %v", err)
	}

	var all []kdb.Execution
	for i := 0; i < 5; i++ {
		all = append(all, kdb.Execution{Node: kdb.Node{TypeId: typeID}})
	}
	ids, err := s.PutExecutions(ctx, all)
	if err != nil {
		t.Fatalf("PutExecutions: %v", err)
	}

	page, err := s.GetExecutions(ctx, kdb.PageRequest{Limit: 2, Offset: 1})
	if err != nil {
		t.Fatalf("GetExecutions: %v", err)
	}
	if len(page) != 2 || page[0].Id != ids[1] || page[1].Id != ids[2] {
		t.Errorf("got %+v, want ids %d, %d", page, ids[1], ids[2])
	}
}
