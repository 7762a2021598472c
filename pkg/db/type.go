package db

import (
	"context"

	"github.com/mlmetastore/mlmd/pkg/cmp"
)

// Type is one declared schema per kind of Artifact|Execution|Context.
type Type struct {
	Id         int64
	Kind       Kind
	Name       string
	Properties map[string]PropertyType
}

func (t *Type) Equal(other *Type) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.Id == other.Id &&
		t.Kind == other.Kind &&
		t.Name == other.Name &&
		cmp.MapEqWith(t.Properties, other.Properties, func(a, b PropertyType) bool { return a == b })
}

// PutTypeOptions governs how PutType reconciles a requested type against an
// existing stored type of the same (kind, name).
type PutTypeOptions struct {
	// AllFieldsMatch requires the full property set to be used as the
	// comparison domain (rather than any looser subset heuristic).
	AllFieldsMatch bool
	// CanAddFields allows the request to add properties beyond the stored type.
	CanAddFields bool
	// CanOmitFields allows the request to omit properties present on the stored type.
	CanOmitFields bool
}

// TypeRegistry is the Type Registry component.
type TypeRegistry interface {
	// PutType inserts a new type, or reconciles T against a stored type of
	// the same (kind, name) per opts, returning the (possibly pre-existing) id.
	PutType(ctx context.Context, kind Kind, t Type, opts PutTypeOptions) (int64, error)

	// PutTypes accepts artifact, execution, and context types in one
	// transaction and returns parallel id lists, in input order.
	PutTypes(ctx context.Context, req PutTypesRequest) (PutTypesResponse, error)

	// GetType returns the stored type of the given kind and name, or
	// ErrNotFound.
	GetType(ctx context.Context, kind Kind, name string) (Type, error)

	// GetTypes returns all types of a kind, in insertion order.
	GetTypes(ctx context.Context, kind Kind) ([]Type, error)

	// GetTypesByID returns the subset of the requested ids that exist;
	// missing ids are silently dropped.
	GetTypesByID(ctx context.Context, kind Kind, ids []int64) ([]Type, error)

	// GetArtifactTypesByID, GetExecutionTypesByID, and GetContextTypesByID
	// are thin per-kind wrappers over GetTypesByID, carried over from the
	// original API surface for callers that expect one method per kind
	// rather than a kind parameter.
	GetArtifactTypesByID(ctx context.Context, ids []int64) ([]Type, error)
	GetExecutionTypesByID(ctx context.Context, ids []int64) ([]Type, error)
	GetContextTypesByID(ctx context.Context, ids []int64) ([]Type, error)
}

type PutTypesRequest struct {
	ArtifactTypes  []Type
	ExecutionTypes []Type
	ContextTypes   []Type
	Options        PutTypeOptions
}

type PutTypesResponse struct {
	ArtifactTypeIds  []int64
	ExecutionTypeIds []int64
	ContextTypeIds   []int64
}
