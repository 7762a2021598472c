package db

import (
	"context"

	"github.com/mlmetastore/mlmd/pkg/cmp"
)

// Node is the common shape shared by Artifact, Execution, and Context:
// 90% of their storage and validation logic is identical, so they embed this rather than each redeclaring id,
// type_id, properties, and custom_properties.
type Node struct {
	Id               int64
	TypeId           int64
	Properties       map[string]PropertyValue
	CustomProperties map[string]PropertyValue
}

func (n *Node) equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.Id == other.Id &&
		n.TypeId == other.TypeId &&
		cmp.MapEqWith(n.Properties, other.Properties, PropertyValue.Equal) &&
		cmp.MapEqWith(n.CustomProperties, other.CustomProperties, PropertyValue.Equal)
}

type Artifact struct {
	Node
	URI string
}

func (a *Artifact) Equal(other *Artifact) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.Node.equal(&other.Node) && a.URI == other.URI
}

type Execution struct {
	Node
	LastKnownState ExecutionState
}

func (e *Execution) Equal(other *Execution) bool {
	if e == nil || other == nil {
		return e == other
	}
	return e.Node.equal(&other.Node) && e.LastKnownState == other.LastKnownState
}

type Context struct {
	Node
	Name string
}

func (c *Context) Equal(other *Context) bool {
	if c == nil || other == nil {
		return c == other
	}
	return c.Node.equal(&other.Node) && c.Name == other.Name
}

// InstanceStore is the Instance Store component.
type InstanceStore interface {
	PutArtifacts(ctx context.Context, artifacts []Artifact) ([]int64, error)
	PutExecutions(ctx context.Context, executions []Execution) ([]int64, error)
	PutContexts(ctx context.Context, contexts []Context) ([]int64, error)

	GetArtifactsByID(ctx context.Context, ids []int64) ([]Artifact, error)
	GetExecutionsByID(ctx context.Context, ids []int64) ([]Execution, error)
	GetContextsByID(ctx context.Context, ids []int64) ([]Context, error)

	GetArtifactsByType(ctx context.Context, typeName string) ([]Artifact, error)
	GetExecutionsByType(ctx context.Context, typeName string) ([]Execution, error)
	GetContextsByType(ctx context.Context, typeName string) ([]Context, error)

	// GetArtifactsByURI returns all artifacts whose uri equals uri,
	// including the empty string.
	GetArtifactsByURI(ctx context.Context, uri string) ([]Artifact, error)

	// GetArtifacts/GetExecutions/GetContexts list everything, cursor-paginated.
	GetArtifacts(ctx context.Context, page PageRequest) ([]Artifact, error)
	GetExecutions(ctx context.Context, page PageRequest) ([]Execution, error)
	GetContexts(ctx context.Context, page PageRequest) ([]Context, error)
}

// PageRequest bounds an unfiltered listing call. A zero-value PageRequest
// (Limit == 0) requests the implementation's default page size, not an
// unbounded scan — there is no predicate query language in this system,
// so paging is the only admitted control.
type PageRequest struct {
	Limit  int
	Offset int
}
