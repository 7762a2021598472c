package store

import (
	"context"
	"fmt"

	kpool "github.com/mlmetastore/mlmd/pkg/conn/db/postgres/pool"
	kdb "github.com/mlmetastore/mlmd/pkg/db"
	"github.com/mlmetastore/mlmd/pkg/db/postgres/catalog"
)

var artifactSpec = NodeSpec[kdb.Artifact]{
	Kind:    kdb.KindArtifact,
	Ops:     catalog.ArtifactNodeOps,
	ID:      func(a kdb.Artifact) int64 { return a.Id },
	TypeID:  func(a kdb.Artifact) int64 { return a.TypeId },
	Extra:   func(a kdb.Artifact) any { return a.URI },
	FromRow: func(id, typeID int64, extra any) kdb.Artifact {
		return kdb.Artifact{
			Node: kdb.Node{Id: id, TypeId: typeID},
			URI:  asString(extra),
		}
	},
	Props: func(a kdb.Artifact) (map[string]kdb.PropertyValue, map[string]kdb.PropertyValue) {
		return a.Properties, a.CustomProperties
	},
	WithProps: func(a kdb.Artifact, props, custom map[string]kdb.PropertyValue) kdb.Artifact {
		a.Properties = props
		a.CustomProperties = custom
		return a
	},
}

var executionSpec = NodeSpec[kdb.Execution]{
	Kind:    kdb.KindExecution,
	Ops:     catalog.ExecutionNodeOps,
	ID:      func(e kdb.Execution) int64 { return e.Id },
	TypeID:  func(e kdb.Execution) int64 { return e.TypeId },
	Extra:   func(e kdb.Execution) any { return int(e.LastKnownState) },
	FromRow: func(id, typeID int64, extra any) kdb.Execution {
		return kdb.Execution{
			Node:           kdb.Node{Id: id, TypeId: typeID},
			LastKnownState: kdb.ExecutionState(asInt(extra)),
		}
	},
	Props: func(e kdb.Execution) (map[string]kdb.PropertyValue, map[string]kdb.PropertyValue) {
		return e.Properties, e.CustomProperties
	},
	WithProps: func(e kdb.Execution, props, custom map[string]kdb.PropertyValue) kdb.Execution {
		e.Properties = props
		e.CustomProperties = custom
		return e
	},
}

var contextSpec = NodeSpec[kdb.Context]{
	Kind:    kdb.KindContext,
	Ops:     catalog.ContextNodeOps,
	ID:      func(c kdb.Context) int64 { return c.Id },
	TypeID:  func(c kdb.Context) int64 { return c.TypeId },
	Extra:   func(c kdb.Context) any { return c.Name },
	FromRow: func(id, typeID int64, extra any) kdb.Context {
		return kdb.Context{
			Node: kdb.Node{Id: id, TypeId: typeID},
			Name: asString(extra),
		}
	},
	Props: func(c kdb.Context) (map[string]kdb.PropertyValue, map[string]kdb.PropertyValue) {
		return c.Properties, c.CustomProperties
	},
	WithProps: func(c kdb.Context, props, custom map[string]kdb.PropertyValue) kdb.Context {
		c.Properties = props
		c.CustomProperties = custom
		return c
	},
}

func asString(v any) string {
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int32:
		return int64(n)
	case int16:
		return int64(n)
	case int:
		return int64(n)
	default:
		return 0
	}
}

// PutArtifacts implements db.InstanceStore. Property conformance against
// each artifact's declared type is checked before any row is written, so
// a reject never touches the table.
func (s *Store) PutArtifacts(ctx context.Context, artifacts []kdb.Artifact) ([]int64, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]int64, error) {
		for _, a := range artifacts {
			if err := s.checkConformance(ctx, tx, kdb.KindArtifact, a.TypeId, a.Properties); err != nil {
				return nil, err
			}
		}
		return Put(ctx, tx, artifactSpec, artifacts)
	})
}

func (s *Store) PutExecutions(ctx context.Context, executions []kdb.Execution) ([]int64, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]int64, error) {
		for _, e := range executions {
			if err := s.checkConformance(ctx, tx, kdb.KindExecution, e.TypeId, e.Properties); err != nil {
				return nil, err
			}
		}
		return Put(ctx, tx, executionSpec, executions)
	})
}

// PutContexts additionally enforces the (type_id, name) uniqueness
// invariant for id-less requests: a context request
// with no id whose (type_id, name) already names a different row fails
// with AlreadyExists rather than silently inserting a duplicate.
func (s *Store) PutContexts(ctx context.Context, contexts []kdb.Context) ([]int64, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]int64, error) {
		for _, c := range contexts {
			if err := s.checkConformance(ctx, tx, kdb.KindContext, c.TypeId, c.Properties); err != nil {
				return nil, err
			}
			if c.Id == 0 {
				existing, found, err := GetByTypeAndName(ctx, tx, contextSpec, c.TypeId, c.Name)
				if err != nil {
					return nil, err
				}
				if found {
					return nil, fmt.Errorf("context (type_id=%d, name=%q) already exists as id=%d: %w", c.TypeId, c.Name, existing.Id, kdb.ErrAlreadyExists)
				}
			}
		}
		return Put(ctx, tx, contextSpec, contexts)
	})
}

func (s *Store) GetArtifactsByID(ctx context.Context, ids []int64) ([]kdb.Artifact, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Artifact, error) {
		return GetByID(ctx, tx, artifactSpec, ids)
	})
}

func (s *Store) GetExecutionsByID(ctx context.Context, ids []int64) ([]kdb.Execution, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Execution, error) {
		return GetByID(ctx, tx, executionSpec, ids)
	})
}

func (s *Store) GetContextsByID(ctx context.Context, ids []int64) ([]kdb.Context, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Context, error) {
		return GetByID(ctx, tx, contextSpec, ids)
	})
}

func (s *Store) GetArtifactsByType(ctx context.Context, typeName string) ([]kdb.Artifact, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Artifact, error) {
		return GetByType(ctx, tx, artifactSpec, typeName)
	})
}

func (s *Store) GetExecutionsByType(ctx context.Context, typeName string) ([]kdb.Execution, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Execution, error) {
		return GetByType(ctx, tx, executionSpec, typeName)
	})
}

func (s *Store) GetContextsByType(ctx context.Context, typeName string) ([]kdb.Context, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Context, error) {
		return GetByType(ctx, tx, contextSpec, typeName)
	})
}

// GetArtifactsByURI returns every artifact whose uri equals uri, including
// the empty string.
func (s *Store) GetArtifactsByURI(ctx context.Context, uri string) ([]kdb.Artifact, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Artifact, error) {
		return GetByURI(ctx, tx, artifactSpec, uri)
	})
}

func (s *Store) GetArtifacts(ctx context.Context, page kdb.PageRequest) ([]kdb.Artifact, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Artifact, error) {
		return GetAll(ctx, tx, artifactSpec, page)
	})
}

func (s *Store) GetExecutions(ctx context.Context, page kdb.PageRequest) ([]kdb.Execution, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Execution, error) {
		return GetAll(ctx, tx, executionSpec, page)
	})
}

func (s *Store) GetContexts(ctx context.Context, page kdb.PageRequest) ([]kdb.Context, error) {
	return withTx(ctx, s, func(tx kpool.Tx) ([]kdb.Context, error) {
		return GetAll(ctx, tx, contextSpec, page)
	})
}
