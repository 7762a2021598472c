package db

import "fmt"

// Kind distinguishes the three families of types/instances the store manages.
type Kind int

const (
	KindUnknown Kind = iota
	KindArtifact
	KindExecution
	KindContext
)

func (k Kind) String() string {
	switch k {
	case KindArtifact:
		return "Artifact"
	case KindExecution:
		return "Execution"
	case KindContext:
		return "Context"
	default:
		return "Unknown"
	}
}

// PropertyType is the tag of a PropertyValue, and the declared type of a
// property slot on a Type.
type PropertyType int

const (
	PropertyTypeUnknown PropertyType = iota
	PropertyTypeInt
	PropertyTypeDouble
	PropertyTypeString
)

func (p PropertyType) String() string {
	switch p {
	case PropertyTypeInt:
		return "INT"
	case PropertyTypeDouble:
		return "DOUBLE"
	case PropertyTypeString:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

func ParsePropertyType(s string) (PropertyType, error) {
	switch s {
	case "INT":
		return PropertyTypeInt, nil
	case "DOUBLE":
		return PropertyTypeDouble, nil
	case "STRING":
		return PropertyTypeString, nil
	default:
		return PropertyTypeUnknown, fmt.Errorf("unknown property type: %s", s)
	}
}

// EventType is the role an Event plays between an Execution and an Artifact.
type EventType int

const (
	EventUnknown EventType = iota
	EventDeclaredInput
	EventInput
	EventDeclaredOutput
	EventOutput
	EventInternalInput
	EventInternalOutput
)

func (e EventType) String() string {
	switch e {
	case EventDeclaredInput:
		return "DECLARED_INPUT"
	case EventInput:
		return "INPUT"
	case EventDeclaredOutput:
		return "DECLARED_OUTPUT"
	case EventOutput:
		return "OUTPUT"
	case EventInternalInput:
		return "INTERNAL_INPUT"
	case EventInternalOutput:
		return "INTERNAL_OUTPUT"
	default:
		return "UNKNOWN"
	}
}

// ExecutionState is a label carried on Execution, not a driver of any
// transition logic in the core.
type ExecutionState int

const (
	ExecutionStateUnknown ExecutionState = iota
	ExecutionStateNew
	ExecutionStateRunning
	ExecutionStateComplete
	ExecutionStateFailed
	ExecutionStateCached
	ExecutionStateCanceled
)

func (s ExecutionState) String() string {
	switch s {
	case ExecutionStateNew:
		return "NEW"
	case ExecutionStateRunning:
		return "RUNNING"
	case ExecutionStateComplete:
		return "COMPLETE"
	case ExecutionStateFailed:
		return "FAILED"
	case ExecutionStateCached:
		return "CACHED"
	case ExecutionStateCanceled:
		return "CANCELED"
	default:
		return "UNKNOWN"
	}
}
