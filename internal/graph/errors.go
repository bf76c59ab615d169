package graph

import "errors"

var (
	// ErrInvalidNode is returned when a node fails schema validation.
	ErrInvalidNode = errors.New("invalid node")

	// ErrInvalidRelationship is returned when an edge fails schema validation.
	ErrInvalidRelationship = errors.New("invalid relationship")

	// ErrUnknownKind is returned when a kind is not registered.
	ErrUnknownKind = errors.New("unknown kind")
)
