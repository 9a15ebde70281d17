package chartflow

import (
	"context"
	"errors"
)

var (
	ErrChartNotFound   = errors.New("chartflow: chart not found")
	ErrNodeNotFound    = errors.New("chartflow: node not found")
	ErrEdgeNotFound    = errors.New("chartflow: edge not found")
	ErrVersionNotFound = errors.New("chartflow: version not found")
	ErrDuplicateName   = errors.New("chartflow: chart name already in use")
)

// Store persists one Collection per editing session as a single document.
// The stored shape is the JSON encoding of Collection, so a reload restores
// the compiled graph without recompiling.
type Store interface {
	// Schema
	CreateSchema(ctx context.Context) error
	DropSchema(ctx context.Context) error

	// LoadCollection returns nil, nil when nothing is stored for session.
	LoadCollection(ctx context.Context, session string) (*Collection, error)
	SaveCollection(ctx context.Context, session string, c *Collection) error
	DeleteCollection(ctx context.Context, session string) error
}
