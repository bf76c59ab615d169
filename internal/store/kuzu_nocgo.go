//go:build !cgo

package store

import (
	"context"
	"errors"
	"fmt"
)

// MemoryPath opens an in-memory Kuzu database.
const MemoryPath = ":memory:"

var errKuzuNeedsCgo = errors.New("kuzu backend requires a cgo build")

// KuzuStore is unavailable without cgo.
type KuzuStore struct{ Executor }

// OpenKuzu always fails in builds without cgo.
func OpenKuzu(_ context.Context, path string) (*KuzuStore, error) {
	return nil, fmt.Errorf("%w: %s", errKuzuNeedsCgo, path)
}
