package store

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"valeads-engine/internal/domain"
)

// Tree is the hierarchical document store. A path is either a dataset name
// ("ALL") or a dataset name and key ("ALL/123 Main St").
type Tree interface {
	// Get returns the children of a dataset. A missing dataset is empty, not an error.
	Get(ctx context.Context, path string) (map[string]json.RawMessage, error)
	// Update merges children into the dataset; other keys are untouched.
	Update(ctx context.Context, path string, children map[string]any) error
	// Set replaces the dataset with children.
	Set(ctx context.Context, path string, children map[string]any) error
	Delete(ctx context.Context, path string) error
	DeleteAll(ctx context.Context) error
	// Datasets reports the child count of every non-empty dataset.
	Datasets(ctx context.Context) (map[string]int, error)
}

var errBadPath = errors.New("invalid path")

func splitPath(p string) (parent, key string, err error) {
	p = strings.Trim(p, "/")
	if p == "" {
		return "", "", errBadPath
	}
	parent, key, _ = strings.Cut(p, "/")
	if strings.Contains(key, "/") {
		return "", "", errBadPath
	}
	return parent, key, nil
}

func datasetPath(p string) (string, error) {
	parent, key, err := splitPath(p)
	if err != nil {
		return "", err
	}
	if key != "" {
		return "", errBadPath
	}
	return parent, nil
}

func encodeChildren(children map[string]any) (map[string]string, error) {
	out := make(map[string]string, len(children))
	for k, v := range children {
		if k == "" || strings.Contains(k, "/") {
			return nil, errBadPath
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[k] = string(b)
	}
	return out, nil
}

func storageErr(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var se *domain.StorageError
	if errors.As(err, &se) {
		return err
	}
	return &domain.StorageError{Op: op, Path: path, Err: err}
}
