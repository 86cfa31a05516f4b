package graph

import (
	"errors"
	"fmt"
)

var (
	ErrNodeNotFound  = errors.New("graph: node not found")
	ErrPageNotFound  = errors.New("graph: page not found")
	ErrDepthExceeded = errors.New("graph: traversal depth ceiling exceeded")
)

// NotFoundError carries the lookup key that produced a miss.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	if e == nil {
		return ErrNodeNotFound.Error()
	}
	return fmt.Sprintf("graph: %s not found: %s", e.Resource, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	if e != nil && e.Resource == "page" {
		return ErrPageNotFound
	}
	return ErrNodeNotFound
}
