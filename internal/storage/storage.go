package storage

import (
	"context"
	"errors"
)

var ErrDirectoryNotFound = errors.New("directory not found")

type Storage interface {
	// Put stores data with the given key, which may also be a URL from Join,
	// and returns the storage URL
	Put(ctx context.Context, key string, data []byte) (string, error)
	// Get retrieves data from the given storage URL
	Get(ctx context.Context, url string) ([]byte, error)
	// List returns the entry names directly under directory, sorted by name
	List(ctx context.Context, directory string) ([]string, error)
	// Join returns the URL of name inside directory
	Join(directory string, name string) string
}
