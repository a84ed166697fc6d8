package utils

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

func Ptr[T any](v T) *T {
	return &v
}

func DefaultIfNil[T any](ptr *T, defaultVal T) T {
	if ptr == nil {
		return defaultVal
	}
	return *ptr
}

// NewULID returns a new session identifier.
func NewULID() (ulid.ULID, error) {
	id, err := ulid.New(ulid.Now(), rand.Reader)
	if err != nil {
		return ulid.ULID{}, err
	}
	return id, nil
}
