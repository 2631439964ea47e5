package models

import "errors"

// ErrNotFound is returned when an entity exists in neither the cache nor the
// durable store.
var ErrNotFound = errors.New("not found")

// User represents a user record. The database owns the authoritative copy;
// the cache holds a time-bounded JSON snapshot of it.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Age   int    `json:"age"`
}
