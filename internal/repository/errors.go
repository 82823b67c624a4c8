// Package repository holds the MySQL data access of the service and the
// sentinel errors shared by its repositories.  Handlers and services map
// them to HTTP statuses with errors.Is.
package repository

import "errors"

// ErrNotFound is returned when the addressed row does not exist.
// Handlers translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an update cannot be applied because of
// the current state of the row, such as changing a locked box-office
// return.  Handlers translate it into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrUnknownKind is returned for a record kind that has no table.
var ErrUnknownKind = errors.New("unknown record kind")
