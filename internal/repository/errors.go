// Package repository persists the BFF's own records.  Everything else the
// system stores lives behind the backend API.
package repository

import "errors"

// ErrDuplicate is returned when a check-in with the same event id was
// already journaled, which happens when the broker redelivers a message.
var ErrDuplicate = errors.New("duplicate event")
