// Package repository implements raw-SQL data access for the parking
// service.  Sentinel errors declared here are shared across the
// individual repositories so that callers can distinguish failure
// scenarios without inspecting driver-specific errors.
package repository

import "errors"

// ErrEmailExists is returned by UserRepo.Create when the email address
// is already registered.
var ErrEmailExists = errors.New("email already exists")
