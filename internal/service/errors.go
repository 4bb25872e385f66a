package service

import (
	"errors"
	"fmt"
	"sort"
)

// Sentinel errors mapped to HTTP statuses by the API layer
var (
	// ErrNoFiles means a directory has nothing to archive or export
	ErrNoFiles = errors.New("no files in directory")
	// ErrNoInvoices means an export was requested for a directory where no
	// visible file has been published as an invoice
	ErrNoInvoices = errors.New("no invoices for directory")
	// ErrForbidden means the directory is outside the caller's grant set
	ErrForbidden = errors.New("access denied")
	// ErrNotFound covers missing files, agents, albums and images
	ErrNotFound = errors.New("not found")
	// ErrEmailTaken means a signup raced or repeated an existing email
	ErrEmailTaken = errors.New("agent with this email already exists")
	// ErrInvalidCredentials covers both unknown email and bad password
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// ValidationError carries one message per offending invoice field
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msg := "invalid invoice:"
	for _, k := range keys {
		msg += fmt.Sprintf(" %s: %s;", k, e.Fields[k])
	}
	return msg
}
