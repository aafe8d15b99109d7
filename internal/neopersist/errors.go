package neopersist

import (
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

var (
	// ErrNotFound is a sentinel error returned by Find operations when no record
	// matching the criteria is found in the database.
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when the store rejects a write because a uniqueness
	// constraint would be violated.
	ErrConflict = errors.New("record already exists")

	// ErrInvalidDescriptor is returned when a descriptor names a label, relationship
	// type, property or alias that is not a plain identifier.
	ErrInvalidDescriptor = errors.New("invalid descriptor")
)

const constraintViolationCode = "Neo.ClientError.Schema.ConstraintValidationFailed"

// classify wraps store failures so callers can test them with errors.Is.
// Constraint violations become ErrConflict; everything else stays a generic
// execution failure.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && neoErr.Code == constraintViolationCode {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	if strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
