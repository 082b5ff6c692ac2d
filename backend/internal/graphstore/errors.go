package graphstore

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"sciencetopia/backend/pkg/errors"
)

const (
	codeConstraintValidation = "Neo.ClientError.Schema.ConstraintValidationFailed"
	codeStatementPrefix      = "Neo.ClientError.Statement."
)

// Classify maps driver errors onto the store taxonomy. Errors that already
// carry a taxonomy type, and context cancellation, pass through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.TypeOf(err) != "" {
		return err
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if neo4j.IsConnectivityError(err) {
		return errors.NewStoreUnavailable(err)
	}

	var neoErr *neo4j.Neo4jError
	if stderrors.As(err, &neoErr) {
		switch {
		case neoErr.Code == codeConstraintValidation:
			return errors.NewConstraintViolation(err)
		case strings.HasPrefix(neoErr.Code, codeStatementPrefix):
			return errors.NewQueryError("", err)
		}
	}
	return err
}
