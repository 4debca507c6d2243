// Package mcp provides an MCP (Model Context Protocol) server adapter for traceq.
// It lets AI assistants search requirement journeys, analyse changes between
// versions, fact-check claims and generate test cases.
package mcp

import (
	"errors"
	"fmt"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// toolError labels err so the calling assistant can tell whether retrying
// makes sense. The original error stays in the chain.
func toolError(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("%s: not found: %w", op, err)
	case errors.Is(err, domain.ErrInvalidInput):
		return fmt.Errorf("%s: invalid arguments: %w", op, err)
	case errors.Is(err, domain.ErrNotIndexed):
		return fmt.Errorf("%s: nothing indexed yet: %w", op, err)
	case domain.IsRetrievable(err):
		return fmt.Errorf("%s: temporarily unavailable, retry later: %w", op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
