package domain

import "errors"

var (
	// ErrNotFound indicates the requested question does not exist.
	ErrNotFound = errors.New("question not found")

	// ErrInvalidInput indicates a malformed mutation request.
	ErrInvalidInput = errors.New("invalid question input")

	// ErrInvalidTags indicates one or more tag slugs are not in the catalog.
	ErrInvalidTags = errors.New("one or more tags do not exist")

	// ErrCatalogUnavailable indicates the tag catalog could not be
	// consulted. Distinct from ErrInvalidTags: "could not check" must
	// never be reported as "tag does not exist".
	ErrCatalogUnavailable = errors.New("tag catalog unavailable")

	// ErrForbidden indicates the caller is not the question's asker.
	ErrForbidden = errors.New("only the asker may modify this question")

	// ErrConflict indicates the question was mutated concurrently and the
	// write was based on stale state.
	ErrConflict = errors.New("question was modified concurrently")

	// ErrMalformedEvent indicates an event payload that cannot be applied
	// and should be dead-lettered rather than retried.
	ErrMalformedEvent = errors.New("malformed question event")
)
