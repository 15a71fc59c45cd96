package port

import (
	"context"

	"typeinf/internal/domain"
)

// TypeChecker runs a static type checker over source text with
// annotation edits applied. On success it returns diagnostics keyed by
// source position. When the checker itself crashes it returns a
// CheckFailure value instead; callers treat that as zero diagnostics and
// count it separately.
type TypeChecker interface {
	// Check type-checks code as the content of the file at path,
	// resolved within dir. searchPath optionally overrides the import
	// resolution root.
	Check(ctx context.Context, code, path, dir, searchPath string) (map[domain.Position]string, *domain.CheckFailure, error)

	// ClearTempCache drops any per-run scratch state.
	ClearTempCache() error
}
