package service

import (
	"github.com/klaslab/school-api/internal/repository"
)

// isUniqueViolation reports whether a write failed on a unique index.
// Services turn these into Conflict instead of surfacing a raw driver
// error; the index is what actually wins check-then-act races.
func isUniqueViolation(err error) bool {
	return repository.IsUniqueViolation(err)
}
