package dbutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebindHelpers(t *testing.T) {
	q := "SELECT * FROM users WHERE id = $1 AND role = $2::varchar"
	assert.Equal(t, q, RebindToPositional(q))
	assert.Equal(t, "SELECT * FROM users WHERE id = ? AND role = ?::varchar", RebindToQuestion(q))
	assert.Equal(t, "SELECT * FROM users WHERE id = ? AND role = ?", StripPgCasts(RebindToQuestion(q)))
}

func TestUpsertClause(t *testing.T) {
	got := UpsertClause("id", []string{"name = EXCLUDED.name", "role = EXCLUDED.role"})
	assert.Equal(t, "ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, role = EXCLUDED.role", got)
}
