package store

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordExec struct {
	sql  string
	args []any
	err  error
}

func (r *recordExec) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql, r.args = sql, args
	if r.err != nil {
		return pgconn.CommandTag{}, r.err
	}
	return pgconn.NewCommandTag("DELETE 3"), nil
}

func TestClearSessionParticipants(t *testing.T) {
	db := &recordExec{}
	p := &Postgres{db: db}

	require.NoError(t, p.ClearSessionParticipants(context.Background(), "R1"))
	assert.Equal(t, clearSessionParticipantsSQL, db.sql)
	assert.Equal(t, []any{"R1"}, db.args)
	assert.NotPanics(t, p.Close)
}

func TestClearSessionParticipantsError(t *testing.T) {
	cause := errors.New("connection reset")
	p := &Postgres{db: &recordExec{err: cause}}

	err := p.ClearSessionParticipants(context.Background(), "R1")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "R1")
}

func TestNoopStore(t *testing.T) {
	assert.NoError(t, Noop{}.ClearSessionParticipants(context.Background(), "R1"))
}
