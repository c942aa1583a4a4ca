package store

import (
	"context"
	"fmt"

	"github.com/dkeye/Classroom/internal/domain"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

const clearSessionParticipantsSQL = `DELETE FROM session_participants WHERE room_id = $1`

// execer is the part of *pgxpool.Pool the store needs.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres clears durable attendance rows owned by the room service.
type Postgres struct {
	db   execer
	pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, url string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	log.Info().Str("module", "store").Msg("postgres connected")
	return &Postgres{db: pool, pool: pool}, nil
}

func (p *Postgres) ClearSessionParticipants(ctx context.Context, room domain.RoomID) error {
	tag, err := p.db.Exec(ctx, clearSessionParticipantsSQL, string(room))
	if err != nil {
		return fmt.Errorf("clear session participants of %s: %w", room, err)
	}
	log.Info().Str("module", "store").Str("room", string(room)).Int64("rows", tag.RowsAffected()).Msg("session participants cleared")
	return nil
}

func (p *Postgres) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}
