package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/oratora/internal/domain/model"
)

// Schema is the SQL DDL for the history and stats tables. Execute it via
// [PostgresStore.Migrate] or apply it during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS game_sessions (
    id            TEXT PRIMARY KEY,
    user_id       TEXT NOT NULL,
    game_type     TEXT NOT NULL,
    topic         TEXT NOT NULL DEFAULT '',
    duration      DOUBLE PRECISION NOT NULL DEFAULT 0,
    energy_levels JSONB NOT NULL DEFAULT '[]',
    completed     BOOLEAN NOT NULL DEFAULT FALSE,
    session_data  JSONB NOT NULL DEFAULT '{}',
    audio_files   JSONB NOT NULL DEFAULT '[]',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_game_sessions_user ON game_sessions(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS user_game_stats (
    user_id              TEXT NOT NULL,
    game_type            TEXT NOT NULL,
    total_sessions       INTEGER NOT NULL DEFAULT 0,
    total_duration       DOUBLE PRECISION NOT NULL DEFAULT 0,
    average_energy_level DOUBLE PRECISION,
    last_played          TIMESTAMPTZ NOT NULL,
    created_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at           TIMESTAMPTZ NOT NULL DEFAULT now(),
    PRIMARY KEY (user_id, game_type)
);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy it.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by PostgreSQL. Structured sub-fields are
// stored as JSONB.
type PostgresStore struct {
	db   DB
	pool *pgxpool.Pool
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore wraps an existing connection or pool. The caller runs
// [PostgresStore.Migrate] before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// ConnectPostgres opens a pool for dsn, pings it and applies the schema.
func ConnectPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: parse dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("repository: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("repository: ping: %w", err)
	}
	s := &PostgresStore{db: pool, pool: pool}
	if err := s.Migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the pool opened by ConnectPostgres. It is a no-op for
// stores built with NewPostgresStore.
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Migrate executes the [Schema] DDL.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("repository: migrate: %w", err)
	}
	return nil
}

const recordColumns = `id, user_id, game_type, topic, duration, energy_levels,
	completed, session_data, audio_files, created_at, updated_at`

func (s *PostgresStore) CreateSession(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	if rec.UserID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	energy, data, audio, err := marshalRecord(&rec)
	if err != nil {
		return nil, err
	}

	const query = `
		INSERT INTO game_sessions (` + recordColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,now())
		RETURNING ` + recordColumns

	out, err := scanRecord(s.db.QueryRow(ctx, query,
		rec.ID, rec.UserID, string(rec.GameType), rec.Topic, rec.Duration, energy,
		rec.Completed, data, audio, rec.CreatedAt,
	))
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, fmt.Errorf("%w: record %q already exists", ErrInvalidInput, rec.ID)
		}
		return nil, fmt.Errorf("repository: create session: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) UpdateSession(ctx context.Context, rec model.HistoryRecord) (*model.HistoryRecord, error) {
	energy, data, audio, err := marshalRecord(&rec)
	if err != nil {
		return nil, err
	}

	const query = `
		UPDATE game_sessions SET
			user_id = $2, game_type = $3, topic = $4, duration = $5,
			energy_levels = $6, completed = $7, session_data = $8,
			audio_files = $9, updated_at = now()
		WHERE id = $1
		RETURNING ` + recordColumns

	out, err := scanRecord(s.db.QueryRow(ctx, query,
		rec.ID, rec.UserID, string(rec.GameType), rec.Topic, rec.Duration, energy,
		rec.Completed, data, audio,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, rec.ID)
		}
		return nil, fmt.Errorf("repository: update session %q: %w", rec.ID, err)
	}
	return out, nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.HistoryRecord, error) {
	const query = `SELECT ` + recordColumns + ` FROM game_sessions WHERE id = $1`

	out, err := scanRecord(s.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("repository: get session %q: %w", id, err)
	}
	return out, nil
}

func (s *PostgresStore) ListUserSessions(ctx context.Context, userID string, game model.GameType) ([]model.HistoryRecord, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if game == "" {
		const query = `SELECT ` + recordColumns + ` FROM game_sessions
			WHERE user_id = $1 ORDER BY created_at DESC, id`
		rows, err = s.db.Query(ctx, query, userID)
	} else {
		const query = `SELECT ` + recordColumns + ` FROM game_sessions
			WHERE user_id = $1 AND game_type = $2 ORDER BY created_at DESC, id`
		rows, err = s.db.Query(ctx, query, userID, string(game))
	}
	if err != nil {
		return nil, fmt.Errorf("repository: list sessions: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: list sessions scan: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: list sessions: %w", err)
	}
	return out, nil
}

const statsColumns = `user_id, game_type, total_sessions, total_duration,
	average_energy_level, last_played, created_at, updated_at`

func (s *PostgresStore) RecordGamePlayed(ctx context.Context, userID string, game model.GameType, delta model.StatsDelta, at time.Time) (*model.UserGameStats, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	const query = `
		INSERT INTO user_game_stats (` + statsColumns + `)
		VALUES ($1, $2, 1, $3, $4, $5, $5, $5)
		ON CONFLICT (user_id, game_type) DO UPDATE SET
			total_sessions = user_game_stats.total_sessions + 1,
			total_duration = user_game_stats.total_duration + EXCLUDED.total_duration,
			average_energy_level = COALESCE(EXCLUDED.average_energy_level, user_game_stats.average_energy_level),
			last_played = EXCLUDED.last_played,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + statsColumns

	st, err := scanStats(s.db.QueryRow(ctx, query,
		userID, string(game), delta.Duration, meanEnergy(delta.EnergyLevels), at,
	))
	if err != nil {
		return nil, fmt.Errorf("repository: record game played: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) ListUserGameStats(ctx context.Context, userID string) ([]model.UserGameStats, error) {
	const query = `SELECT ` + statsColumns + ` FROM user_game_stats
		WHERE user_id = $1 ORDER BY game_type`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("repository: list stats: %w", err)
	}
	defer rows.Close()

	var out []model.UserGameStats
	for rows.Next() {
		st, err := scanStats(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: list stats scan: %w", err)
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: list stats: %w", err)
	}
	return out, nil
}

func marshalRecord(rec *model.HistoryRecord) (energy, data, audio []byte, err error) {
	energy, err = json.Marshal(emptySlice(rec.EnergyLevels))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("repository: marshal energy_levels: %w", err)
	}
	data, err = json.Marshal(rec.SessionData)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("repository: marshal session_data: %w", err)
	}
	audio, err = json.Marshal(emptySlice(rec.AudioFiles))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("repository: marshal audio_files: %w", err)
	}
	return energy, data, audio, nil
}

func scanRecord(row pgx.Row) (*model.HistoryRecord, error) {
	var (
		rec                 model.HistoryRecord
		game                string
		energy, data, audio []byte
	)
	if err := row.Scan(
		&rec.ID, &rec.UserID, &game, &rec.Topic, &rec.Duration, &energy,
		&rec.Completed, &data, &audio, &rec.CreatedAt, &rec.UpdatedAt,
	); err != nil {
		return nil, err
	}
	rec.GameType = model.GameType(game)
	if err := json.Unmarshal(energy, &rec.EnergyLevels); err != nil {
		return nil, fmt.Errorf("repository: unmarshal energy_levels: %w", err)
	}
	if err := json.Unmarshal(data, &rec.SessionData); err != nil {
		return nil, fmt.Errorf("repository: unmarshal session_data: %w", err)
	}
	if err := json.Unmarshal(audio, &rec.AudioFiles); err != nil {
		return nil, fmt.Errorf("repository: unmarshal audio_files: %w", err)
	}
	return &rec, nil
}

func scanStats(row pgx.Row) (*model.UserGameStats, error) {
	var (
		st   model.UserGameStats
		game string
	)
	if err := row.Scan(
		&st.UserID, &game, &st.TotalSessions, &st.TotalDuration,
		&st.AverageEnergyLevel, &st.LastPlayed, &st.CreatedAt, &st.UpdatedAt,
	); err != nil {
		return nil, err
	}
	st.GameType = model.GameType(game)
	return &st, nil
}

func emptySlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
