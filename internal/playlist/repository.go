package playlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"mixroom/pkg/order"
)

// DB is the subset of pgxpool.Pool the repository uses.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository persists queue entries in Postgres. Each call is a single
// statement; the unique index on track_id backstops the in-memory duplicate
// check.
type PGRepository struct {
	db DB
}

func NewPGRepository(db DB) *PGRepository {
	return &PGRepository{db: db}
}

func (r *PGRepository) CreateEntry(ctx context.Context, e Entry) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO queue_entries (
			id, track_id, title, artist, album, duration_sec, genre,
			cover_url, sort_key, votes, added_by, is_playing, created_at, played_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`,
		e.ID, e.Track.ID, e.Track.Title, e.Track.Artist, e.Track.Album,
		e.Track.DurationSec, e.Track.Genre, e.Track.CoverURL,
		int64(e.Key), e.Votes, e.AddedBy, e.IsPlaying, e.CreatedAt, e.PlayedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateTrack
	}
	return err
}

func (r *PGRepository) UpdateEntry(ctx context.Context, u EntryUpdate) error {
	set := ""
	args := []any{u.ID}
	add := func(col string, v any) {
		if set != "" {
			set += ", "
		}
		args = append(args, v)
		set += fmt.Sprintf("%s = $%d", col, len(args))
	}
	if u.Key != nil {
		add("sort_key", int64(*u.Key))
	}
	if u.Votes != nil {
		add("votes", *u.Votes)
	}
	if u.IsPlaying != nil {
		add("is_playing", *u.IsPlaying)
	}
	if u.PlayedAt != nil {
		add("played_at", *u.PlayedAt)
	}
	if set == "" {
		return nil
	}

	tag, err := r.db.Exec(ctx, `UPDATE queue_entries SET `+set+` WHERE id = $1`, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) DeleteEntry(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM queue_entries WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PGRepository) ListEntriesOrderedByKey(ctx context.Context) ([]Entry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, track_id, title, artist, album, duration_sec, genre,
		       cover_url, sort_key, votes, added_by, is_playing, created_at, played_at
		FROM queue_entries
		ORDER BY sort_key ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var key int64
		if err := rows.Scan(
			&e.ID, &e.Track.ID, &e.Track.Title, &e.Track.Artist, &e.Track.Album,
			&e.Track.DurationSec, &e.Track.Genre, &e.Track.CoverURL,
			&key, &e.Votes, &e.AddedBy, &e.IsPlaying, &e.CreatedAt, &e.PlayedAt,
		); err != nil {
			return nil, err
		}
		e.Key = order.Key(key)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
