package playlist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mixroom/pkg/order"
)

func newMockRepo(t *testing.T) (*PGRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPGRepository(mock), mock
}

func TestPGRepository_CreateEntry(t *testing.T) {
	repo, mock := newMockRepo(t)

	e := Entry{
		ID:        "e1",
		Track:     Track{ID: "t1", Title: "Song", Artist: "Band", DurationSec: 200},
		Key:       order.Origin,
		AddedBy:   "alice",
		CreatedAt: time.Now(),
	}

	mock.ExpectExec("INSERT INTO queue_entries").
		WithArgs(e.ID, "t1", "Song", "Band", "", 200, "", "",
			int64(order.Origin), 0, "alice", false, e.CreatedAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.CreateEntry(context.Background(), e))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPGRepository_CreateEntry_DuplicateTrack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("INSERT INTO queue_entries").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.CreateEntry(context.Background(), Entry{ID: "e1", Track: Track{ID: "t1"}})
	assert.ErrorIs(t, err, ErrDuplicateTrack)
}

func TestPGRepository_UpdateEntry(t *testing.T) {
	t.Run("key only", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		key := order.Key(42)
		mock.ExpectExec("UPDATE queue_entries SET sort_key").
			WithArgs("e1", int64(42)).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateEntry(context.Background(), EntryUpdate{ID: "e1", Key: &key}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("playing with timestamp", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		playing := true
		at := time.Now().UTC()
		mock.ExpectExec("UPDATE queue_entries SET is_playing").
			WithArgs("e1", true, at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		require.NoError(t, repo.UpdateEntry(context.Background(), EntryUpdate{
			ID: "e1", IsPlaying: &playing, PlayedAt: &at,
		}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown entry", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		votes := 1
		mock.ExpectExec("UPDATE queue_entries SET votes").
			WithArgs("nope", 1).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateEntry(context.Background(), EntryUpdate{ID: "nope", Votes: &votes})
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("nothing to change", func(t *testing.T) {
		repo, mock := newMockRepo(t)
		require.NoError(t, repo.UpdateEntry(context.Background(), EntryUpdate{ID: "e1"}))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPGRepository_DeleteEntry(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec("DELETE FROM queue_entries").
		WithArgs("e1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	require.NoError(t, repo.DeleteEntry(context.Background(), "e1"))

	mock.ExpectExec("DELETE FROM queue_entries").
		WithArgs("nope").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	assert.ErrorIs(t, repo.DeleteEntry(context.Background(), "nope"), ErrNotFound)
}

func TestPGRepository_ListEntriesOrderedByKey(t *testing.T) {
	repo, mock := newMockRepo(t)

	created := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "track_id", "title", "artist", "album", "duration_sec", "genre",
		"cover_url", "sort_key", "votes", "added_by", "is_playing", "created_at", "played_at",
	}).
		AddRow("e1", "t1", "First", "Band", "", 100, "", "", int64(0), 2, "alice", false, created, (*time.Time)(nil)).
		AddRow("e2", "t2", "Second", "Band", "", 120, "", "", int64(order.Step), 0, "bob", true, created, &created)

	mock.ExpectQuery("SELECT (.+) FROM queue_entries").WillReturnRows(rows)

	entries, err := repo.ListEntriesOrderedByKey(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "t1", entries[0].Track.ID)
	assert.Equal(t, order.Key(0), entries[0].Key)
	assert.True(t, entries[1].IsPlaying)
	require.NotNil(t, entries[1].PlayedAt)
}

func TestPGRepository_ListEntries_Error(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery("SELECT (.+) FROM queue_entries").
		WillReturnError(errors.New("connection refused"))

	_, err := repo.ListEntriesOrderedByKey(context.Background())
	assert.Error(t, err)
}
