package playlist

import (
	"context"
	"log"
)

func AutoMigrate(ctx context.Context, db DB) error {
	_, err := db.Exec(ctx, `
      CREATE TABLE IF NOT EXISTS queue_entries (
          id           uuid PRIMARY KEY,
          track_id     TEXT NOT NULL,
          title        TEXT NOT NULL,
          artist       TEXT NOT NULL DEFAULT '',
          album        TEXT NOT NULL DEFAULT '',
          duration_sec INT NOT NULL DEFAULT 0,
          genre        TEXT NOT NULL DEFAULT '',
          cover_url    TEXT NOT NULL DEFAULT '',
          sort_key     BIGINT NOT NULL,
          votes        INT NOT NULL DEFAULT 0,
          added_by     TEXT NOT NULL DEFAULT '',
          is_playing   BOOLEAN NOT NULL DEFAULT FALSE,
          created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
          played_at    TIMESTAMPTZ
      )
    `)
	if err != nil {
		log.Printf("mixroom: migrate queue_entries: %v", err)
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE UNIQUE INDEX IF NOT EXISTS idx_queue_entries_track
      ON queue_entries(track_id)
    `); err != nil {
		return err
	}

	if _, err := db.Exec(ctx, `
      CREATE INDEX IF NOT EXISTS idx_queue_entries_key
      ON queue_entries(sort_key)
    `); err != nil {
		return err
	}

	return nil
}
