package writer

import (
	"context"
	"fmt"
)

// Schema creates the samples hypertable. create_hypertable is skipped when
// the TimescaleDB extension is not installed.
const Schema = `
CREATE TABLE IF NOT EXISTS samples (
	source      TEXT             NOT NULL,
	sample_ts   TEXT             NOT NULL,
	value       DOUBLE PRECISION NOT NULL,
	received_at TIMESTAMPTZ      NOT NULL,
	UNIQUE (source, sample_ts, received_at)
);

DO $$
BEGIN
	IF EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'timescaledb') THEN
		PERFORM create_hypertable('samples', 'received_at', if_not_exists => TRUE);
	END IF;
END
$$;
`

// EnsureSchema applies Schema.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure samples schema: %w", err)
	}
	return nil
}
