package registry

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rs/zerolog"

	db "github.com/sitevane/indexer/internal/storage"
)

// Store is the registry's pgx-backed store: a thin wrapper around a pooled
// connection, with one file per concern.
type Store struct {
	db     *db.DB
	logger *zerolog.Logger
}

// New builds a Store over an already-opened pool.
func New(database *db.DB, logger *zerolog.Logger) *Store {
	return &Store{db: database, logger: logger}
}

func toUUID(id string) pgtype.UUID {
	u, err := uuid.Parse(id)
	if err != nil {
		return pgtype.UUID{}
	}

	return pgtype.UUID{Bytes: u, Valid: true}
}

func fromUUID(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}

	return uuid.UUID(u.Bytes).String()
}

func toText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

func fromText(t pgtype.Text) string {
	if !t.Valid {
		return ""
	}

	return t.String
}

func toTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

func fromTimestamptz(t pgtype.Timestamptz) time.Time {
	if !t.Valid {
		return time.Time{}
	}

	return t.Time
}

func toInterval(d time.Duration) pgtype.Interval {
	return pgtype.Interval{Microseconds: d.Microseconds(), Valid: true}
}

func fromInterval(iv pgtype.Interval) time.Duration {
	if !iv.Valid {
		return 0
	}

	return time.Duration(iv.Microseconds) * time.Microsecond
}
