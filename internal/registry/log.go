package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Complete records a finished indexing job: it appends a COMPLETE log row
// and, on success, advances the completion timestamps.
func (s *Store) Complete(ctx context.Context, domain string, fullIndex bool, success bool, message string) error {
	tx, err := s.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin complete tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx,
		`INSERT INTO tbl_indexing_log (domain, status, occurred_at, message) VALUES ($1, $2, now(), $3)`,
		domain, IndexingComplete, message,
	); err != nil {
		return fmt.Errorf("log complete for %s: %w", domain, err)
	}

	if success {
		if fullIndex {
			if _, err := tx.Exec(ctx,
				`UPDATE tbl_domains SET indexing_status = $1, indexing_status_changed = now(),
				   last_index_completed = now(), last_full_index_completed = now() WHERE domain = $2`,
				IndexingComplete, domain,
			); err != nil {
				return fmt.Errorf("advance full completion for %s: %w", domain, err)
			}
		} else {
			if _, err := tx.Exec(ctx,
				`UPDATE tbl_domains SET indexing_status = $1, indexing_status_changed = now(),
				   last_index_completed = now() WHERE domain = $2`,
				IndexingComplete, domain,
			); err != nil {
				return fmt.Errorf("advance incremental completion for %s: %w", domain, err)
			}
		}
	} else {
		if _, err := tx.Exec(ctx,
			`UPDATE tbl_domains SET indexing_status = $1, indexing_status_changed = now() WHERE domain = $2`,
			IndexingComplete, domain,
		); err != nil {
			return fmt.Errorf("mark complete (no advance) for %s: %w", domain, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit complete tx: %w", err)
	}

	return nil
}

// Disable turns off indexing for a domain, recording the reason; invoked
// after two consecutive zero-document crawls.
func (s *Store) Disable(ctx context.Context, domain, reason string) error {
	_, err := s.db.Pool.Exec(ctx,
		`UPDATE tbl_domains SET indexing_enabled = FALSE, indexing_disabled_reason = $1,
		   indexing_disabled_changed = now() WHERE domain = $2`,
		reason, domain)
	if err != nil {
		return fmt.Errorf("disable %s: %w", domain, err)
	}

	return nil
}

// LastLogMessage returns the message of the most recent COMPLETE log row for
// domain, or "" if there is none. Used by the Index Writer to detect two
// consecutive zero-document WARNINGs by comparing message prefixes.
func (s *Store) LastLogMessage(ctx context.Context, domain string) (string, error) {
	row := s.db.Pool.QueryRow(ctx,
		`SELECT message FROM tbl_indexing_log WHERE domain = $1 AND status = $2
		   ORDER BY occurred_at DESC LIMIT 1`,
		domain, IndexingComplete)

	var message string
	if err := row.Scan(&message); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}

		return "", fmt.Errorf("last log message for %s: %w", domain, err)
	}

	return message, nil
}
