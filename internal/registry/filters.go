package registry

import (
	"context"
	"fmt"
)

// FiltersForDomain loads the exclusion rules for a domain.
func (s *Store) FiltersForDomain(ctx context.Context, domain string) ([]Filter, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT id::text, domain, action, type, value FROM tbl_indexing_filters WHERE domain = $1`,
		domain)
	if err != nil {
		return nil, fmt.Errorf("query filters for %s: %w", domain, err)
	}
	defer rows.Close()

	var filters []Filter

	for rows.Next() {
		var f Filter

		if err := rows.Scan(&f.ID, &f.Domain, &f.Action, &f.Type, &f.Value); err != nil {
			return nil, fmt.Errorf("scan filter: %w", err)
		}

		filters = append(filters, f)
	}

	return filters, rows.Err()
}
