package registry

import (
	"context"
	"fmt"
	"strings"
)

// settingSubdomainsAllowed is the tbl_settings key holding the
// comma-separated list of registrable domains for which one extra subdomain
// label is kept.
const settingSubdomainsAllowed = "subdomains_allowed"

// SubdomainsAllowed loads the configured subdomain-allowed suffix list, used
// once per scheduling pass to build the shared domainid.Extractor.
func (s *Store) SubdomainsAllowed(ctx context.Context) ([]string, error) {
	row := s.db.Pool.QueryRow(ctx, `SELECT value FROM tbl_settings WHERE key = $1`, settingSubdomainsAllowed)

	var value string
	if err := row.Scan(&value); err != nil {
		return nil, fmt.Errorf("load %s setting: %w", settingSubdomainsAllowed, err)
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}

	parts := strings.Split(value, ",")
	suffixes := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			suffixes = append(suffixes, p)
		}
	}

	return suffixes, nil
}

// AllOtherDomains loads every registered domain, used by the Page Parser to
// decide which outbound links count as "indexed outlinks".
func (s *Store) AllOtherDomains(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT domain FROM tbl_domains`)
	if err != nil {
		return nil, fmt.Errorf("load all domains: %w", err)
	}
	defer rows.Close()

	domains := make(map[string]struct{})

	for rows.Next() {
		var domain string
		if err := rows.Scan(&domain); err != nil {
			return nil, fmt.Errorf("scan domain: %w", err)
		}

		domains[domain] = struct{}{}
	}

	return domains, rows.Err()
}
