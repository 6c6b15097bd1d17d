package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomain_FullIndexDue(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		d    Domain
		want bool
	}{
		{
			name: "pending indexing status forces full",
			d:    Domain{IndexingStatus: IndexingPending},
			want: true,
		},
		{
			name: "never full-indexed",
			d:    Domain{IndexingStatus: IndexingComplete},
			want: true,
		},
		{
			name: "full reindex frequency elapsed",
			d: Domain{
				IndexingStatus:         IndexingComplete,
				LastFullIndexCompleted: now.Add(-31 * 24 * time.Hour),
				FullReindexFrequency:   30 * 24 * time.Hour,
			},
			want: true,
		},
		{
			name: "full reindex not yet due",
			d: Domain{
				IndexingStatus:         IndexingComplete,
				LastFullIndexCompleted: now.Add(-1 * time.Hour),
				FullReindexFrequency:   30 * 24 * time.Hour,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.FullIndexDue(now))
		})
	}
}

func TestDomain_IncrementalIndexDue(t *testing.T) {
	now := time.Date(2026, 7, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		d    Domain
		want bool
	}{
		{
			name: "never indexed",
			d:    Domain{},
			want: true,
		},
		{
			name: "frequency elapsed",
			d: Domain{
				LastIndexCompleted:          now.Add(-8 * 24 * time.Hour),
				IncrementalReindexFrequency: 7 * 24 * time.Hour,
			},
			want: true,
		},
		{
			name: "not yet due",
			d: Domain{
				LastIndexCompleted:          now.Add(-1 * time.Hour),
				IncrementalReindexFrequency: 7 * 24 * time.Hour,
			},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.d.IncrementalIndexDue(now))
		})
	}
}
