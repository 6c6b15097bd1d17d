package scheduler

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitevane/indexer/internal/crawler"
	"github.com/sitevane/indexer/internal/registry"
	"github.com/sitevane/indexer/internal/siteconfig"
	"github.com/sitevane/indexer/internal/writer"
)

type fakeStore struct {
	mu sync.Mutex

	selected  []registry.SelectedDomain
	filters   map[string][]registry.Filter
	suffixes  []string
	domains   map[string]struct{}
	stuck     []string
	tiers     map[int]registry.Tier
	expired   map[int][]registry.ExpiredListing
	completed []string
	demoted   []string
	tier1     []string
}

func (f *fakeStore) SelectAndStart(context.Context) ([]registry.SelectedDomain, error) {
	return f.selected, nil
}

func (f *fakeStore) FiltersForDomain(_ context.Context, domain string) ([]registry.Filter, error) {
	return f.filters[domain], nil
}

func (f *fakeStore) SubdomainsAllowed(context.Context) ([]string, error) {
	return f.suffixes, nil
}

func (f *fakeStore) AllOtherDomains(context.Context) (map[string]struct{}, error) {
	return f.domains, nil
}

func (f *fakeStore) Complete(_ context.Context, domain string, _, _ bool, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.completed = append(f.completed, domain+"|"+message)

	return nil
}

func (f *fakeStore) StuckDomains(context.Context) ([]string, error) {
	return f.stuck, nil
}

func (f *fakeStore) Tiers(context.Context) (map[int]registry.Tier, error) {
	return f.tiers, nil
}

func (f *fakeStore) ExpiredListingsForTier(_ context.Context, tier int) ([]registry.ExpiredListing, error) {
	return f.expired[tier], nil
}

func (f *fakeStore) ExpireTier1ToModeratorReview(_ context.Context, domain string) error {
	f.tier1 = append(f.tier1, domain)
	return nil
}

func (f *fakeStore) DemoteToLowerTier(_ context.Context, domain string, lower registry.Tier) error {
	f.demoted = append(f.demoted, domain)
	return nil
}

type fakeIndex struct {
	inlinks map[string][]string
	prior   map[string]siteconfig.PriorContent
	already map[string]struct{}
}

func (f *fakeIndex) Inlinks(context.Context, string) (map[string][]string, error) {
	return f.inlinks, nil
}

func (f *fakeIndex) PriorContents(context.Context, string) (map[string]siteconfig.PriorContent, error) {
	return f.prior, nil
}

func (f *fakeIndex) AlreadyIndexedURLs(context.Context, string) (map[string]struct{}, error) {
	return f.already, nil
}

type fakeCleaner struct {
	deleted []string
}

func (f *fakeCleaner) DeleteDomain(_ context.Context, domain string) error {
	f.deleted = append(f.deleted, domain)
	return nil
}

type fakeCrawler struct {
	mu      sync.Mutex
	crawled []*siteconfig.Config
	result  crawler.Result
}

func (f *fakeCrawler) Crawl(_ context.Context, cfg *siteconfig.Config) (crawler.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.crawled = append(f.crawled, cfg)

	return f.result, nil
}

type fakeCommitter struct {
	mu     sync.Mutex
	result writer.Result
	calls  int
}

func (f *fakeCommitter) Commit(context.Context, *siteconfig.Config, crawler.Result) (writer.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++

	return f.result, nil
}

type fakeNotifier struct {
	expiry   []string
	failures []string
}

func (f *fakeNotifier) TierExpiryNotice(_ context.Context, domain string) error {
	f.expiry = append(f.expiry, domain)
	return nil
}

func (f *fakeNotifier) RepeatedFailureNotice(_ context.Context, domain, _ string) error {
	f.failures = append(f.failures, domain)
	return nil
}

func newTestScheduler(store *fakeStore, index *fakeIndex, cleaner *fakeCleaner, cr *fakeCrawler, cm *fakeCommitter, n *fakeNotifier) *Scheduler {
	logger := zerolog.Nop()
	return New(Config{MaxConcurrentSites: 2}, store, index, cleaner, cr, cm, n, &logger)
}

func selectedDomain(domain string, full bool, pageLimit, tier int) registry.SelectedDomain {
	return registry.SelectedDomain{
		Domain: registry.Domain{
			Domain:            domain,
			HomePageURL:       "https://" + domain + "/",
			IndexingPageLimit: pageLimit,
			ListingTier:       tier,
			ListingStatus:     registry.ListingActive,
		},
		FullIndex: full,
	}
}

func TestRunOnce_CrawlsAndCommitsSelectedDomains(t *testing.T) {
	store := &fakeStore{
		selected: []registry.SelectedDomain{
			selectedDomain("example.com", true, 10, 1),
			selectedDomain("other.org", true, 10, 2),
		},
		domains: map[string]struct{}{"example.com": {}, "other.org": {}},
		tiers:   map[int]registry.Tier{},
		expired: map[int][]registry.ExpiredListing{},
	}
	index := &fakeIndex{}
	cr := &fakeCrawler{}
	cm := &fakeCommitter{result: writer.Result{DocumentsWritten: 1, LogMessage: "SUCCESS: 1 documents found."}}
	n := &fakeNotifier{}

	s := newTestScheduler(store, index, &fakeCleaner{}, cr, cm, n)
	require.NoError(t, s.RunOnce(context.Background()))

	assert.Len(t, cr.crawled, 2)
	assert.Equal(t, 2, cm.calls)
	assert.Empty(t, n.failures)
}

func TestRunOnce_ExcludesSelfFromOtherDomains(t *testing.T) {
	store := &fakeStore{
		selected: []registry.SelectedDomain{selectedDomain("example.com", true, 10, 1)},
		domains:  map[string]struct{}{"example.com": {}, "other.org": {}},
		tiers:    map[int]registry.Tier{},
		expired:  map[int][]registry.ExpiredListing{},
	}
	cr := &fakeCrawler{}
	cm := &fakeCommitter{}

	s := newTestScheduler(store, &fakeIndex{}, &fakeCleaner{}, cr, cm, &fakeNotifier{})
	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, cr.crawled, 1)
	cfg := cr.crawled[0]
	assert.NotContains(t, cfg.Common.OtherDomains, "example.com")
	assert.Contains(t, cfg.Common.OtherDomains, "other.org")
}

func TestRunOnce_IncrementalAtPageLimitIsSkipped(t *testing.T) {
	store := &fakeStore{
		selected: []registry.SelectedDomain{selectedDomain("example.com", false, 2, 1)},
		domains:  map[string]struct{}{"example.com": {}},
		tiers:    map[int]registry.Tier{},
		expired:  map[int][]registry.ExpiredListing{},
	}
	index := &fakeIndex{already: map[string]struct{}{
		"https://example.com/":  {},
		"https://example.com/a": {},
	}}
	cr := &fakeCrawler{}
	cm := &fakeCommitter{}

	s := newTestScheduler(store, index, &fakeCleaner{}, cr, cm, &fakeNotifier{})
	require.NoError(t, s.RunOnce(context.Background()))

	assert.Empty(t, cr.crawled)
	assert.Equal(t, 0, cm.calls)
	require.Len(t, store.completed, 1)
	assert.Contains(t, store.completed[0], "WARNING: page limit of 2 reached")
}

func TestRunOnce_IncrementalReducesEffectivePageLimit(t *testing.T) {
	store := &fakeStore{
		selected: []registry.SelectedDomain{selectedDomain("example.com", false, 10, 1)},
		domains:  map[string]struct{}{"example.com": {}},
		tiers:    map[int]registry.Tier{},
		expired:  map[int][]registry.ExpiredListing{},
	}
	index := &fakeIndex{already: map[string]struct{}{
		"https://example.com/":  {},
		"https://example.com/a": {},
		"https://example.com/b": {},
	}}
	cr := &fakeCrawler{}

	s := newTestScheduler(store, index, &fakeCleaner{}, cr, &fakeCommitter{}, &fakeNotifier{})
	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, cr.crawled, 1)
	assert.Equal(t, 7, cr.crawled[0].EffectivePageLimit)
}

func TestRunOnce_Tier3DisableSendsNotice(t *testing.T) {
	store := &fakeStore{
		selected: []registry.SelectedDomain{selectedDomain("example.com", true, 10, 3)},
		domains:  map[string]struct{}{"example.com": {}},
		tiers:    map[int]registry.Tier{},
		expired:  map[int][]registry.ExpiredListing{},
	}
	cm := &fakeCommitter{result: writer.Result{Disabled: true, LogMessage: "WARNING: 0 documents found."}}
	n := &fakeNotifier{}

	s := newTestScheduler(store, &fakeIndex{}, &fakeCleaner{}, &fakeCrawler{}, cm, n)
	require.NoError(t, s.RunOnce(context.Background()))

	assert.Equal(t, []string{"example.com"}, n.failures)
}

func TestRunOnce_Tier1DisableDoesNotNotify(t *testing.T) {
	store := &fakeStore{
		selected: []registry.SelectedDomain{selectedDomain("example.com", true, 10, 1)},
		domains:  map[string]struct{}{"example.com": {}},
		tiers:    map[int]registry.Tier{},
		expired:  map[int][]registry.ExpiredListing{},
	}
	cm := &fakeCommitter{result: writer.Result{Disabled: true}}
	n := &fakeNotifier{}

	s := newTestScheduler(store, &fakeIndex{}, &fakeCleaner{}, &fakeCrawler{}, cm, n)
	require.NoError(t, s.RunOnce(context.Background()))

	assert.Empty(t, n.failures)
}

func TestExpireListings_Tier1DeletesDocuments(t *testing.T) {
	store := &fakeStore{
		tiers: map[int]registry.Tier{1: {Tier: 1}},
		expired: map[int][]registry.ExpiredListing{
			1: {{Domain: "old.example.com", Tier: 1}},
		},
	}
	cleaner := &fakeCleaner{}

	s := newTestScheduler(store, &fakeIndex{}, cleaner, &fakeCrawler{}, &fakeCommitter{}, &fakeNotifier{})
	s.expireListings(context.Background())

	assert.Equal(t, []string{"old.example.com"}, store.tier1)
	assert.Equal(t, []string{"old.example.com"}, cleaner.deleted)
}

func TestExpireListings_Tier3DemotesAndNotifies(t *testing.T) {
	store := &fakeStore{
		tiers: map[int]registry.Tier{2: {Tier: 2}, 3: {Tier: 3}},
		expired: map[int][]registry.ExpiredListing{
			3: {{Domain: "paid.example.com", Tier: 3}},
		},
	}
	n := &fakeNotifier{}

	s := newTestScheduler(store, &fakeIndex{}, &fakeCleaner{}, &fakeCrawler{}, &fakeCommitter{}, n)
	s.expireListings(context.Background())

	assert.Equal(t, []string{"paid.example.com"}, store.demoted)
	assert.Equal(t, []string{"paid.example.com"}, n.expiry)
}

func TestExpireListings_Tier2DemotesWithoutNotice(t *testing.T) {
	store := &fakeStore{
		tiers: map[int]registry.Tier{1: {Tier: 1}, 2: {Tier: 2}},
		expired: map[int][]registry.ExpiredListing{
			2: {{Domain: "trial.example.com", Tier: 2}},
		},
	}
	n := &fakeNotifier{}

	s := newTestScheduler(store, &fakeIndex{}, &fakeCleaner{}, &fakeCrawler{}, &fakeCommitter{}, n)
	s.expireListings(context.Background())

	assert.Equal(t, []string{"trial.example.com"}, store.demoted)
	assert.Empty(t, n.expiry)
}
