package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/wdx/internal/models"
	"github.com/desertthunder/wdx/internal/services"
	"github.com/desertthunder/wdx/internal/shared"
	"golang.org/x/oauth2"
)

var asOf = time.Date(2025, time.March, 15, 12, 0, 0, 0, time.UTC)

func artist(id string) models.Artist {
	return models.Artist{ID: id, Name: "Artist " + id}
}

func release(id, artistID, date string) models.Release {
	parsed, err := models.ParseReleaseDate(date)
	if err != nil {
		panic(err)
	}
	return models.Release{ID: id, ArtistID: artistID, Title: "Release " + id, Date: parsed}
}

func track(id string, artistIDs ...string) models.Track {
	return models.Track{
		ID:        id,
		Title:     "Track " + id,
		ArtistIDs: artistIDs,
		URI:       "spotify:track:" + id,
	}
}

// fakeCatalog serves canned data with optional per-artist failures. All maps
// are keyed by artist or release ID.
type fakeCatalog struct {
	mu sync.Mutex

	user     *models.User
	followed []models.Artist
	related  map[string][]models.Artist
	releases map[string][]models.Release
	tracks   map[string][]models.Track

	failRelated  map[string]error
	failReleases map[string]error

	releaseCalls []string
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		user:         &models.User{ID: "user1", DisplayName: "Test User"},
		related:      map[string][]models.Artist{},
		releases:     map[string][]models.Release{},
		tracks:       map[string][]models.Track{},
		failRelated:  map[string]error{},
		failReleases: map[string]error{},
	}
}

func (c *fakeCatalog) CurrentUser(ctx context.Context) (*models.User, error) {
	if c.user == nil {
		return nil, shared.ErrTokenExpired
	}
	return c.user, nil
}

func (c *fakeCatalog) FollowedArtists(ctx context.Context) ([]models.Artist, error) {
	return c.followed, nil
}

func (c *fakeCatalog) RelatedArtists(ctx context.Context, artistID string) ([]models.Artist, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failRelated[artistID]; err != nil {
		return nil, err
	}
	return c.related[artistID], nil
}

func (c *fakeCatalog) ArtistReleases(ctx context.Context, artistID string, limit, offset int) ([]models.Release, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.failReleases[artistID]; err != nil {
		return nil, false, err
	}
	c.releaseCalls = append(c.releaseCalls, fmt.Sprintf("%s:%d", artistID, offset))

	all := c.releases[artistID]
	if offset >= len(all) {
		return nil, false, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], end < len(all), nil
}

func (c *fakeCatalog) ReleaseTracks(ctx context.Context, releaseID string) ([]models.Track, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tracks[releaseID], nil
}

func (c *fakeCatalog) Name() string { return "Fake" }

// fakePublisher records playlist writes.
type fakePublisher struct {
	existing *models.PlaylistTarget

	created  []string
	replaced [][]string
	appended [][]string
}

func (p *fakePublisher) FindPlaylistByName(ctx context.Context, name string) (*models.PlaylistTarget, error) {
	if p.existing != nil && p.existing.Name == name {
		return p.existing, nil
	}
	return nil, fmt.Errorf("%w: %s", shared.ErrPlaylistNotFound, name)
}

func (p *fakePublisher) CreatePlaylist(ctx context.Context, ownerID, name, description string) (*models.PlaylistTarget, error) {
	p.created = append(p.created, name)
	return &models.PlaylistTarget{
		PlaylistID: "pl_" + name,
		OwnerID:    ownerID,
		Name:       name,
		URL:        "https://example.com/playlist/" + name,
	}, nil
}

func (p *fakePublisher) ReplaceTracks(ctx context.Context, playlistID string, uris []string) error {
	p.replaced = append(p.replaced, uris)
	return nil
}

func (p *fakePublisher) AppendTracks(ctx context.Context, playlistID string, uris []string) error {
	p.appended = append(p.appended, uris)
	return nil
}

// memoryPlaylistStore keeps playlist records keyed by owner and date.
type memoryPlaylistStore struct {
	records map[string]*models.PlaylistRecord
	updates int
}

func newMemoryPlaylistStore() *memoryPlaylistStore {
	return &memoryPlaylistStore{records: map[string]*models.PlaylistRecord{}}
}

func (s *memoryPlaylistStore) GetByOwnerAndDate(ownerID, targetDate string) (*models.PlaylistRecord, error) {
	record, ok := s.records[ownerID+"|"+targetDate]
	if !ok {
		return nil, shared.ErrPlaylistNotFound
	}
	return record, nil
}

func (s *memoryPlaylistStore) Create(record *models.PlaylistRecord) error {
	s.records[record.OwnerID+"|"+record.TargetDate] = record
	return nil
}

func (s *memoryPlaylistStore) Update(record *models.PlaylistRecord) error {
	s.updates++
	s.records[record.OwnerID+"|"+record.TargetDate] = record
	return nil
}

// memoryRunStore keeps every run record version it sees.
type memoryRunStore struct {
	created []*models.RunRecord
	updated []*models.RunRecord
}

func (s *memoryRunStore) Create(record *models.RunRecord) error {
	s.created = append(s.created, record)
	return nil
}

func (s *memoryRunStore) Update(record *models.RunRecord) error {
	s.updated = append(s.updated, record)
	return nil
}

func newTestEngine(catalog *fakeCatalog, publisher *fakePublisher, playlists PlaylistStore, runs RunStore) *DiscoveryEngine {
	return NewDiscoveryEngine(catalog, publisher, playlists, runs, shared.NewLogger(nil))
}

func testOpts() RunOpts {
	return RunOpts{
		Window:              7 * 24 * time.Hour,
		AsOf:                asOf,
		MaxRelatedPerArtist: 5,
		MaxArtists:          50,
		Depth:               1,
		Workers:             2,
		ReleasePageLimit:    10,
	}
}

func TestExpand(t *testing.T) {
	t.Run("Seeds Always Kept", func(t *testing.T) {
		catalog := newFakeCatalog()
		seeds := make([]models.Artist, 8)
		for i := range seeds {
			seeds[i] = artist(fmt.Sprintf("seed%d", i))
		}
		engine := newTestEngine(catalog, nil, nil, nil)

		pool, _, err := engine.Expand(context.Background(), nil, seeds, ExpandOpts{
			MaxPerArtist: 5, MaxTotal: 3, Depth: 1, Workers: 2,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pool) != 8 {
			t.Errorf("expected all 8 seeds kept despite cap of 3, got %d", len(pool))
		}
	})

	t.Run("Related Capped Per Artist", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.related["a"] = []models.Artist{artist("r1"), artist("r2"), artist("r3"), artist("r4")}
		engine := newTestEngine(catalog, nil, nil, nil)

		pool, _, err := engine.Expand(context.Background(), nil, []models.Artist{artist("a")}, ExpandOpts{
			MaxPerArtist: 2, MaxTotal: 50, Depth: 1, Workers: 1,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pool) != 3 {
			t.Fatalf("expected seed plus 2 related, got %d artists", len(pool))
		}
		if pool[1].ID != "r1" || pool[2].ID != "r2" {
			t.Errorf("expected first two related artists kept in order, got %v", pool)
		}
	})

	t.Run("No Duplicate Artists", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.related["a"] = []models.Artist{artist("b"), artist("shared")}
		catalog.related["b"] = []models.Artist{artist("a"), artist("shared")}
		engine := newTestEngine(catalog, nil, nil, nil)

		pool, _, err := engine.Expand(context.Background(), nil, []models.Artist{artist("a"), artist("b")}, ExpandOpts{
			MaxPerArtist: 5, MaxTotal: 50, Depth: 1, Workers: 2,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen := map[string]int{}
		for _, a := range pool {
			seen[a.ID]++
		}
		for id, n := range seen {
			if n > 1 {
				t.Errorf("artist %s appears %d times", id, n)
			}
		}
		if len(pool) != 3 {
			t.Errorf("expected a, b, shared, got %v", pool)
		}
	})

	t.Run("Total Cap Halts Expansion", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.related["a"] = []models.Artist{artist("c"), artist("d"), artist("e")}
		engine := newTestEngine(catalog, nil, nil, nil)

		pool, _, err := engine.Expand(context.Background(), nil, []models.Artist{artist("a")}, ExpandOpts{
			MaxPerArtist: 5, MaxTotal: 2, Depth: 1, Workers: 1,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pool) != 2 {
			t.Errorf("expected pool capped at 2, got %d", len(pool))
		}
	})

	t.Run("Failed Related Fetch Skips Artist", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.related["a"] = []models.Artist{artist("c")}
		catalog.failRelated["b"] = fmt.Errorf("%w after 4 attempts", shared.ErrRetryExhausted)
		engine := newTestEngine(catalog, nil, nil, nil)

		pool, failures, err := engine.Expand(context.Background(), nil, []models.Artist{artist("a"), artist("b")}, ExpandOpts{
			MaxPerArtist: 5, MaxTotal: 50, Depth: 1, Workers: 2,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(failures) != 1 || failures[0].Artist.ID != "b" {
			t.Fatalf("expected b reported as skipped, got %v", failures)
		}
		ids := map[string]bool{}
		for _, a := range pool {
			ids[a.ID] = true
		}
		if !ids["b"] {
			t.Error("seed b should stay in the pool even when its expansion failed")
		}
		if !ids["c"] {
			t.Error("expansion of a should still contribute c")
		}
	})

	t.Run("Token Expiry Aborts", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.failRelated["a"] = shared.ErrTokenExpired
		engine := newTestEngine(catalog, nil, nil, nil)

		_, _, err := engine.Expand(context.Background(), nil, []models.Artist{artist("a")}, ExpandOpts{
			MaxPerArtist: 5, MaxTotal: 50, Depth: 1, Workers: 1,
		})
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
	})

	t.Run("Depth Two Reaches Second Hop", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.related["a"] = []models.Artist{artist("b")}
		catalog.related["b"] = []models.Artist{artist("c")}
		engine := newTestEngine(catalog, nil, nil, nil)

		pool, _, err := engine.Expand(context.Background(), nil, []models.Artist{artist("a")}, ExpandOpts{
			MaxPerArtist: 5, MaxTotal: 50, Depth: 2, Workers: 1,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(pool) != 3 || pool[2].ID != "c" {
			t.Errorf("expected second hop artist c in pool, got %v", pool)
		}
	})
}

func TestScan(t *testing.T) {
	t.Run("Window Filters Releases", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.releases["a"] = []models.Release{
			release("in", "a", "2025-03-14"),
			release("boundary", "a", "2025-03-08"),
			release("out", "a", "2025-03-01"),
		}
		catalog.tracks["in"] = []models.Track{track("t1", "a")}
		catalog.tracks["boundary"] = []models.Track{track("t2", "a")}
		catalog.tracks["out"] = []models.Track{track("t3", "a")}
		engine := newTestEngine(catalog, nil, nil, nil)

		scan, _, err := engine.Scan(context.Background(), nil, []models.Artist{artist("a")}, ScanOpts{
			Window: 7 * 24 * time.Hour, AsOf: asOf, Workers: 1, PageLimit: 10,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got := scan.Releases["a"]
		if len(got) != 2 {
			t.Fatalf("expected 2 in-window releases, got %d", len(got))
		}
		if got[0].ID != "in" || got[1].ID != "boundary" {
			t.Errorf("unexpected releases: %v, %v", got[0].ID, got[1].ID)
		}
		if len(got[0].Tracks) != 1 {
			t.Error("expected tracks attached to in-window release")
		}
	})

	t.Run("Month Precision Fallback", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.releases["a"] = []models.Release{release("m", "a", "2025-03")}
		catalog.tracks["m"] = []models.Track{track("t1", "a")}
		engine := newTestEngine(catalog, nil, nil, nil)

		// "2025-03" resolves to 2025-03-31, after the window ending 2025-03-15
		scan, _, err := engine.Scan(context.Background(), nil, []models.Artist{artist("a")}, ScanOpts{
			Window: 7 * 24 * time.Hour, AsOf: asOf, Workers: 1, PageLimit: 10,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(scan.Releases["a"]) != 0 {
			t.Errorf("month resolving past the window end should be excluded, got %v", scan.Releases["a"])
		}
	})

	t.Run("Strict Dates Excludes Partial Precision", func(t *testing.T) {
		catalog := newFakeCatalog()
		// End of February is inside the window only via the fallback.
		endFeb := time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC)
		catalog.releases["a"] = []models.Release{release("m", "a", "2025-02")}
		catalog.tracks["m"] = []models.Track{track("t1", "a")}
		engine := newTestEngine(catalog, nil, nil, nil)

		fallback, _, err := engine.Scan(context.Background(), nil, []models.Artist{artist("a")}, ScanOpts{
			Window: 7 * 24 * time.Hour, AsOf: endFeb, Workers: 1, PageLimit: 10,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(fallback.Releases["a"]) != 1 {
			t.Errorf("expected month release kept via period-end fallback")
		}

		strict, _, err := engine.Scan(context.Background(), nil, []models.Artist{artist("a")}, ScanOpts{
			Window: 7 * 24 * time.Hour, AsOf: endFeb, Workers: 1, PageLimit: 10, StrictDates: true,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(strict.Releases["a"]) != 0 {
			t.Errorf("strict mode should exclude the month-precision release")
		}
	})

	t.Run("Stops Paging Past Window", func(t *testing.T) {
		catalog := newFakeCatalog()
		var all []models.Release
		all = append(all, release("r0", "a", "2025-03-14"))
		all = append(all, release("r1", "a", "2025-03-13"))
		// Two pages of old releases; only the first old page should be fetched.
		for i := 2; i < 6; i++ {
			all = append(all, release(fmt.Sprintf("r%d", i), "a", "2024-01-01"))
		}
		catalog.releases["a"] = all
		engine := newTestEngine(catalog, nil, nil, nil)

		scan, _, err := engine.Scan(context.Background(), nil, []models.Artist{artist("a")}, ScanOpts{
			Window: 7 * 24 * time.Hour, AsOf: asOf, Workers: 1, PageLimit: 2,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(scan.Releases["a"]) != 2 {
			t.Errorf("expected 2 recent releases, got %d", len(scan.Releases["a"]))
		}
		if len(catalog.releaseCalls) != 2 {
			t.Errorf("expected paging to stop after the first all-old page, got calls %v", catalog.releaseCalls)
		}
	})

	t.Run("Failed Artist Skipped", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.releases["a"] = []models.Release{release("r", "a", "2025-03-14")}
		catalog.tracks["r"] = []models.Track{track("t1", "a")}
		catalog.failReleases["b"] = fmt.Errorf("%w after 4 attempts", shared.ErrRetryExhausted)
		engine := newTestEngine(catalog, nil, nil, nil)

		scan, failures, err := engine.Scan(context.Background(), nil, []models.Artist{artist("a"), artist("b")}, ScanOpts{
			Window: 7 * 24 * time.Hour, AsOf: asOf, Workers: 2, PageLimit: 10,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(failures) != 1 || failures[0].Artist.ID != "b" {
			t.Fatalf("expected b skipped, got %v", failures)
		}
		if len(scan.Artists) != 1 || scan.Artists[0].ID != "a" {
			t.Errorf("expected only a in scan, got %v", scan.Artists)
		}
	})

	t.Run("Cancelled Context Aborts", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.releases["a"] = []models.Release{release("r", "a", "2025-03-14")}
		engine := newTestEngine(catalog, nil, nil, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, _, err := engine.Scan(ctx, nil, []models.Artist{artist("a")}, ScanOpts{
			Window: 7 * 24 * time.Hour, AsOf: asOf, Workers: 1, PageLimit: 10,
		})
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	})
}

func TestAggregate(t *testing.T) {
	t.Run("Deduplicates Across Releases", func(t *testing.T) {
		scan := &ScanResult{
			Artists: []models.Artist{artist("a")},
			Releases: map[string][]models.Release{
				"a": {
					{ID: "album", ArtistID: "a", Tracks: []models.Track{track("t1", "a"), track("t2", "a")}},
					{ID: "single", ArtistID: "a", Tracks: []models.Track{track("t1", "a")}},
				},
			},
		}

		tracks := Aggregate(scan)
		if len(tracks) != 2 {
			t.Fatalf("expected 2 unique tracks, got %d", len(tracks))
		}
		if tracks[0].ID != "t1" || tracks[1].ID != "t2" {
			t.Errorf("expected first-occurrence order, got %v", tracks)
		}
	})

	t.Run("Collaboration Credited Once", func(t *testing.T) {
		collab := track("collab", "a", "b")
		scan := &ScanResult{
			Artists: []models.Artist{artist("a"), artist("b")},
			Releases: map[string][]models.Release{
				"a": {{ID: "ra", ArtistID: "a", Tracks: []models.Track{collab}}},
				"b": {{ID: "rb", ArtistID: "b", Tracks: []models.Track{collab}}},
			},
		}

		tracks := Aggregate(scan)
		if len(tracks) != 1 {
			t.Errorf("collaboration should appear once, got %d tracks", len(tracks))
		}
	})

	t.Run("Idempotent", func(t *testing.T) {
		scan := &ScanResult{
			Artists: []models.Artist{artist("a")},
			Releases: map[string][]models.Release{
				"a": {{ID: "r", ArtistID: "a", Tracks: []models.Track{track("t1", "a"), track("t2", "a")}}},
			},
		}

		first := Aggregate(scan)
		second := Aggregate(scan)
		if len(first) != len(second) {
			t.Fatalf("repeated aggregation changed length: %d vs %d", len(first), len(second))
		}
		for i := range first {
			if first[i].ID != second[i].ID {
				t.Errorf("order changed at %d: %s vs %s", i, first[i].ID, second[i].ID)
			}
		}
	})

	t.Run("Empty Scan", func(t *testing.T) {
		if got := Aggregate(&ScanResult{Releases: map[string][]models.Release{}}); len(got) != 0 {
			t.Errorf("expected no tracks, got %v", got)
		}
	})
}

func TestRun(t *testing.T) {
	setup := func() (*fakeCatalog, *fakePublisher) {
		catalog := newFakeCatalog()
		catalog.followed = []models.Artist{artist("a"), artist("b")}
		catalog.related["a"] = []models.Artist{artist("c")}
		catalog.related["b"] = []models.Artist{artist("d")}
		catalog.releases["a"] = []models.Release{release("ra", "a", "2025-03-14")}
		catalog.releases["c"] = []models.Release{release("rc", "c", "2025-03-12")}
		catalog.releases["d"] = []models.Release{release("rd", "d", "2025-01-01")}
		catalog.tracks["ra"] = []models.Track{track("t1", "a")}
		catalog.tracks["rc"] = []models.Track{track("t2", "c")}
		catalog.tracks["rd"] = []models.Track{track("t3", "d")}
		return catalog, &fakePublisher{}
	}

	t.Run("Full Pipeline", func(t *testing.T) {
		catalog, publisher := setup()
		playlists := newMemoryPlaylistStore()
		runs := &memoryRunStore{}
		engine := newTestEngine(catalog, publisher, playlists, runs)

		result, err := engine.Run(context.Background(), nil, testOpts())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Set.Seeds) != 2 {
			t.Errorf("expected 2 seeds, got %d", len(result.Set.Seeds))
		}
		if len(result.Set.Artists) != 4 {
			t.Errorf("expected 4 artists after expansion, got %d", len(result.Set.Artists))
		}
		if len(result.Set.Tracks) != 2 {
			t.Errorf("expected 2 in-window tracks, got %d", len(result.Set.Tracks))
		}
		for _, tr := range result.Set.Tracks {
			if tr.ID == "t3" {
				t.Error("out-of-window track t3 should be excluded")
			}
		}

		wantName := "Weekly Discoveries - 2025-03-15"
		if result.Target == nil || result.Target.Name != wantName {
			t.Fatalf("expected playlist %q, got %v", wantName, result.Target)
		}
		if len(publisher.created) != 1 {
			t.Errorf("expected one playlist created, got %v", publisher.created)
		}
		if len(publisher.replaced) != 1 || len(publisher.replaced[0]) != 2 {
			t.Errorf("expected one replace call with 2 uris, got %v", publisher.replaced)
		}

		if len(runs.created) != 1 || len(runs.updated) != 1 {
			t.Fatalf("expected run record created and updated, got %d/%d", len(runs.created), len(runs.updated))
		}
		final := runs.updated[0]
		if final.Status != models.RunStatusSuccess {
			t.Errorf("expected success status, got %s", final.Status)
		}
		if final.TrackCount != 2 || final.ArtistCount != 4 {
			t.Errorf("unexpected counts: tracks=%d artists=%d", final.TrackCount, final.ArtistCount)
		}
	})

	t.Run("Dry Run Skips Publish", func(t *testing.T) {
		catalog, publisher := setup()
		engine := newTestEngine(catalog, publisher, nil, nil)

		opts := testOpts()
		opts.DryRun = true
		result, err := engine.Run(context.Background(), nil, opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Target != nil {
			t.Error("dry run should not publish")
		}
		if len(publisher.created) != 0 || len(publisher.replaced) != 0 {
			t.Error("dry run should not touch the publisher")
		}
	})

	t.Run("No Followed Artists", func(t *testing.T) {
		catalog := newFakeCatalog()
		engine := newTestEngine(catalog, &fakePublisher{}, nil, nil)

		_, err := engine.Run(context.Background(), nil, testOpts())
		if !errors.Is(err, shared.ErrNoFollowedArtists) {
			t.Errorf("expected ErrNoFollowedArtists, got %v", err)
		}
	})

	t.Run("No Recent Releases", func(t *testing.T) {
		catalog := newFakeCatalog()
		catalog.followed = []models.Artist{artist("a")}
		catalog.releases["a"] = []models.Release{release("old", "a", "2020-01-01")}
		runs := &memoryRunStore{}
		engine := newTestEngine(catalog, &fakePublisher{}, nil, runs)

		_, err := engine.Run(context.Background(), nil, testOpts())
		if !errors.Is(err, shared.ErrNoRecentReleases) {
			t.Errorf("expected ErrNoRecentReleases, got %v", err)
		}
		if len(runs.updated) != 1 || runs.updated[0].Status != models.RunStatusFailed {
			t.Errorf("expected failed run record, got %v", runs.updated)
		}
	})

	t.Run("Partial On Skipped Artist", func(t *testing.T) {
		catalog, publisher := setup()
		catalog.failReleases["c"] = fmt.Errorf("%w after 4 attempts", shared.ErrRetryExhausted)
		runs := &memoryRunStore{}
		engine := newTestEngine(catalog, publisher, nil, runs)

		result, err := engine.Run(context.Background(), nil, testOpts())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !result.Partial {
			t.Error("expected partial result")
		}
		if len(result.Skipped) != 1 || result.Skipped[0].Artist.ID != "c" {
			t.Errorf("expected c in skipped list, got %v", result.Skipped)
		}
		for _, tr := range result.Set.Tracks {
			if tr.ID == "t2" {
				t.Error("skipped artist's track should be absent")
			}
		}
		if runs.updated[0].Status != models.RunStatusPartial {
			t.Errorf("expected partial status, got %s", runs.updated[0].Status)
		}
	})

	t.Run("Token Expired Aborts", func(t *testing.T) {
		catalog, publisher := setup()
		catalog.failRelated["a"] = shared.ErrTokenExpired
		engine := newTestEngine(catalog, publisher, nil, nil)

		_, err := engine.Run(context.Background(), nil, testOpts())
		if !errors.Is(err, shared.ErrTokenExpired) {
			t.Errorf("expected ErrTokenExpired, got %v", err)
		}
		if len(publisher.created) != 0 {
			t.Error("aborted run must not publish")
		}
	})

	t.Run("Progress Updates Flow", func(t *testing.T) {
		catalog, publisher := setup()
		engine := newTestEngine(catalog, publisher, nil, nil)

		progress := make(chan ProgressUpdate, 64)
		_, err := engine.Run(context.Background(), progress, testOpts())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		close(progress)

		phases := map[Phase]bool{}
		var last ProgressUpdate
		for update := range progress {
			phases[update.Phase] = true
			last = update
		}
		for _, want := range []Phase{PhaseFetchProfile, PhaseFetchFollowed, PhaseExpandArtists, PhaseScanReleases, PhaseAggregateTracks, PhasePublishPlaylist} {
			if !phases[want] {
				t.Errorf("missing phase %s", want)
			}
		}
		if !last.Done || last.Target == nil {
			t.Errorf("expected final update done with target, got %+v", last)
		}
	})
}

func TestPublish(t *testing.T) {
	user := &models.User{ID: "user1"}

	manyTracks := func(n int) []models.Track {
		tracks := make([]models.Track, n)
		for i := range tracks {
			tracks[i] = track(fmt.Sprintf("t%03d", i), "a")
		}
		return tracks
	}

	t.Run("Batches Over One Hundred", func(t *testing.T) {
		publisher := &fakePublisher{}
		engine := newTestEngine(newFakeCatalog(), publisher, nil, nil)

		opts := testOpts()
		_, err := engine.publish(context.Background(), user, manyTracks(250), opts)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(publisher.replaced) != 1 || len(publisher.replaced[0]) != 100 {
			t.Fatalf("expected one replace of 100, got %v batches", len(publisher.replaced))
		}
		if len(publisher.appended) != 2 {
			t.Fatalf("expected two append batches, got %d", len(publisher.appended))
		}
		if len(publisher.appended[0]) != 100 || len(publisher.appended[1]) != 50 {
			t.Errorf("unexpected append sizes: %d, %d", len(publisher.appended[0]), len(publisher.appended[1]))
		}
		if !strings.HasPrefix(publisher.replaced[0][0], "spotify:track:") {
			t.Errorf("expected track uris, got %s", publisher.replaced[0][0])
		}
	})

	t.Run("Reuses Existing Playlist By Name", func(t *testing.T) {
		publisher := &fakePublisher{existing: &models.PlaylistTarget{
			PlaylistID: "existing", OwnerID: "user1", Name: "Weekly Discoveries - 2025-03-15",
		}}
		engine := newTestEngine(newFakeCatalog(), publisher, nil, nil)

		target, err := engine.publish(context.Background(), user, manyTracks(3), testOpts())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if target.PlaylistID != "existing" {
			t.Errorf("expected existing playlist reused, got %s", target.PlaylistID)
		}
		if len(publisher.created) != 0 {
			t.Error("should not create a second playlist for the same day")
		}
	})

	t.Run("Reuses Recorded Playlist", func(t *testing.T) {
		publisher := &fakePublisher{}
		playlists := newMemoryPlaylistStore()
		record := models.NewPlaylistRecord(1, models.PlaylistTarget{
			PlaylistID: "recorded", OwnerID: "user1", Name: "Weekly Discoveries - 2025-03-15",
		}, "2025-03-15", 5)
		if err := playlists.Create(record); err != nil {
			t.Fatal(err)
		}
		engine := newTestEngine(newFakeCatalog(), publisher, playlists, nil)

		target, err := engine.publish(context.Background(), user, manyTracks(2), testOpts())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if target.PlaylistID != "recorded" {
			t.Errorf("expected recorded playlist reused, got %s", target.PlaylistID)
		}
		if playlists.updates != 1 {
			t.Errorf("expected record updated once, got %d", playlists.updates)
		}
		if got := playlists.records["user1|2025-03-15"].TrackCount; got != 2 {
			t.Errorf("expected track count refreshed to 2, got %d", got)
		}
	})

	t.Run("Saves New Record", func(t *testing.T) {
		publisher := &fakePublisher{}
		playlists := newMemoryPlaylistStore()
		engine := newTestEngine(newFakeCatalog(), publisher, playlists, nil)

		_, err := engine.publish(context.Background(), user, manyTracks(1), testOpts())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		record, err := playlists.GetByOwnerAndDate("user1", "2025-03-15")
		if err != nil {
			t.Fatalf("expected record persisted: %v", err)
		}
		if record.TrackCount != 1 {
			t.Errorf("unexpected track count %d", record.TrackCount)
		}
	})
}

// scriptedSpotify answers Spotify API routes with canned payloads. The first
// related-artists call is rate limited so the run exercises the client's
// retry loop end to end.
type scriptedSpotify struct {
	mu          sync.Mutex
	relatedHits int
}

func apiResponse(status int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: status,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func (s *scriptedSpotify) RoundTrip(req *http.Request) (*http.Response, error) {
	switch req.URL.Path {
	case "/v1/me":
		return apiResponse(200, `{"id": "user1", "display_name": "Listener"}`, nil), nil
	case "/v1/me/following":
		return apiResponse(200, `{"artists": {"items": [{"id": "a1", "name": "Seed"}], "next": null, "cursors": {"after": ""}, "total": 1}}`, nil), nil
	case "/v1/artists/a1/related-artists":
		s.mu.Lock()
		s.relatedHits++
		first := s.relatedHits == 1
		s.mu.Unlock()
		if first {
			return apiResponse(429, `{"error": {"status": 429}}`, http.Header{"Retry-After": []string{"1"}}), nil
		}
		return apiResponse(200, `{"artists": [{"id": "r1", "name": "Related"}]}`, nil), nil
	case "/v1/artists/a1/albums":
		return apiResponse(200, `{"items": [], "next": null}`, nil), nil
	case "/v1/artists/r1/albums":
		return apiResponse(200, `{"items": [{"id": "al-r1", "name": "New Single", "album_type": "single", "release_date": "2025-03-12", "release_date_precision": "day"}], "next": null}`, nil), nil
	case "/v1/albums/al-r1/tracks":
		return apiResponse(200, `{"items": [{"id": "t-r1", "name": "New Single", "uri": "spotify:track:t-r1", "duration_ms": 180000, "artists": [{"id": "r1", "name": "Related"}]}], "next": null}`, nil), nil
	default:
		return apiResponse(404, `{"error": {"status": 404, "message": "unexpected route `+req.URL.Path+`"}}`, nil), nil
	}
}

func TestRunRecoversFromRateLimit(t *testing.T) {
	api := &scriptedSpotify{}

	srv, err := services.NewSpotifyService(map[string]string{
		"client_id":     "test_client",
		"client_secret": "test_secret",
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	srv.Configure("US", 1000, 3)

	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, &http.Client{Transport: api})
	if err := srv.OAuthenticate(ctx, &oauth2.Token{AccessToken: "token"}); err != nil {
		t.Fatalf("failed to authenticate: %v", err)
	}

	engine := NewDiscoveryEngine(srv, srv, nil, nil, shared.NewLogger(nil))
	opts := testOpts()
	opts.Workers = 1
	opts.DryRun = true

	result, err := engine.Run(context.Background(), nil, opts)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	api.mu.Lock()
	hits := api.relatedHits
	api.mu.Unlock()
	if hits != 2 {
		t.Errorf("expected rate-limited call retried once, got %d hits", hits)
	}
	if result.Partial || len(result.Skipped) != 0 {
		t.Errorf("recovered failure should not mark the run partial: %+v", result.Skipped)
	}
	if result.ReleaseCount != 1 {
		t.Errorf("expected 1 in-window release, got %d", result.ReleaseCount)
	}
	if len(result.Set.Tracks) != 1 || result.Set.Tracks[0].ID != "t-r1" {
		t.Fatalf("expected the related artist's track, got %v", result.Set.Tracks)
	}
	if result.User == nil || result.User.DisplayName != "Listener" {
		t.Errorf("unexpected user %+v", result.User)
	}
}

func TestPlaylistName(t *testing.T) {
	got := PlaylistName(asOf)
	if got != "Weekly Discoveries - 2025-03-15" {
		t.Errorf("unexpected name %q", got)
	}
}
