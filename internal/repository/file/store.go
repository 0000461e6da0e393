// Package file persists the site registry as a single JSON snapshot
// document. Every write is a load-mutate-save cycle under an in-process
// mutex; the snapshot is written to a temp file and renamed into place
// so an interrupted write never clobbers the previous committed state.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sitewatch/sitewatch/internal/domain/site"
)

type snapshot struct {
	Sites       []*site.Site `json:"sites"`
	LastUpdated time.Time    `json:"last_updated"`
}

type Store struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

var _ site.Store = (*Store)(nil)

func New(path string) (*Store, error) {
	s := &Store{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := s.save(&snapshot{Sites: []*site.Site{}, LastUpdated: s.now()}); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("stat registry: %w", err)
	}
	return s, nil
}

// WithClock overrides the timestamp source.
func (s *Store) WithClock(now func() time.Time) *Store {
	if now != nil {
		s.now = now
	}
	return s
}

func (s *Store) load() (*snapshot, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	var sn snapshot
	if err := json.Unmarshal(b, &sn); err != nil {
		return nil, fmt.Errorf("decode registry: %w", err)
	}
	return &sn, nil
}

func (s *Store) save(sn *snapshot) error {
	b, err := json.MarshalIndent(sn, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".sites-*.json")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	return nil
}

func (s *Store) List(_ context.Context) ([]*site.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]*site.Site, 0, len(sn.Sites))
	for _, rec := range sn.Sites {
		out = append(out, rec.Clone())
	}
	return out, nil
}

func (s *Store) GetByID(_ context.Context, id string) (*site.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range sn.Sites {
		if rec.ID == id {
			return rec.Clone(), nil
		}
	}
	return nil, site.ErrNotFound
}

func (s *Store) Create(_ context.Context, n site.NewSite) (*site.Site, error) {
	u, err := site.NormalizeURL(n.URL)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.load()
	if err != nil {
		return nil, err
	}
	for _, rec := range sn.Sites {
		if rec.URL == u {
			return nil, fmt.Errorf("%w: %s", site.ErrConflict, u)
		}
	}

	now := s.now()
	rec := &site.Site{
		ID:               uuid.NewString(),
		Name:             strings.TrimSpace(n.Name),
		URL:              u,
		Status:           site.StatusPending,
		CheckInterval:    site.ClampInterval(n.CheckInterval),
		Active:           true,
		CreatedAt:        now,
		UptimePercentage: 100,
	}
	sn.Sites = append(sn.Sites, rec)
	sn.LastUpdated = now
	if err := s.save(sn); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *Store) Update(_ context.Context, id string, upd site.Update) (*site.Site, error) {
	var newURL string
	if upd.URL != nil {
		u, err := site.NormalizeURL(*upd.URL)
		if err != nil {
			return nil, err
		}
		newURL = u
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.load()
	if err != nil {
		return nil, err
	}
	rec := findByID(sn, id)
	if rec == nil {
		return nil, site.ErrNotFound
	}
	if upd.URL != nil {
		for _, other := range sn.Sites {
			if other.ID != id && other.URL == newURL {
				return nil, fmt.Errorf("%w: %s", site.ErrConflict, newURL)
			}
		}
		rec.URL = newURL
	}
	if upd.Name != nil {
		rec.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.CheckInterval != nil {
		rec.CheckInterval = site.ClampInterval(*upd.CheckInterval)
	}
	if upd.Active != nil {
		rec.Active = *upd.Active
	}
	sn.LastUpdated = s.now()
	if err := s.save(sn); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.load()
	if err != nil {
		return err
	}
	kept := sn.Sites[:0]
	found := false
	for _, rec := range sn.Sites {
		if rec.ID == id {
			found = true
			continue
		}
		kept = append(kept, rec)
	}
	if !found {
		return site.ErrNotFound
	}
	sn.Sites = kept
	sn.LastUpdated = s.now()
	return s.save(sn)
}

func (s *Store) Mutate(_ context.Context, id string, fn func(*site.Site) error) (*site.Site, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sn, err := s.load()
	if err != nil {
		return nil, err
	}
	rec := findByID(sn, id)
	if rec == nil {
		return nil, site.ErrNotFound
	}
	if err := fn(rec); err != nil {
		return nil, err
	}
	sn.LastUpdated = s.now()
	if err := s.save(sn); err != nil {
		return nil, err
	}
	return rec.Clone(), nil
}

func findByID(sn *snapshot, id string) *site.Site {
	for _, rec := range sn.Sites {
		if rec.ID == id {
			return rec
		}
	}
	return nil
}

