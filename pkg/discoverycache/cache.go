// Package discoverycache implements the Discovery Cache Service (C3):
// whole-document-atomic JSON persistence of the last completed discovery
// run for a cluster, keyed by clustersource.Source.
package discoverycache

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agentkube/clustercore/pkg/clustererr"
	"github.com/agentkube/clustercore/pkg/discovery"
	"github.com/agentkube/clustercore/pkg/logger"
	"github.com/gofrs/flock"
)

const (
	lockTimeout    = 30 * time.Second
	fileMode       = 0o644
	dirMode        = 0o770
	documentSchema = 1
)

// document is the on-disk shape. Resources is a list, not an object keyed
// by GVK, because a GVK struct doesn't marshal cleanly as a JSON object
// key; readers tolerate an older set-shaped document (a JSON object whose
// values are resources, keys ignored) for backward compatibility, per the
// cache's set-vs-list tolerance decision recorded in DESIGN.md.
type document struct {
	Schema    int                          `json:"schema"`
	Resources []discovery.DiscoveredResource `json:"resources"`
}

// Store persists one discovery document per cluster context under dir.
type Store struct {
	dir string
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) pathFor(cacheKey string) string {
	return filepath.Join(s.dir, sanitize(cacheKey)+".json")
}

func sanitize(key string) string {
	return strings.NewReplacer("/", "_", "\\", "_", ":", "_").Replace(key)
}

func (s *Store) lockFor(path string) (bool, *flock.Flock, error) {
	lockPath := strings.TrimSuffix(path, filepath.Ext(path)) + ".lock"
	fl := flock.New(lockPath)

	lockCtx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, 100*time.Millisecond)
	return locked, fl, err
}

// Load reads the persisted resource set for cacheKey. A missing file
// returns an empty, non-nil set and no error — there is simply no prior
// discovery to compare against yet.
func (s *Store) Load(cacheKey string) (map[discovery.DiscoveredResource]struct{}, error) {
	path := s.pathFor(cacheKey)

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return map[discovery.DiscoveredResource]struct{}{}, nil
	}

	locked, fl, err := s.lockFor(path)
	if err != nil {
		return nil, clustererr.Persistence(err, "locking discovery cache for read")
	}
	if locked {
		defer func() {
			if err := fl.Unlock(); err != nil {
				logger.Log(logger.LevelError, map[string]string{"path": path}, err, "unlocking discovery cache after read")
			}
		}()
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, clustererr.Persistence(err, "reading discovery cache")
	}

	return parseDocument(raw, path)
}

// parseDocument is tolerant: it first tries the current list-shaped
// document, then falls back to decoding the value as a bare JSON array or
// a set-shaped object (values keyed by an opaque string) so a cache file
// written by an older schema version is never treated as corrupt.
func parseDocument(raw []byte, path string) (map[discovery.DiscoveredResource]struct{}, error) {
	var doc document
	if err := json.Unmarshal(raw, &doc); err == nil && doc.Resources != nil {
		return toSet(doc.Resources), nil
	}

	var asList []discovery.DiscoveredResource
	if err := json.Unmarshal(raw, &asList); err == nil {
		return toSet(asList), nil
	}

	var asSet map[string]discovery.DiscoveredResource
	if err := json.Unmarshal(raw, &asSet); err == nil {
		out := make(map[discovery.DiscoveredResource]struct{}, len(asSet))
		for _, r := range asSet {
			out[r] = struct{}{}
		}
		return out, nil
	}

	logger.Log(logger.LevelWarn, map[string]string{"path": path}, nil, "discovery cache file unreadable in any known shape, treating as empty")
	return map[discovery.DiscoveredResource]struct{}{}, nil
}

func toSet(list []discovery.DiscoveredResource) map[discovery.DiscoveredResource]struct{} {
	out := make(map[discovery.DiscoveredResource]struct{}, len(list))
	for _, r := range list {
		out[r] = struct{}{}
	}
	return out
}

// Save writes resources as the new complete document for cacheKey,
// replacing whatever was there. The write is whole-document atomic: it
// writes to a temp file in the same directory and renames over the
// target, so a reader never observes a partial document.
func (s *Store) Save(cacheKey string, resources map[discovery.DiscoveredResource]struct{}) error {
	if err := os.MkdirAll(s.dir, dirMode); err != nil {
		return clustererr.Persistence(err, "creating discovery cache directory")
	}

	path := s.pathFor(cacheKey)

	locked, fl, err := s.lockFor(path)
	if err != nil {
		return clustererr.Persistence(err, "locking discovery cache for write")
	}
	if locked {
		defer func() {
			if err := fl.Unlock(); err != nil {
				logger.Log(logger.LevelError, map[string]string{"path": path}, err, "unlocking discovery cache after write")
			}
		}()
	}

	list := make([]discovery.DiscoveredResource, 0, len(resources))
	for r := range resources {
		list = append(list, r)
	}
	doc := document{Schema: documentSchema, Resources: list}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return clustererr.Persistence(err, "encoding discovery cache document")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, fileMode); err != nil {
		return clustererr.Persistence(err, "writing discovery cache temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return clustererr.Persistence(err, "renaming discovery cache temp file into place")
	}

	return nil
}

// Diff computes what changed between a previous set and a newly completed
// discovery, per §4.4's removed-resource rule: anything in previous but
// absent from current is reported as removed.
func Diff(previous, current map[discovery.DiscoveredResource]struct{}) (removed []discovery.DiscoveredResource) {
	for r := range previous {
		if _, ok := current[r]; !ok {
			removed = append(removed, r)
		}
	}
	return removed
}
