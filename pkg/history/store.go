// Package history keeps a local record of past runs in a bbolt database.
package history

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/entrhq/guitest/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var runsBucket = []byte("runs")

// ErrNotFound is returned by Get when no run carries the requested id.
var ErrNotFound = errors.New("run not found")

// Entry is one stored run.
type Entry struct {
	Project  string           `json:"project"`
	StoryID  string           `json:"storyId"`
	Recorded time.Time        `json:"recorded"`
	Result   *types.RunResult `json:"result"`
}

// Query narrows List. Zero fields match everything.
type Query struct {
	Project string
	StoryID string
	Limit   int
}

func (q Query) match(e Entry) bool {
	if q.Project != "" && q.Project != e.Project {
		return false
	}
	return q.StoryID == "" || q.StoryID == e.StoryID
}

// Store is a bbolt-backed run history.
type Store struct {
	db  *bolt.DB
	mu  sync.RWMutex
	now func() time.Time
}

// Open opens (or creates) the history database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(runsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("init history bucket: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// DefaultPath is ~/.guitest/history.db, or a relative fallback when the
// home directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".guitest", "history.db")
	}
	return filepath.Join(home, ".guitest", "history.db")
}

// key orders entries by record time; the run id keeps same-instant keys distinct.
func key(t time.Time, runID string) []byte {
	k := make([]byte, 8, 8+len(runID))
	binary.BigEndian.PutUint64(k, uint64(t.UnixNano()))
	return append(k, runID...)
}

// Record stores r under project.
func (s *Store) Record(project string, r *types.RunResult) error {
	if r == nil {
		return errors.New("nil run result")
	}
	e := Entry{Project: project, StoryID: r.StoryID, Recorded: s.now().UTC(), Result: r}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal run: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).Put(key(e.Recorded, r.RunID), data)
	})
}

// List returns matching runs, most recent first.
func (s *Store) List(q Query) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := []Entry{}
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runsBucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("unmarshal run %x: %w", k[:8], err)
			}
			if !q.match(e) {
				continue
			}
			entries = append(entries, e)
			if q.Limit > 0 && len(entries) == q.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Get returns the run with the given id.
func (s *Store) Get(runID string) (Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(runsBucket).ForEach(func(k, v []byte) error {
			if len(k) < 8 || string(k[8:]) != runID {
				return nil
			}
			return json.Unmarshal(v, &found)
		})
	})
	if err != nil {
		return Entry{}, err
	}
	if found.Result == nil {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return found, nil
}

// Close releases the database file.
func (s *Store) Close() error {
	return s.db.Close()
}
