// Package storage keeps saved conversations: a JSONL index of transcript
// metadata plus one cached file per transcript.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrNoMatches is returned when no transcripts match the query.
	ErrNoMatches = errors.New("no conversations found")
	// ErrManyMatches is returned when multiple transcripts match the query.
	ErrManyMatches = errors.New("multiple conversations matched the input")
	// ErrEmptyTranscript is returned when saving a conversation with no messages.
	ErrEmptyTranscript = errors.New("empty transcript")
)

const (
	indexFileName      = "index.jsonl"
	lockFileName       = "index.lock"
	compactMinOps      = 256
	compactScaleFactor = 4

	opUpsert = "upsert"
	opDelete = "delete"
)

// Record is the index entry of one saved transcript.
type Record struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Provider  string    `json:"provider"`
	Model     string    `json:"model,omitempty"`
	Source    string    `json:"source,omitempty"`
	Turns     int       `json:"turns"`
	UpdatedAt time.Time `json:"updated_at"`
}

type indexEvent struct {
	Op     string  `json:"op"`
	ID     string  `json:"id,omitempty"`
	Record *Record `json:"record,omitempty"`
}

// Index is an append-only JSONL index guarded by a file lock, so that
// several papermate processes can share one archive.
type Index struct {
	mu      sync.RWMutex
	path    string
	lock    *flock.Flock
	records map[string]Record
	ops     int
	now     func() time.Time
}

// OpenIndex loads the index stored in dir, creating dir when needed.
func OpenIndex(dir string) (*Index, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("could not create archive directory: %w", err)
	}
	idx := &Index{
		path:    filepath.Join(dir, indexFileName),
		lock:    flock.New(filepath.Join(dir, lockFileName)),
		records: make(map[string]Record),
		now:     time.Now,
	}
	if err := idx.load(); err != nil {
		return nil, err
	}
	return idx, nil
}

// Save upserts rec, stamping UpdatedAt.
func (x *Index) Save(rec Record) (Record, error) {
	if strings.TrimSpace(rec.ID) == "" {
		return Record{}, fmt.Errorf("save: %w", errors.New("empty id"))
	}
	if strings.TrimSpace(rec.Title) == "" {
		return Record{}, fmt.Errorf("save: %w", errors.New("empty title"))
	}
	rec.UpdatedAt = x.now().UTC()

	x.mu.Lock()
	defer x.mu.Unlock()

	x.records[rec.ID] = rec
	if err := x.appendLocked(indexEvent{Op: opUpsert, Record: &rec}); err != nil {
		return Record{}, fmt.Errorf("save: %w", err)
	}
	if err := x.compactIfNeededLocked(); err != nil {
		return Record{}, fmt.Errorf("save: %w", err)
	}
	return rec, nil
}

// Delete removes the record with the given ID. Unknown IDs are ignored.
func (x *Index) Delete(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("delete: %w", errors.New("empty id"))
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if _, ok := x.records[id]; !ok {
		return nil
	}
	delete(x.records, id)
	if err := x.appendLocked(indexEvent{Op: opDelete, ID: id}); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	if err := x.compactIfNeededLocked(); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// List returns every record, most recently updated first.
func (x *Index) List() []Record {
	return x.filter(func(Record) bool { return true })
}

// OlderThan returns the records not updated within d.
func (x *Index) OlderThan(d time.Duration) []Record {
	cutoff := x.now().Add(-d)
	return x.filter(func(r Record) bool { return r.UpdatedAt.Before(cutoff) })
}

// Latest returns the most recently updated record.
func (x *Index) Latest() (Record, error) {
	list := x.List()
	if len(list) == 0 {
		return Record{}, fmt.Errorf("latest: %w", ErrNoMatches)
	}
	return list[0], nil
}

// Find resolves a record by ID prefix or exact title.
func (x *Index) Find(in string) (Record, error) {
	found := x.filter(func(r Record) bool {
		if r.Title == in {
			return true
		}
		return len(in) >= IDMinLen && strings.HasPrefix(r.ID, in)
	})
	switch len(found) {
	case 0:
		return Record{}, fmt.Errorf("%w: %s", ErrNoMatches, in)
	case 1:
		return found[0], nil
	}
	return Record{}, fmt.Errorf("%w: %s", ErrManyMatches, in)
}

// Completions returns shell completion candidates for IDs and titles.
func (x *Index) Completions(in string) []string {
	set := map[string]struct{}{}
	for _, r := range x.List() {
		short := ShortID(r.ID)
		if strings.HasPrefix(r.ID, in) {
			id := r.ID
			if len(in) < IDShort {
				id = short
			}
			set[id+"\t"+r.Title] = struct{}{}
		}
		if strings.HasPrefix(r.Title, in) {
			set[r.Title+"\t"+short] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (x *Index) filter(keep func(Record) bool) []Record {
	x.mu.RLock()
	out := make([]Record, 0, len(x.records))
	for _, r := range x.records {
		if keep(r) {
			out = append(out, r)
		}
	}
	x.mu.RUnlock()

	slices.SortFunc(out, func(a, b Record) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

func (x *Index) load() error {
	if err := x.lock.Lock(); err != nil {
		return fmt.Errorf("could not lock index file: %w", err)
	}
	defer func() { _ = x.lock.Unlock() }()

	file, err := os.Open(x.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("could not open index file: %w", err)
	}
	defer file.Close() //nolint:errcheck

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var evt indexEvent
		if err := json.Unmarshal([]byte(text), &evt); err != nil {
			return fmt.Errorf("could not parse index line %d: %w", line, err)
		}
		if err := x.apply(&evt); err != nil {
			return fmt.Errorf("index line %d: %w", line, err)
		}
		x.ops++
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("could not scan index file: %w", err)
	}
	return nil
}

func (x *Index) apply(evt *indexEvent) error {
	switch evt.Op {
	case opUpsert:
		if evt.Record == nil || strings.TrimSpace(evt.Record.ID) == "" {
			return errors.New("invalid upsert event")
		}
		x.records[evt.Record.ID] = *evt.Record
	case opDelete:
		if strings.TrimSpace(evt.ID) == "" {
			return errors.New("invalid delete event: empty id")
		}
		delete(x.records, evt.ID)
	default:
		return fmt.Errorf("invalid index event op: %q", evt.Op)
	}
	return nil
}

func (x *Index) appendLocked(evt indexEvent) error {
	if err := x.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = x.lock.Unlock() }()

	file, err := os.OpenFile(x.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	defer func() { _ = file.Close() }()

	bts, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal index event: %w", err)
	}
	if _, err := file.Write(append(bts, '\n')); err != nil {
		return fmt.Errorf("write index event: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync index: %w", err)
	}
	x.ops++
	return nil
}

func (x *Index) compactIfNeededLocked() error {
	if x.ops < compactMinOps {
		return nil
	}
	if len(x.records) > 0 && x.ops < len(x.records)*compactScaleFactor {
		return nil
	}
	return x.compactLocked()
}

// compactLocked rewrites the index with one upsert per live record.
func (x *Index) compactLocked() error {
	if err := x.lock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = x.lock.Unlock() }()

	items := make([]Record, 0, len(x.records))
	for _, r := range x.records {
		items = append(items, r)
	}
	slices.SortFunc(items, func(a, b Record) int {
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	tmpPath := x.path + ".tmp"
	file, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open compacted index: %w", err)
	}
	enc := json.NewEncoder(file)
	for i := range items {
		if err := enc.Encode(indexEvent{Op: opUpsert, Record: &items[i]}); err != nil {
			_ = file.Close()
			return fmt.Errorf("write compacted index: %w", err)
		}
	}
	if err := file.Sync(); err != nil {
		_ = file.Close()
		return fmt.Errorf("sync compacted index: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close compacted index: %w", err)
	}
	if err := os.Rename(tmpPath, x.path); err != nil {
		return fmt.Errorf("replace index with compacted version: %w", err)
	}
	if d, err := os.Open(filepath.Dir(x.path)); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}
	x.ops = len(x.records)
	return nil
}
