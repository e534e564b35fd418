package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dotcommander/papermate/internal/proto"
	"github.com/dotcommander/papermate/internal/storage/cache"
)

const maxTitleLen = 60

// Transcript is a saved conversation.
type Transcript struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Provider string          `json:"provider"`
	Model    string          `json:"model,omitempty"`
	Source   string          `json:"source,omitempty"`
	Messages []proto.Message `json:"messages"`
}

// Turns counts the answered questions.
func (t Transcript) Turns() int {
	n := 0
	for _, m := range t.Messages {
		if m.Role == proto.RoleAssistant {
			n++
		}
	}
	return n
}

// Archive is the transcript store: an Index plus the transcript files.
type Archive struct {
	*Index
	files *cache.Cache[Transcript]
}

// DefaultDir is where transcripts go when no cache_path is configured.
func DefaultDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("could not find cache dir: %w", err)
	}
	return filepath.Join(dir, "papermate"), nil
}

// Open opens the archive rooted at dir.
func Open(dir string) (*Archive, error) {
	idx, err := OpenIndex(dir)
	if err != nil {
		return nil, err
	}
	files, err := cache.New[Transcript](dir, cache.TranscriptCache)
	if err != nil {
		return nil, fmt.Errorf("could not open transcripts: %w", err)
	}
	return &Archive{Index: idx, files: files}, nil
}

// Save writes t and indexes it. A missing ID or title is filled in.
func (a *Archive) Save(t *Transcript) (Record, error) {
	if len(t.Messages) == 0 {
		return Record{}, fmt.Errorf("save: %w", ErrEmptyTranscript)
	}
	if t.ID == "" {
		t.ID = NewID()
	}
	if strings.TrimSpace(t.Title) == "" {
		t.Title = Title(t.Messages)
	}
	if err := a.files.Put(t.ID, *t); err != nil {
		return Record{}, fmt.Errorf("save transcript: %w", err)
	}
	return a.Index.Save(Record{
		ID:       t.ID,
		Title:    t.Title,
		Provider: t.Provider,
		Model:    t.Model,
		Source:   t.Source,
		Turns:    t.Turns(),
	})
}

// Load finds a transcript by ID prefix or title and reads it.
func (a *Archive) Load(ref string) (*Transcript, error) {
	rec, err := a.Find(ref)
	if err != nil {
		return nil, err
	}
	t, err := a.files.Get(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("load transcript %s: %w", ShortID(rec.ID), err)
	}
	return &t, nil
}

// Remove deletes a transcript by ID prefix or title.
func (a *Archive) Remove(ref string) (Record, error) {
	rec, err := a.Find(ref)
	if err != nil {
		return Record{}, err
	}
	return rec, a.remove(rec)
}

// Prune deletes every transcript not updated within d.
func (a *Archive) Prune(d time.Duration) ([]Record, error) {
	old := a.OlderThan(d)
	for _, rec := range old {
		if err := a.remove(rec); err != nil {
			return nil, err
		}
	}
	return old, nil
}

func (a *Archive) remove(rec Record) error {
	if err := a.files.Delete(rec.ID); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete transcript %s: %w", ShortID(rec.ID), err)
	}
	return a.Index.Delete(rec.ID)
}

// Title derives a transcript title from its first question.
func Title(msgs []proto.Message) string {
	for _, m := range msgs {
		if m.Role != proto.RoleUser {
			continue
		}
		title := strings.Join(strings.Fields(m.Content), " ")
		if utf8.RuneCountInString(title) > maxTitleLen {
			title = string([]rune(title)[:maxTitleLen-3]) + "..."
		}
		if title != "" {
			return title
		}
	}
	return "untitled"
}
