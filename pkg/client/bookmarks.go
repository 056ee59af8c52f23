package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Bookmark is a saved relay address and the username used there.
type Bookmark struct {
	Name     string `yaml:"name"`
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	LastUsed int64  `yaml:"last_used,omitempty"`
}

// BookmarkStore keeps bookmarks in a YAML file.
type BookmarkStore struct {
	path      string
	Bookmarks []Bookmark `yaml:"bookmarks"`
}

// DefaultBookmarkPath returns chatrelay/servers.yaml under the user's
// config directory, falling back to the working directory.
func DefaultBookmarkPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "servers.yaml"
	}
	return filepath.Join(dir, "chatrelay", "servers.yaml")
}

// NewBookmarkStore creates a store backed by path. Nothing is read until
// Load.
func NewBookmarkStore(path string) *BookmarkStore {
	return &BookmarkStore{path: path}
}

// Load reads bookmarks from disk. A missing file is an empty store.
func (bs *BookmarkStore) Load() error {
	data, err := os.ReadFile(bs.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			bs.Bookmarks = nil
			return nil
		}
		return fmt.Errorf("read bookmarks: %w", err)
	}
	if err := yaml.Unmarshal(data, bs); err != nil {
		return fmt.Errorf("parse bookmarks: %w", err)
	}
	return nil
}

// Save writes bookmarks to disk, creating the parent directory.
func (bs *BookmarkStore) Save() error {
	data, err := yaml.Marshal(bs)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(bs.path), 0o700); err != nil {
		return fmt.Errorf("create bookmark dir: %w", err)
	}
	return os.WriteFile(bs.path, data, 0o600)
}

// Add adds a bookmark or replaces the one with the same name. Returns true
// if it was a new entry.
func (bs *BookmarkStore) Add(b Bookmark) bool {
	for i, existing := range bs.Bookmarks {
		if existing.Name == b.Name {
			bs.Bookmarks[i] = b
			return false
		}
	}
	bs.Bookmarks = append(bs.Bookmarks, b)
	return true
}

// Touch records that the named bookmark was just used.
func (bs *BookmarkStore) Touch(name string, now time.Time) bool {
	for i := range bs.Bookmarks {
		if bs.Bookmarks[i].Name == name {
			bs.Bookmarks[i].LastUsed = now.Unix()
			return true
		}
	}
	return false
}

// Find returns the bookmark with the given name, or nil.
func (bs *BookmarkStore) Find(name string) *Bookmark {
	for _, b := range bs.Bookmarks {
		if b.Name == name {
			return &b
		}
	}
	return nil
}
