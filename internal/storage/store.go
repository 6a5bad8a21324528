// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jeranaias/llmcli/internal/model"
	"github.com/jeranaias/llmcli/internal/util"
)

// File and directory names inside the chat directory.
const (
	MetadataFile = "metadata.json"
	MessagesFile = "messages.json"
	TrashDir     = ".trash"
)

// =============================================================================
// METADATA
// =============================================================================

// Metadata is the indexing record of one chat.
type Metadata struct {
	ID                  string    `json:"id"`
	Title               string    `json:"title"`
	CreatedAt           Timestamp `json:"created_at"`
	UpdatedAt           Timestamp `json:"updated_at"`
	Model               string    `json:"model"`
	MessageCount        int       `json:"message_count"`
	Preview             string    `json:"preview"`
	SmartTitleGenerated bool      `json:"smart_title_generated"`
}

// =============================================================================
// STORE
// =============================================================================

// Store reads and writes chats under BaseDir.
type Store struct {
	BaseDir string
}

// NewStore creates the base directory if needed.
func NewStore(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create chat directory: %w", err)
	}
	return &Store{BaseDir: baseDir}, nil
}

// Dir returns the directory holding chat id.
func (s *Store) Dir(id string) string {
	return filepath.Join(s.BaseDir, id)
}

// Exists reports whether a record for id is present.
func (s *Store) Exists(id string) bool {
	if ValidateID(id) != nil {
		return false
	}
	info, err := os.Stat(s.Dir(id))
	return err == nil && info.IsDir()
}

// Save writes both records for meta.ID.
func (s *Store) Save(meta *Metadata, messages []model.Message) error {
	if err := ValidateID(meta.ID); err != nil {
		return err
	}
	if messages == nil {
		messages = []model.Message{}
	}

	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	msgData, err := json.MarshalIndent(messages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	dir := s.Dir(meta.ID)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create chat record: %w", err)
	}
	if err := util.AtomicWriteFile(filepath.Join(dir, MetadataFile), metaData, 0o600); err != nil {
		return err
	}
	return util.AtomicWriteFile(filepath.Join(dir, MessagesFile), msgData, 0o600)
}

// LoadMetadata reads the metadata record for id.
func (s *Store) LoadMetadata(id string) (*Metadata, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(id), MetadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, &CorruptError{ID: id, File: MetadataFile, Err: err}
	}
	if meta.ID == "" {
		meta.ID = id
	}
	return &meta, nil
}

// LoadMessages reads the message log for id. legacy is true when the file
// used the old flat {role, content} shape and was upgraded in memory.
func (s *Store) LoadMessages(id string) (messages []model.Message, legacy bool, err error) {
	if err := ValidateID(id); err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(filepath.Join(s.Dir(id), MessagesFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, ErrNotFound
		}
		return nil, false, err
	}

	messages, legacy, err = model.DecodeMessages(data)
	if err != nil {
		return nil, false, &CorruptError{ID: id, File: MessagesFile, Err: err}
	}
	return messages, legacy, nil
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// SkipFunc is told about each chat that List could not read.
type SkipFunc func(id string, err error)

// List returns every readable chat, most recently updated first. Chats
// with missing or corrupted metadata are reported to skip and left out.
func (s *Store) List(skip SkipFunc) ([]Metadata, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Metadata{}, nil
		}
		return nil, err
	}

	metas := make([]Metadata, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		meta, err := s.LoadMetadata(entry.Name())
		if err != nil {
			if skip != nil {
				skip(entry.Name(), err)
			}
			continue
		}
		metas = append(metas, *meta)
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].UpdatedAt.After(metas[j].UpdatedAt.Time)
	})
	return metas, nil
}

// Search returns chats whose title or preview contains query,
// case-insensitively.
func (s *Store) Search(query string, skip SkipFunc) ([]Metadata, error) {
	all, err := s.List(skip)
	if err != nil || query == "" {
		return all, err
	}

	query = strings.ToLower(query)
	var results []Metadata
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Title), query) ||
			strings.Contains(strings.ToLower(meta.Preview), query) {
			results = append(results, meta)
		}
	}
	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete moves the chat into the trash directory and returns its new path.
func (s *Store) Delete(id string) (string, error) {
	if !s.Exists(id) {
		return "", ErrNotFound
	}

	trash := filepath.Join(s.BaseDir, TrashDir)
	if err := os.MkdirAll(trash, 0o700); err != nil {
		return "", fmt.Errorf("failed to create trash: %w", err)
	}
	dest := filepath.Join(trash, fmt.Sprintf("%s-%d", id, time.Now().Unix()))
	if err := os.Rename(s.Dir(id), dest); err != nil {
		return "", fmt.Errorf("failed to move chat to trash: %w", err)
	}
	return dest, nil
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when no record exists for an id.
var ErrNotFound = errors.New("chat not found")

// ErrInvalidID is returned for ids that would escape the chat directory.
var ErrInvalidID = errors.New("invalid chat id")

// CorruptError is a record that exists but cannot be decoded.
type CorruptError struct {
	ID   string
	File string
	Err  error
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("chat %s: corrupted %s: %v", e.ID, e.File, e.Err)
}

func (e *CorruptError) Unwrap() error { return e.Err }

// ValidateID rejects empty ids and ids containing path elements.
func ValidateID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
