// Package welcome persists per-chat welcome message templates to a JSON flat
// file. The store is a small external collaborator of the moderation core:
// admins set a template with an optional channel link, and the dispatcher
// renders it when a member joins.
package welcome

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// mentionPlaceholder is replaced with the joining member's mention on render.
const mentionPlaceholder = "{user_mention}"

// Message is one chat's welcome configuration.
type Message struct {
	Text        string `json:"message"`
	ChannelLink string `json:"channel_link,omitempty"`
}

// Store is a mutex-guarded flat-file welcome store. Every mutation is
// written through to disk with an atomic rename.
type Store struct {
	mu       sync.Mutex
	path     string
	welcomes map[string]Message
}

// NewStore opens (or creates) the store at path. A missing file yields an
// empty store; an unreadable one is an error so misconfiguration is loud.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path, welcomes: make(map[string]Message)}

	data, err := os.ReadFile(path) //nolint:gosec
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading welcome store: %w", err)
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &s.welcomes); err != nil {
			return nil, fmt.Errorf("parsing welcome store: %w", err)
		}
	}
	return s, nil
}

// Set saves the welcome message for a chat.
func (s *Store) Set(chatID int64, msg Message) error {
	if strings.TrimSpace(msg.Text) == "" {
		return fmt.Errorf("welcome text must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.welcomes[key(chatID)] = msg
	return s.saveLocked()
}

// Clear removes the welcome message for a chat. Returns false when none was
// configured.
func (s *Store) Clear(chatID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.welcomes[key(chatID)]; !ok {
		return false, nil
	}
	delete(s.welcomes, key(chatID))
	return true, s.saveLocked()
}

// Get returns the welcome message for a chat, if configured.
func (s *Store) Get(chatID int64) (Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.welcomes[key(chatID)]
	return msg, ok
}

// Render builds the welcome text for a joining member, substituting the
// mention placeholder and appending the channel link when present. Returns
// false when the chat has no welcome configured.
func (s *Store) Render(chatID int64, mention string) (string, bool) {
	msg, ok := s.Get(chatID)
	if !ok {
		return "", false
	}
	text := strings.ReplaceAll(msg.Text, mentionPlaceholder, mention)
	if msg.ChannelLink != "" {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		text += "\nChannel: " + msg.ChannelLink
	}
	return text, true
}

// saveLocked writes the store to disk. Must be called with s.mu held.
func (s *Store) saveLocked() error {
	data, err := json.MarshalIndent(s.welcomes, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding welcome store: %w", err)
	}
	tmp := filepath.Join(filepath.Dir(s.path), "."+filepath.Base(s.path)+".tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing welcome store: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing welcome store: %w", err)
	}
	return nil
}

func key(chatID int64) string { return strconv.FormatInt(chatID, 10) }
