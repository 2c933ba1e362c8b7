package conversation

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Info summarizes one stored conversation for listing.
type Info struct {
	ID         string `json:"id"`
	LatestTurn Turn   `json:"latest_turn"`
	Timestamp  string `json:"timestamp"`
}

var safeNamePattern = regexp.MustCompile(`^[A-Za-z0-9_\-\.]+$`)

// Store keeps conversation histories as JSON files, one directory per
// client. The first entry of every file is a metadata turn carrying the
// creation time; Get filters metadata and system turns out.
type Store struct {
	baseDir string
}

// NewStore returns a store rooted at baseDir.
func NewStore(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

// Create starts a new conversation for the client and returns its id.
func (s *Store) Create(clientID string) (string, error) {
	dir, err := s.ensureClientDir(clientID)
	if err != nil {
		return "", err
	}
	id := time.Now().Format("2006-01-02_15-04-05") + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	path := filepath.Join(dir, id+".json")
	meta := []Turn{{Role: "metadata", Timestamp: time.Now().Format(time.RFC3339)}}
	if err := writeTurns(path, meta); err != nil {
		return "", err
	}
	return id, nil
}

// Append adds turns to an existing conversation.
func (s *Store) Append(clientID string, conversationID string, turns ...Turn) error {
	path, err := s.conversationPath(clientID, conversationID)
	if err != nil {
		return err
	}
	existing, err := readTurns(path)
	if err != nil {
		return err
	}
	return writeTurns(path, append(existing, turns...))
}

// Get returns the visible turns of a conversation, oldest first.
func (s *Store) Get(clientID string, conversationID string) ([]Turn, error) {
	path, err := s.conversationPath(clientID, conversationID)
	if err != nil {
		return nil, err
	}
	turns, err := readTurns(path)
	if err != nil {
		return nil, err
	}
	filtered := []Turn{}
	for _, turn := range turns {
		if turn.Role == "metadata" || turn.Role == "system" {
			continue
		}
		filtered = append(filtered, turn)
	}
	return filtered, nil
}

// Load rebuilds a Conversation from disk.
func (s *Store) Load(clientID string, conversationID string) (*Conversation, error) {
	turns, err := s.Get(clientID, conversationID)
	if err != nil {
		return nil, err
	}
	return &Conversation{ID: conversationID, History: turns}, nil
}

// Delete removes a conversation and reports whether it existed.
func (s *Store) Delete(clientID string, conversationID string) bool {
	path, err := s.conversationPath(clientID, conversationID)
	if err != nil {
		return false
	}
	if _, err := os.Stat(path); err != nil {
		return false
	}
	return os.Remove(path) == nil
}

// List returns the client's conversations, newest first. Conversations
// with no visible turns yet are skipped.
func (s *Store) List(clientID string) []Info {
	list := []Info{}
	dir, err := s.ensureClientDir(clientID)
	if err != nil {
		return list
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return list
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		id := strings.TrimSuffix(entry.Name(), ".json")
		turns, err := readTurns(filepath.Join(dir, entry.Name()))
		if err != nil {
			continue
		}
		var latest *Turn
		for i := len(turns) - 1; i >= 0; i-- {
			if turns[i].Role == "metadata" {
				continue
			}
			turn := turns[i]
			latest = &turn
			break
		}
		if latest == nil {
			continue
		}
		list = append(list, Info{
			ID:         id,
			LatestTurn: *latest,
			Timestamp:  latest.Timestamp,
		})
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Timestamp > list[j].Timestamp
	})

	return list
}

func (s *Store) ensureClientDir(clientID string) (string, error) {
	if s.baseDir == "" {
		return "", errors.New("conversation base dir is empty")
	}
	if !safeNamePattern.MatchString(clientID) {
		return "", errors.New("invalid client id")
	}
	path := filepath.Join(s.baseDir, clientID)
	if err := os.MkdirAll(path, 0o755); err != nil {
		return "", err
	}
	return path, nil
}

func (s *Store) conversationPath(clientID string, conversationID string) (string, error) {
	if s.baseDir == "" {
		return "", errors.New("conversation base dir is empty")
	}
	if !safeNamePattern.MatchString(clientID) || !safeNamePattern.MatchString(conversationID) {
		return "", errors.New("invalid conversation path")
	}
	return filepath.Join(s.baseDir, clientID, conversationID+".json"), nil
}

func readTurns(path string) ([]Turn, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return nil, err
	}
	return turns, nil
}

func writeTurns(path string, turns []Turn) error {
	data, err := json.MarshalIndent(turns, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
