// Package alerts stores user-defined price and activity alerts. Only
// creation and listing are implemented; a delivery loop that evaluates
// alerts against market data would live in a separate worker.
package alerts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/degenRobot/rise-tg-bot/internal/fsstore"
)

type Alert struct {
	ID         string    `json:"id"`
	TelegramID string    `json:"telegram_id"`
	Token      string    `json:"token"`
	Condition  string    `json:"condition"`
	Threshold  string    `json:"threshold"`
	CreatedAt  time.Time `json:"created_at"`
}

type alertFile struct {
	Version int     `json:"version"`
	Alerts  []Alert `json:"alerts"`
}

type FileStore struct {
	root string
	mu   sync.Mutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: strings.TrimSpace(root)}
}

// Create validates and persists a new alert for the identity, returning it
// with its assigned id.
func (s *FileStore) Create(ctx context.Context, a Alert) (Alert, error) {
	if err := ctx.Err(); err != nil {
		return Alert{}, err
	}
	a.TelegramID = strings.TrimSpace(a.TelegramID)
	if a.TelegramID == "" {
		return Alert{}, fmt.Errorf("alerts: telegram_id is required")
	}
	if strings.TrimSpace(a.Token) == "" {
		return Alert{}, fmt.Errorf("alerts: token is required")
	}
	a.ID = uuid.NewString()
	a.CreatedAt = time.Now().UTC()

	s.mu.Lock()
	defer s.mu.Unlock()

	var file alertFile
	path := s.path(a.TelegramID)
	if _, err := fsstore.ReadJSON(path, &file); err != nil {
		return Alert{}, err
	}
	file.Version = 1
	file.Alerts = append(file.Alerts, a)
	if err := fsstore.WriteJSONAtomic(path, file); err != nil {
		return Alert{}, err
	}
	return a, nil
}

// List returns the identity's alerts, oldest first.
func (s *FileStore) List(ctx context.Context, telegramID string) ([]Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var file alertFile
	if _, err := fsstore.ReadJSON(s.path(telegramID), &file); err != nil {
		return nil, err
	}
	return file.Alerts, nil
}

func (s *FileStore) path(telegramID string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(telegramID)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = "unknown"
	}
	return filepath.Join(s.root, "alerts", name+".json")
}
