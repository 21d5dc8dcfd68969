package accounts

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/degenRobot/rise-tg-bot/internal/fsstore"
)

const linkFileVersion = 1

type linkFile struct {
	Version int    `json:"version"`
	Links   []Link `json:"links"`
}

// FileStore keeps one JSON document per Telegram identity under
// <root>/verified-links/. Writes go through fsstore's atomic rename so
// concurrent readers never observe a torn file.
type FileStore struct {
	root string
	mu   sync.Mutex
}

func NewFileStore(root string) *FileStore {
	return &FileStore{root: strings.TrimSpace(root)}
}

func (s *FileStore) Ensure(ctx context.Context) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fsstore.EnsureDir(s.linksDir(), 0o700)
}

func (s *FileStore) GetActive(ctx context.Context, telegramID string) (Link, bool, error) {
	links, err := s.ListByTelegramID(ctx, telegramID)
	if err != nil {
		return Link{}, false, err
	}
	// Newest records are appended last; scan backwards so a replacement link
	// wins over stale history.
	for i := len(links) - 1; i >= 0; i-- {
		if links[i].Active {
			return links[i], true, nil
		}
	}
	return Link{}, false, nil
}

func (s *FileStore) ListByTelegramID(ctx context.Context, telegramID string) ([]Link, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, _, err := s.loadLocked(telegramID)
	if err != nil {
		return nil, err
	}
	return file.Links, nil
}

func (s *FileStore) Put(ctx context.Context, link Link) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	link.TelegramID = strings.TrimSpace(link.TelegramID)
	if link.TelegramID == "" {
		return fmt.Errorf("accounts: telegram_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	lockPath, err := s.lockPath(link.TelegramID)
	if err != nil {
		return err
	}
	return fsstore.WithLock(ctx, lockPath, func() error {
		file, _, err := s.loadLocked(link.TelegramID)
		if err != nil {
			return err
		}
		for i := range file.Links {
			file.Links[i].Active = false
		}
		file.Links = append(file.Links, link)
		return s.saveLocked(link.TelegramID, file)
	})
}

func (s *FileStore) DeactivateActive(ctx context.Context, telegramID string) (bool, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return false, err
	}
	telegramID = strings.TrimSpace(telegramID)
	if telegramID == "" {
		return false, fmt.Errorf("accounts: telegram_id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	lockPath, err := s.lockPath(telegramID)
	if err != nil {
		return false, err
	}
	err = fsstore.WithLock(ctx, lockPath, func() error {
		file, exists, err := s.loadLocked(telegramID)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		for i := range file.Links {
			if file.Links[i].Active {
				file.Links[i].Active = false
				changed = true
			}
		}
		if !changed {
			return nil
		}
		return s.saveLocked(telegramID, file)
	})
	if err != nil {
		return false, err
	}
	return changed, nil
}

func (s *FileStore) loadLocked(telegramID string) (linkFile, bool, error) {
	var file linkFile
	exists, err := fsstore.ReadJSON(s.linkPath(telegramID), &file)
	if err != nil {
		return linkFile{}, false, err
	}
	if file.Version == 0 {
		file.Version = linkFileVersion
	}
	return file, exists, nil
}

func (s *FileStore) saveLocked(telegramID string, file linkFile) error {
	file.Version = linkFileVersion
	return fsstore.WriteJSONAtomic(s.linkPath(telegramID), file)
}

func (s *FileStore) linksDir() string {
	return filepath.Join(s.root, "verified-links")
}

func (s *FileStore) linkPath(telegramID string) string {
	return filepath.Join(s.linksDir(), sanitizeID(telegramID)+".json")
}

func (s *FileStore) lockPath(telegramID string) (string, error) {
	return fsstore.BuildLockPath(filepath.Join(s.root, ".locks"), "links."+sanitizeID(telegramID))
}

func sanitizeID(id string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(id)) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

func ensureNotCanceled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
