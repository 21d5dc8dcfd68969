package permissions

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/degenRobot/rise-tg-bot/internal/fsstore"
)

const permissionFileVersion = 1

type permissionFile struct {
	Version       int      `json:"version"`
	WalletAddress string   `json:"wallet_address"`
	Records       []Record `json:"records"`
}

// FileStore aggregates all of a wallet's permission records into one JSON
// document under <root>/permissions/. Same write discipline as the accounts
// store: in-process mutex, per-wallet lock file, atomic rename.
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
	return fsstore.EnsureDir(s.permissionsDir(), 0o700)
}

func (s *FileStore) Upsert(ctx context.Context, walletAddress string, rec Record) error {
	if err := ensureNotCanceled(ctx); err != nil {
		return err
	}
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return fmt.Errorf("permissions: wallet address is required")
	}
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("permissions: record id is required")
	}
	rec.WalletAddress = walletAddress

	s.mu.Lock()
	defer s.mu.Unlock()

	lockPath, err := s.lockPath(walletAddress)
	if err != nil {
		return err
	}
	return fsstore.WithLock(ctx, lockPath, func() error {
		file, _, err := s.loadLocked(walletAddress)
		if err != nil {
			return err
		}
		file.WalletAddress = walletAddress
		replaced := false
		for i := range file.Records {
			if file.Records[i].ID == rec.ID {
				file.Records[i] = rec
				replaced = true
				break
			}
		}
		if !replaced {
			file.Records = append(file.Records, rec)
		}
		return s.saveLocked(walletAddress, file)
	})
}

func (s *FileStore) FindActive(ctx context.Context, walletAddress, publicKey string, now time.Time) (Record, bool, error) {
	records, err := s.listByWallet(ctx, walletAddress)
	if err != nil {
		return Record{}, false, err
	}
	var best Record
	found := false
	for _, rec := range records {
		if !rec.MatchesKey(publicKey) || !rec.ActiveAt(now) {
			continue
		}
		if !found || rec.GrantedAt > best.GrantedAt {
			best = rec
			found = true
		}
	}
	return best, found, nil
}

func (s *FileStore) FindAny(ctx context.Context, walletAddress, publicKey string) (Record, bool, error) {
	records, err := s.listByWallet(ctx, walletAddress)
	if err != nil {
		return Record{}, false, err
	}
	var best Record
	found := false
	for _, rec := range records {
		if !rec.MatchesKey(publicKey) {
			continue
		}
		if !found || rec.GrantedAt > best.GrantedAt {
			best = rec
			found = true
		}
	}
	return best, found, nil
}

func (s *FileStore) CleanupExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets, err := s.walletFilesLocked()
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, wallet := range wallets {
		lockPath, err := s.lockPath(wallet)
		if err != nil {
			return removed, err
		}
		err = fsstore.WithLock(ctx, lockPath, func() error {
			file, exists, err := s.loadLocked(wallet)
			if err != nil {
				return err
			}
			if !exists {
				return nil
			}
			kept := file.Records[:0]
			for _, rec := range file.Records {
				if rec.ActiveAt(now) {
					kept = append(kept, rec)
				} else {
					removed++
				}
			}
			if len(kept) == len(file.Records) {
				return nil
			}
			file.Records = kept
			return s.saveLocked(wallet, file)
		})
		if err != nil {
			return removed, err
		}
	}
	return removed, nil
}

func (s *FileStore) ListByTelegramID(ctx context.Context, telegramID string) ([]Record, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	wallets, err := s.walletFilesLocked()
	if err != nil {
		return nil, err
	}

	var out []Record
	for _, wallet := range wallets {
		file, _, err := s.loadLocked(wallet)
		if err != nil {
			return nil, err
		}
		for _, rec := range file.Records {
			if rec.TelegramID == telegramID {
				out = append(out, rec)
			}
		}
	}
	return out, nil
}

func (s *FileStore) Revoke(ctx context.Context, walletAddress, permissionID string) (bool, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return false, err
	}
	walletAddress = strings.TrimSpace(walletAddress)
	if walletAddress == "" {
		return false, fmt.Errorf("permissions: wallet address is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := false
	lockPath, err := s.lockPath(walletAddress)
	if err != nil {
		return false, err
	}
	err = fsstore.WithLock(ctx, lockPath, func() error {
		file, exists, err := s.loadLocked(walletAddress)
		if err != nil {
			return err
		}
		if !exists {
			return nil
		}
		kept := file.Records[:0]
		for _, rec := range file.Records {
			if rec.ID == permissionID {
				removed = true
				continue
			}
			kept = append(kept, rec)
		}
		if !removed {
			return nil
		}
		file.Records = kept
		return s.saveLocked(walletAddress, file)
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

func (s *FileStore) listByWallet(ctx context.Context, walletAddress string) ([]Record, error) {
	if err := ensureNotCanceled(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	file, _, err := s.loadLocked(walletAddress)
	if err != nil {
		return nil, err
	}
	return file.Records, nil
}

func (s *FileStore) loadLocked(walletAddress string) (permissionFile, bool, error) {
	var file permissionFile
	exists, err := fsstore.ReadJSON(s.walletPath(walletAddress), &file)
	if err != nil {
		return permissionFile{}, false, err
	}
	if file.Version == 0 {
		file.Version = permissionFileVersion
	}
	return file, exists, nil
}

func (s *FileStore) saveLocked(walletAddress string, file permissionFile) error {
	file.Version = permissionFileVersion
	return fsstore.WriteJSONAtomic(s.walletPath(walletAddress), file)
}

// walletFilesLocked lists the sanitized wallet keys that have a document on
// disk. The sanitized key is enough to re-derive the file and lock paths.
func (s *FileStore) walletFilesLocked() ([]string, error) {
	entries, err := os.ReadDir(s.permissionsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("permissions: read dir: %w", err)
	}
	var wallets []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		wallets = append(wallets, strings.TrimSuffix(name, ".json"))
	}
	return wallets, nil
}

func (s *FileStore) permissionsDir() string {
	return filepath.Join(s.root, "permissions")
}

func (s *FileStore) walletPath(walletAddress string) string {
	return filepath.Join(s.permissionsDir(), sanitizeWallet(walletAddress)+".json")
}

func (s *FileStore) lockPath(walletAddress string) (string, error) {
	return fsstore.BuildLockPath(filepath.Join(s.root, ".locks"), "permissions."+sanitizeWallet(walletAddress))
}

func sanitizeWallet(addr string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(addr)) {
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
