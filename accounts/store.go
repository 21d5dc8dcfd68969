package accounts

import "context"

type Store interface {
	Ensure(ctx context.Context) error

	// GetActive returns the single active link for a Telegram identity.
	GetActive(ctx context.Context, telegramID string) (Link, bool, error)
	// ListByTelegramID returns the identity's full link history, newest last.
	ListByTelegramID(ctx context.Context, telegramID string) ([]Link, error)
	// Put appends a new link after deactivating any currently active one.
	Put(ctx context.Context, link Link) error
	// DeactivateActive flips the active link to inactive. It reports whether
	// anything changed, so a second call in a row returns false.
	DeactivateActive(ctx context.Context, telegramID string) (bool, error)
}
