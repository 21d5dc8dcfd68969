package permissions

import (
	"context"
	"time"
)

type Store interface {
	Ensure(ctx context.Context) error

	// Upsert adds the record to the wallet's document, replacing any existing
	// record with the same id.
	Upsert(ctx context.Context, walletAddress string, rec Record) error
	// FindActive returns the unexpired record for (wallet, key) with the
	// largest GrantedAt. Key comparison is case-insensitive.
	FindActive(ctx context.Context, walletAddress, publicKey string, now time.Time) (Record, bool, error)
	// FindAny is FindActive without the expiry filter. Callers use it to tell
	// an expired grant apart from one that never existed.
	FindAny(ctx context.Context, walletAddress, publicKey string) (Record, bool, error)
	// CleanupExpired drops every expired record across all wallets and returns
	// how many it removed.
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
	// ListByTelegramID returns all records granted through the given Telegram
	// identity, across wallets.
	ListByTelegramID(ctx context.Context, telegramID string) ([]Record, error)
	// Revoke removes a single record by id. It reports whether a record was
	// actually removed, so a repeated revoke returns false.
	Revoke(ctx context.Context, walletAddress, permissionID string) (bool, error)
}
