package accounts

import "time"

// Link binds a Telegram identity to a verified wallet address. Links are
// never deleted: replacing or revoking a link flips Active to false on the
// old record and the full history stays on disk as an audit trail.
type Link struct {
	ID             string    `json:"id"`
	TelegramID     string    `json:"telegram_id"`
	TelegramHandle string    `json:"telegram_handle"`
	WalletAddress  string    `json:"wallet_address"`
	VerifiedAt     time.Time `json:"verified_at"`
	Signature      string    `json:"signature"`
	Message        string    `json:"message"`
	Active         bool      `json:"active"`
}
