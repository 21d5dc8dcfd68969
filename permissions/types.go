package permissions

import (
	"strings"
	"time"
)

// Key types a wallet can delegate to the backend signer.
const (
	KeyTypeSecp256k1 = "secp256k1"
	KeyTypeP256      = "p256"
)

// AllowedCall scopes a permission to a target contract and, optionally, a
// single 4-byte function selector. Empty fields mean "any".
type AllowedCall struct {
	To       string `json:"to,omitempty"`
	Selector string `json:"selector,omitempty"`
}

// AllowedSpend caps how much of a token the delegated key may move within a
// period. LimitWei stays a decimal string so arbitrarily large uint256 limits
// survive JSON round trips.
type AllowedSpend struct {
	Token    string `json:"token,omitempty"`
	LimitWei string `json:"limit_wei"`
	Period   string `json:"period"`
}

// Record is one session-key grant a wallet has delegated to the backend.
// Records are immutable once stored: a fresh grant is a new record, and a
// grant "expires" purely by its Expiry passing. GrantedAt is Unix
// milliseconds, Expiry is Unix seconds; both come straight from the linking
// frontend.
type Record struct {
	ID             string         `json:"id"`
	Expiry         int64          `json:"expiry"`
	PublicKey      string         `json:"public_key"`
	KeyType        string         `json:"key_type"`
	AllowedCalls   []AllowedCall  `json:"allowed_calls,omitempty"`
	AllowedSpend   []AllowedSpend `json:"allowed_spend,omitempty"`
	GrantedAt      int64          `json:"granted_at"`
	WalletAddress  string         `json:"wallet_address"`
	TelegramID     string         `json:"telegram_id,omitempty"`
	TelegramHandle string         `json:"telegram_handle,omitempty"`
}

// ActiveAt reports whether the record is unexpired at the given instant.
func (r Record) ActiveAt(now time.Time) bool {
	return r.Expiry > now.Unix()
}

// MatchesKey compares delegated public keys case-insensitively. Keys arrive
// hex-encoded from two independent sources (chain events and the relay) which
// disagree on capitalization.
func (r Record) MatchesKey(publicKey string) bool {
	return strings.EqualFold(strings.TrimSpace(r.PublicKey), strings.TrimSpace(publicKey))
}

// PermitsCall reports whether the record covers a call to the given contract
// address. A record with no AllowedCalls entries permits nothing.
func (r Record) PermitsCall(to string) bool {
	for _, c := range r.AllowedCalls {
		if c.To == "" || strings.EqualFold(c.To, to) {
			return true
		}
	}
	return false
}
