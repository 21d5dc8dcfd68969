package verify

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// Challenge is the message a user must sign to prove wallet ownership. It is
// never persisted; every verification attempt gets a fresh nonce.
type Challenge struct {
	TelegramID     string `json:"telegram_id"`
	TelegramHandle string `json:"telegram_handle"`
	Timestamp      int64  `json:"timestamp"`
	Nonce          string `json:"nonce"`
	Message        string `json:"message"`
}

const messageTemplate = `RISE Tg Bot Verification

Telegram: @%s (ID: %s)
Timestamp: %d
Nonce: %s

Sign this message to link your wallet to your Telegram account.`

// CreateChallenge builds a challenge for the given Telegram identity. The
// nonce is 16 random bytes hex-encoded, which makes guessing or replaying a
// challenge infeasible.
func CreateChallenge(telegramID, telegramHandle string) (Challenge, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return Challenge{}, fmt.Errorf("verify: generate nonce: %w", err)
	}
	c := Challenge{
		TelegramID:     telegramID,
		TelegramHandle: telegramHandle,
		Timestamp:      time.Now().UnixMilli(),
		Nonce:          hex.EncodeToString(nonce),
	}
	c.Message = fmt.Sprintf(messageTemplate, c.TelegramHandle, c.TelegramID, c.Timestamp, c.Nonce)
	return c, nil
}
