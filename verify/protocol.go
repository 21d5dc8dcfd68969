// Package verify implements the wallet-linking protocol: issue a nonce-bound
// challenge, check the returned signature, cross-check the identity embedded
// in the signed message against the caller's claim, and persist the link.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/degenRobot/rise-tg-bot/accounts"
)

// identityPattern extracts the handle and numeric id from the signed message.
// It matches the "Telegram: @handle (ID: 123)" line of the challenge template.
var identityPattern = regexp.MustCompile(`@([A-Za-z0-9_]+) \(ID: (\d+)\)`)

// SignatureVerifier is satisfied by sigverify.Verifier.
type SignatureVerifier interface {
	Verify(ctx context.Context, address, message, signature string) (bool, error)
}

type Protocol struct {
	verifier SignatureVerifier
	links    accounts.Store
	logger   *slog.Logger
}

func NewProtocol(verifier SignatureVerifier, links accounts.Store, logger *slog.Logger) *Protocol {
	if logger == nil {
		logger = slog.Default()
	}
	return &Protocol{verifier: verifier, links: links, logger: logger}
}

// LinkRequest is what the linking frontend submits after the user signs the
// challenge. TelegramID and TelegramHandle are the caller's claimed identity;
// both must match what is embedded in the signed message.
type LinkRequest struct {
	TelegramID     string `json:"telegram_id"`
	TelegramHandle string `json:"telegram_handle"`
	WalletAddress  string `json:"wallet_address"`
	Message        string `json:"message"`
	Signature      string `json:"signature"`
}

// VerifyAndLink validates the signed challenge and, on success, stores a new
// active link for the Telegram identity. Any previously active link for the
// same identity is deactivated, never deleted.
func (p *Protocol) VerifyAndLink(ctx context.Context, req LinkRequest) (accounts.Link, error) {
	ok, err := p.verifier.Verify(ctx, req.WalletAddress, req.Message, req.Signature)
	if err != nil {
		return accounts.Link{}, fmt.Errorf("verify: signature verification failed: %w", err)
	}
	if !ok {
		return accounts.Link{}, fmt.Errorf("verify: signature verification failed for %s", req.WalletAddress)
	}

	handle, id, err := parseIdentity(req.Message)
	if err != nil {
		return accounts.Link{}, err
	}
	// The claimed handle must match the signed message exactly, case included.
	if handle != strings.TrimPrefix(req.TelegramHandle, "@") {
		return accounts.Link{}, fmt.Errorf("verify: handle %q does not match signed message (expected @%s)", req.TelegramHandle, handle)
	}
	if id != strings.TrimSpace(req.TelegramID) {
		return accounts.Link{}, fmt.Errorf("verify: telegram id %q does not match signed message", req.TelegramID)
	}

	link := accounts.Link{
		ID:             uuid.NewString(),
		TelegramID:     id,
		TelegramHandle: handle,
		WalletAddress:  req.WalletAddress,
		VerifiedAt:     time.Now().UTC(),
		Signature:      req.Signature,
		Message:        req.Message,
		Active:         true,
	}
	if err := p.links.Put(ctx, link); err != nil {
		return accounts.Link{}, fmt.Errorf("verify: store link: %w", err)
	}

	p.logger.Info("wallet linked",
		"telegram_id", id,
		"wallet", req.WalletAddress,
	)
	return link, nil
}

// GetActiveLink returns the identity's current wallet link, if any.
func (p *Protocol) GetActiveLink(ctx context.Context, telegramID string) (accounts.Link, bool, error) {
	return p.links.GetActive(ctx, telegramID)
}

// Revoke deactivates the identity's active link. The second call in a row
// reports false.
func (p *Protocol) Revoke(ctx context.Context, telegramID string) (bool, error) {
	changed, err := p.links.DeactivateActive(ctx, telegramID)
	if err != nil {
		return false, fmt.Errorf("verify: revoke link: %w", err)
	}
	if changed {
		p.logger.Info("wallet link revoked", "telegram_id", telegramID)
	}
	return changed, nil
}

func parseIdentity(message string) (handle, telegramID string, err error) {
	m := identityPattern.FindStringSubmatch(message)
	if m == nil {
		return "", "", fmt.Errorf("verify: failed to parse verification message")
	}
	return m[1], m[2], nil
}
