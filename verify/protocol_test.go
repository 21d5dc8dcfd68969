package verify

import (
	"context"
	"encoding/hex"
	"regexp"
	"strings"
	"testing"

	gethaccounts "github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/degenRobot/rise-tg-bot/accounts"
	"github.com/degenRobot/rise-tg-bot/sigverify"
)

func TestCreateChallengeNoncesAreUniqueHex(t *testing.T) {
	t.Parallel()

	hexPattern := regexp.MustCompile(`^[0-9a-f]{32}$`)
	seen := make(map[string]bool)
	freq := make(map[rune]int)

	for i := 0; i < 200; i++ {
		c, err := CreateChallenge("42", "alice")
		if err != nil {
			t.Fatalf("CreateChallenge() error = %v", err)
		}
		if !hexPattern.MatchString(c.Nonce) {
			t.Fatalf("nonce %q is not 32 lowercase hex chars", c.Nonce)
		}
		if seen[c.Nonce] {
			t.Fatalf("nonce %q repeated", c.Nonce)
		}
		seen[c.Nonce] = true
		for _, r := range c.Nonce {
			freq[r]++
		}
	}

	// 200 nonces x 32 chars over 16 symbols: expect ~400 each. A symbol that
	// never shows up, or dominates, indicates a broken RNG.
	for r, n := range freq {
		if n < 100 || n > 900 {
			t.Fatalf("nonce char %q frequency %d is far from uniform", r, n)
		}
	}
}

func TestCreateChallengeMessageEmbedsIdentity(t *testing.T) {
	t.Parallel()

	c, err := CreateChallenge("42", "alice")
	if err != nil {
		t.Fatalf("CreateChallenge() error = %v", err)
	}
	if !strings.Contains(c.Message, "Telegram: @alice (ID: 42)") {
		t.Fatalf("message missing identity line:\n%s", c.Message)
	}
	if !strings.Contains(c.Message, "Nonce: "+c.Nonce) {
		t.Fatalf("message missing nonce line:\n%s", c.Message)
	}
}

func newSignedRequest(t *testing.T) (LinkRequest, *Protocol) {
	t.Helper()

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	c, err := CreateChallenge("42", "alice")
	if err != nil {
		t.Fatalf("CreateChallenge() error = %v", err)
	}
	sig, err := crypto.Sign(gethaccounts.TextHash([]byte(c.Message)), key)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	sig[64] += 27

	req := LinkRequest{
		TelegramID:     "42",
		TelegramHandle: "alice",
		WalletAddress:  crypto.PubkeyToAddress(key.PublicKey).Hex(),
		Message:        c.Message,
		Signature:      "0x" + hex.EncodeToString(sig),
	}
	proto := NewProtocol(sigverify.New(nil), accounts.NewFileStore(t.TempDir()), nil)
	return req, proto
}

func TestVerifyAndLinkRoundTrip(t *testing.T) {
	t.Parallel()

	req, proto := newSignedRequest(t)
	ctx := context.Background()

	link, err := proto.VerifyAndLink(ctx, req)
	if err != nil {
		t.Fatalf("VerifyAndLink() error = %v", err)
	}
	if link.WalletAddress != req.WalletAddress {
		t.Fatalf("link wallet = %q, want %q", link.WalletAddress, req.WalletAddress)
	}

	got, ok, err := proto.GetActiveLink(ctx, "42")
	if err != nil {
		t.Fatalf("GetActiveLink() error = %v", err)
	}
	if !ok || got.WalletAddress != req.WalletAddress {
		t.Fatalf("GetActiveLink() = %+v ok=%v, want stored link", got, ok)
	}
}

func TestVerifyAndLinkRejectsTamperedSignature(t *testing.T) {
	t.Parallel()

	req, proto := newSignedRequest(t)
	raw, err := hex.DecodeString(req.Signature[2:])
	if err != nil {
		t.Fatalf("DecodeString() error = %v", err)
	}
	raw[7] ^= 0x01
	req.Signature = "0x" + hex.EncodeToString(raw)

	_, err = proto.VerifyAndLink(context.Background(), req)
	if err == nil {
		t.Fatalf("VerifyAndLink() accepted a tampered signature")
	}
	if !strings.Contains(err.Error(), "verification failed") {
		t.Fatalf("VerifyAndLink() error = %v, want mention of verification failed", err)
	}
}

func TestVerifyAndLinkRejectsIdentityMismatch(t *testing.T) {
	t.Parallel()

	// The message embeds "@alice"; anything else, including a case variant of
	// the same username, must be rejected.
	for _, handle := range []string{"mallory", "ALICE", "Alice"} {
		req, proto := newSignedRequest(t)
		req.TelegramHandle = handle

		_, err := proto.VerifyAndLink(context.Background(), req)
		if err == nil {
			t.Fatalf("VerifyAndLink() accepted mismatched handle %q", handle)
		}
		if !strings.Contains(err.Error(), "does not match") {
			t.Fatalf("VerifyAndLink() handle %q error = %v, want mention of does not match", handle, err)
		}
	}
}

func TestVerifyAndLinkRejectsUnparseableMessage(t *testing.T) {
	t.Parallel()

	req, proto := newSignedRequest(t)

	// Re-sign a message that carries no identity line at all.
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	req.Message = "free-form text with no identity"
	sig, err := crypto.Sign(gethaccounts.TextHash([]byte(req.Message)), key)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	req.Signature = "0x" + hex.EncodeToString(sig)
	req.WalletAddress = crypto.PubkeyToAddress(key.PublicKey).Hex()

	_, err = proto.VerifyAndLink(context.Background(), req)
	if err == nil {
		t.Fatalf("VerifyAndLink() accepted an unparseable message")
	}
	if !strings.Contains(err.Error(), "parse") {
		t.Fatalf("VerifyAndLink() error = %v, want parse failure", err)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	t.Parallel()

	req, proto := newSignedRequest(t)
	ctx := context.Background()
	if _, err := proto.VerifyAndLink(ctx, req); err != nil {
		t.Fatalf("VerifyAndLink() error = %v", err)
	}

	changed, err := proto.Revoke(ctx, "42")
	if err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	if !changed {
		t.Fatalf("Revoke() = false, want true")
	}

	changed, err = proto.Revoke(ctx, "42")
	if err != nil {
		t.Fatalf("Revoke() second error = %v", err)
	}
	if changed {
		t.Fatalf("Revoke() second = true, want false")
	}
}
