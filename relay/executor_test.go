package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/degenRobot/rise-tg-bot/intents"
	"github.com/degenRobot/rise-tg-bot/permissions"
)

const (
	testWallet = "0xAbCd000000000000000000000000000000000001"
	// A fixed P-256 scalar so the signer's public key is stable across runs.
	testP256Key = "c9afa9d845ba75166b5c215767b1d6934e50c3db36e89b127b8a622b120f6721"
)

func newTestSigner(t *testing.T) Signer {
	t.Helper()
	s, err := NewSignerFromHex(testP256Key, permissions.KeyTypeP256)
	if err != nil {
		t.Fatalf("NewSignerFromHex() error = %v", err)
	}
	return s
}

// stubRPC scripts the relay's two methods.
type stubRPC struct {
	prepareErr  error
	sendErr     error
	sendPayload string
	gotPrepare  prepareCallsRequest
	gotSend     sendPreparedCallsRequest
}

func (s *stubRPC) CallContext(ctx context.Context, result any, method string, args ...any) error {
	switch method {
	case "wallet_prepareCalls":
		if s.prepareErr != nil {
			return s.prepareErr
		}
		s.gotPrepare = args[0].(prepareCallsRequest)
		resp := result.(*prepareCallsResponse)
		resp.Digest = "0x" + fmt.Sprintf("%064x", 7)
		resp.Context = json.RawMessage(`{"preCall":{"nonce":"0x1"},"quote":{"fee":"0x0"}}`)
		return nil
	case "wallet_sendPreparedCalls":
		if s.sendErr != nil {
			return s.sendErr
		}
		s.gotSend = args[0].(sendPreparedCallsRequest)
		payload := s.sendPayload
		if payload == "" {
			payload = `{"id":"bundle-1","transactionHashes":["0xaaa"]}`
		}
		*result.(*json.RawMessage) = json.RawMessage(payload)
		return nil
	default:
		return fmt.Errorf("unexpected method %s", method)
	}
}

func newTestExecutor(t *testing.T, rpc RPC) (*Executor, *permissions.FileStore) {
	t.Helper()
	store := permissions.NewFileStore(t.TempDir())
	exec := NewExecutor(store, newTestSigner(t), NewClient(rpc), 11155931, nil)
	return exec, store
}

func grant(t *testing.T, store *permissions.FileStore, signer Signer, expiry time.Time) {
	t.Helper()
	err := store.Upsert(context.Background(), testWallet, permissions.Record{
		ID:        "perm-1",
		Expiry:    expiry.Unix(),
		PublicKey: signer.PublicKey(),
		KeyType:   signer.KeyType(),
		GrantedAt: time.Now().UnixMilli(),
	})
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
}

func testCalls() []intents.Call {
	return []intents.Call{{
		To:    "0x1111111111111111111111111111111111111111",
		Data:  []byte{0x12, 0x34},
		Value: big.NewInt(0),
	}}
}

func TestExecuteNoPermission(t *testing.T) {
	t.Parallel()

	exec, _ := newTestExecutor(t, &stubRPC{})
	res := exec.Execute(context.Background(), testWallet, testCalls())
	if res.Success {
		t.Fatalf("Execute() succeeded without a permission")
	}
	if res.ErrorKind != ErrKindNoPermission {
		t.Fatalf("Execute() kind = %q, want %q", res.ErrorKind, ErrKindNoPermission)
	}
}

func TestExecuteExpiredSession(t *testing.T) {
	t.Parallel()

	exec, store := newTestExecutor(t, &stubRPC{})
	grant(t, store, newTestSigner(t), time.Now().Add(-time.Hour))

	res := exec.Execute(context.Background(), testWallet, testCalls())
	if res.ErrorKind != ErrKindExpiredSession {
		t.Fatalf("Execute() kind = %q, want %q", res.ErrorKind, ErrKindExpiredSession)
	}
}

func TestExecuteHappyPath(t *testing.T) {
	t.Parallel()

	rpc := &stubRPC{}
	exec, store := newTestExecutor(t, rpc)
	grant(t, store, newTestSigner(t), time.Now().Add(time.Hour))

	res := exec.Execute(context.Background(), testWallet, testCalls())
	if !res.Success {
		t.Fatalf("Execute() failed: %s %s", res.ErrorKind, res.ErrorDetail)
	}
	if res.BundleID != "bundle-1" {
		t.Fatalf("Execute() bundle = %q, want bundle-1", res.BundleID)
	}
	if len(res.TxHashes) != 1 || res.TxHashes[0] != "0xaaa" {
		t.Fatalf("Execute() hashes = %v, want [0xaaa]", res.TxHashes)
	}

	// The send phase must carry the prepare context back verbatim.
	if string(rpc.gotSend.Context) != `{"preCall":{"nonce":"0x1"},"quote":{"fee":"0x0"}}` {
		t.Fatalf("send context = %s, not passed through verbatim", rpc.gotSend.Context)
	}
	// P-256 wire signatures are 64 bytes: 0x + 128 hex chars.
	if len(rpc.gotSend.Signature.Value) != 2+128 {
		t.Fatalf("signature length = %d chars, want 130", len(rpc.gotSend.Signature.Value))
	}
	if rpc.gotPrepare.ChainID != "0xaa39db" {
		t.Fatalf("prepare chainId = %q, want 0xaa39db", rpc.gotPrepare.ChainID)
	}
}

func TestExecuteAcceptsArraySendResponse(t *testing.T) {
	t.Parallel()

	rpc := &stubRPC{sendPayload: `[{"id":"bundle-2","transactionHash":"0xbbb"}]`}
	exec, store := newTestExecutor(t, rpc)
	grant(t, store, newTestSigner(t), time.Now().Add(time.Hour))

	res := exec.Execute(context.Background(), testWallet, testCalls())
	if !res.Success || res.BundleID != "bundle-2" {
		t.Fatalf("Execute() = %+v, want bundle-2 success", res)
	}
	if len(res.TxHashes) != 1 || res.TxHashes[0] != "0xbbb" {
		t.Fatalf("Execute() hashes = %v, want [0xbbb]", res.TxHashes)
	}
}

func TestExecuteClassifiesRelayErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want string
	}{
		{"unauthorized", errors.New("Unauthorized: key not delegated"), ErrKindUnauthorized},
		{"invalid precall", errors.New("Invalid precall state"), ErrKindUnauthorized},
		{"permission mismatch", errors.New("permission mismatch for key"), ErrKindUnauthorized},
		{"network", errors.New("Network request failed"), ErrKindNetwork},
		{"fetch", errors.New("fetch failed: connection refused"), ErrKindNetwork},
		{"unknown", errors.New("internal relay error"), ErrKindUnknown},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			exec, store := newTestExecutor(t, &stubRPC{prepareErr: tc.err})
			grant(t, store, newTestSigner(t), time.Now().Add(time.Hour))

			res := exec.Execute(context.Background(), testWallet, testCalls())
			if res.Success {
				t.Fatalf("Execute() succeeded, want classified failure")
			}
			if res.ErrorKind != tc.want {
				t.Fatalf("Execute() kind = %q, want %q", res.ErrorKind, tc.want)
			}
		})
	}
}

func TestSignerWireEncodings(t *testing.T) {
	t.Parallel()

	digest := make([]byte, 32)
	digest[31] = 1

	p256 := newTestSigner(t)
	sig, err := p256.Sign(digest)
	if err != nil {
		t.Fatalf("p256 Sign() error = %v", err)
	}
	if len(sig) != 2+128 {
		t.Fatalf("p256 signature = %d chars, want 130 (64 bytes)", len(sig))
	}

	secp, err := NewSignerFromHex(
		"4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318",
		permissions.KeyTypeSecp256k1,
	)
	if err != nil {
		t.Fatalf("NewSignerFromHex(secp256k1) error = %v", err)
	}
	sig, err = secp.Sign(digest)
	if err != nil {
		t.Fatalf("secp256k1 Sign() error = %v", err)
	}
	if len(sig) != 2+130 {
		t.Fatalf("secp256k1 signature = %d chars, want 132 (65 bytes)", len(sig))
	}
}
