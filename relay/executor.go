// Package relay drives delegated execution through the RISE relay: resolve
// an active session-key permission, ask the relay to prepare a call bundle,
// sign the returned digest with the backend key, and submit the signed
// bundle. Every failure comes back as a classified ExecutionResult.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/degenRobot/rise-tg-bot/intents"
	"github.com/degenRobot/rise-tg-bot/permissions"
)

// Error kinds for the execution path. Stable strings: the router maps each to
// a fixed user-facing sentence.
const (
	ErrKindExpiredSession = "expired_session"
	ErrKindNoPermission   = "no_permission"
	ErrKindUnauthorized   = "unauthorized"
	ErrKindNetwork        = "network_error"
	ErrKindUnknown        = "unknown"
)

type ExecutionResult struct {
	Success     bool     `json:"success"`
	BundleID    string   `json:"bundle_id,omitempty"`
	TxHashes    []string `json:"tx_hashes,omitempty"`
	ErrorKind   string   `json:"error_kind,omitempty"`
	ErrorDetail string   `json:"error_detail,omitempty"`
}

type Executor struct {
	perms   permissions.Store
	signer  Signer
	client  *Client
	chainID uint64
	logger  *slog.Logger
}

func NewExecutor(perms permissions.Store, signer Signer, client *Client, chainID uint64, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{perms: perms, signer: signer, client: client, chainID: chainID, logger: logger}
}

// Execute runs the prepare/sign/send flow for the wallet's active session
// permission. It never retries: relay digests are single-use, so replaying a
// stale prepare/sign pair fails by design of the protocol, and retry policy
// belongs to the caller.
func (e *Executor) Execute(ctx context.Context, walletAddress string, calls []intents.Call) ExecutionResult {
	if len(calls) == 0 {
		return failure(ErrKindUnknown, "no calls to execute")
	}

	rec, ok, err := e.perms.FindActive(ctx, walletAddress, e.signer.PublicKey(), time.Now())
	if err != nil {
		return failure(ErrKindUnknown, fmt.Sprintf("permission lookup: %v", err))
	}
	if !ok {
		// Tell an expired grant apart from one that never existed. Both are
		// terminal without touching the network.
		if _, any, err := e.perms.FindAny(ctx, walletAddress, e.signer.PublicKey()); err == nil && any {
			return failure(ErrKindExpiredSession, "session key permission has expired")
		}
		return failure(ErrKindNoPermission, "no session key permission granted")
	}

	prepared, err := e.client.prepareCalls(ctx, e.buildPrepareRequest(walletAddress, rec, calls))
	if err != nil {
		return failure(classify(err), err.Error())
	}

	digest, err := hexutil.Decode(prepared.Digest)
	if err != nil {
		return failure(ErrKindUnknown, fmt.Sprintf("malformed digest %q: %v", prepared.Digest, err))
	}
	signature, err := e.signer.Sign(digest)
	if err != nil {
		return failure(ErrKindUnknown, fmt.Sprintf("sign digest: %v", err))
	}

	sent, err := e.client.sendPreparedCalls(ctx, sendPreparedCallsRequest{
		Context: prepared.Context,
		Signature: wireSignature{
			Type:      e.signer.KeyType(),
			PublicKey: e.signer.PublicKey(),
			Value:     signature,
		},
	})
	if err != nil {
		return failure(classify(err), err.Error())
	}

	e.logger.Info("delegated execution submitted",
		"wallet", walletAddress,
		"bundle_id", sent.ID,
		"calls", len(calls),
	)
	return ExecutionResult{Success: true, BundleID: sent.ID, TxHashes: sent.hashes()}
}

func (e *Executor) buildPrepareRequest(walletAddress string, rec permissions.Record, calls []intents.Call) prepareCallsRequest {
	wire := make([]wireCall, 0, len(calls))
	for _, c := range calls {
		wc := wireCall{To: c.To}
		if len(c.Data) > 0 {
			wc.Data = hexutil.Encode(c.Data)
		}
		if c.Value != nil && c.Value.Sign() > 0 {
			wc.Value = hexutil.EncodeBig(c.Value)
		}
		wire = append(wire, wc)
	}

	var grant permissionCapability
	grant.Permissions.ID = rec.ID
	capabilities, _ := json.Marshal(grant)

	return prepareCallsRequest{
		From:         walletAddress,
		ChainID:      hexutil.EncodeUint64(e.chainID),
		Calls:        wire,
		Capabilities: capabilities,
		Key: keyDescriptor{
			Type:      e.signer.KeyType(),
			PublicKey: e.signer.PublicKey(),
		},
	}
}

// classify maps a relay error to an error kind by substring. The relay
// returns stable phrases, so case-sensitive matching is sufficient.
func classify(err error) string {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "Unauthorized"),
		strings.Contains(msg, "Invalid precall"),
		strings.Contains(msg, "permission mismatch"):
		return ErrKindUnauthorized
	case strings.Contains(msg, "Network"), strings.Contains(msg, "fetch"):
		return ErrKindNetwork
	default:
		return ErrKindUnknown
	}
}

func failure(kind, detail string) ExecutionResult {
	return ExecutionResult{Success: false, ErrorKind: kind, ErrorDetail: detail}
}
