// Package sigverify checks that a message signature belongs to a claimed
// wallet address. It handles plain keypair accounts by public-key recovery
// and smart-contract accounts through their on-chain isValidSignature entry
// point, with one documented fallback: retrying against the raw message hash
// for accounts that sign the bare digest instead of the prefixed encoding.
// Signatures that fail both paths are invalid. There is no further fallback.
package sigverify

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// erc1271Magic is the 4-byte value isValidSignature(bytes32,bytes) returns on
// success. It equals the method's own selector.
var erc1271Magic = [4]byte{0x16, 0x26, 0xba, 0x7e}

// ContractCaller is the slice of the RPC client needed for smart-contract
// account validation. *ethclient.Client satisfies it.
type ContractCaller interface {
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Verifier struct {
	caller ContractCaller
}

// New builds a Verifier. A nil caller disables the smart-contract path, which
// is fine for tests and for deployments that only link keypair wallets.
func New(caller ContractCaller) *Verifier {
	return &Verifier{caller: caller}
}

// Verify reports whether signature over message was produced by address.
// The primary attempt uses the prefixed personal-sign digest; if that fails
// the raw keccak256 of the message is tried once. Errors are reserved for
// malformed inputs; an on-chain call failure just means the path failed.
func (v *Verifier) Verify(ctx context.Context, address, message, signature string) (bool, error) {
	if !common.IsHexAddress(address) {
		return false, fmt.Errorf("sigverify: invalid address %q", address)
	}
	sig, err := decodeSignature(signature)
	if err != nil {
		return false, err
	}
	addr := common.HexToAddress(address)

	prefixed := accounts.TextHash([]byte(message))
	if v.verifyDigest(ctx, addr, prefixed, sig) {
		return true, nil
	}

	raw := crypto.Keccak256([]byte(message))
	return v.verifyDigest(ctx, addr, raw, sig), nil
}

func (v *Verifier) verifyDigest(ctx context.Context, addr common.Address, digest, sig []byte) bool {
	if len(sig) == crypto.SignatureLength && recoverMatches(addr, digest, sig) {
		return true
	}
	return v.contractAccountValid(ctx, addr, digest, sig)
}

// recoverMatches recovers the signer from a 65-byte signature and compares it
// to the claimed address. Wallets emit recovery ids as 27/28; go-ethereum
// wants 0/1.
func recoverMatches(addr common.Address, digest, sig []byte) bool {
	normalized := make([]byte, len(sig))
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}
	pub, err := crypto.SigToPub(digest, normalized)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == addr
}

// contractAccountValid asks the account contract itself via
// isValidSignature(bytes32,bytes). Anything other than the magic return
// value, including call errors and addresses without code, counts as invalid.
func (v *Verifier) contractAccountValid(ctx context.Context, addr common.Address, digest, sig []byte) bool {
	if v.caller == nil {
		return false
	}
	code, err := v.caller.CodeAt(ctx, addr, nil)
	if err != nil || len(code) == 0 {
		return false
	}
	data, err := packIsValidSignature(digest, sig)
	if err != nil {
		return false
	}
	out, err := v.caller.CallContract(ctx, ethereum.CallMsg{To: &addr, Data: data}, nil)
	if err != nil || len(out) < 4 {
		return false
	}
	return bytes.Equal(out[:4], erc1271Magic[:])
}

func packIsValidSignature(digest, sig []byte) ([]byte, error) {
	bytes32Type, err := abi.NewType("bytes32", "", nil)
	if err != nil {
		return nil, err
	}
	bytesType, err := abi.NewType("bytes", "", nil)
	if err != nil {
		return nil, err
	}
	args := abi.Arguments{{Type: bytes32Type}, {Type: bytesType}}
	var hash [32]byte
	copy(hash[:], digest)
	packed, err := args.Pack(hash, sig)
	if err != nil {
		return nil, err
	}
	return append(erc1271Magic[:], packed...), nil
}

func decodeSignature(signature string) ([]byte, error) {
	cleaned := strings.TrimPrefix(strings.TrimSpace(signature), "0x")
	sig, err := hex.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("sigverify: signature is not hex: %w", err)
	}
	if len(sig) == 0 {
		return nil, fmt.Errorf("sigverify: empty signature")
	}
	return sig, nil
}
