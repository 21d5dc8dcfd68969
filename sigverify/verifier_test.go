package sigverify

import (
	"context"
	"encoding/hex"
	"math/big"
	"testing"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func signPersonal(t *testing.T, message string) (address, signature string) {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	// Wallets report the recovery id as 27/28.
	sig[64] += 27
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), "0x" + hex.EncodeToString(sig)
}

func TestVerifyEOASignature(t *testing.T) {
	t.Parallel()

	const message = "hello rise"
	address, signature := signPersonal(t, message)

	ok, err := New(nil).Verify(context.Background(), address, message, signature)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ok {
		t.Fatalf("Verify() = false, want true")
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	t.Parallel()

	const message = "hello rise"
	address, signature := signPersonal(t, message)

	raw, err := hex.DecodeString(signature[2:])
	if err != nil {
		t.Fatalf("DecodeString() error = %v", err)
	}
	raw[10] ^= 0xff
	tampered := "0x" + hex.EncodeToString(raw)

	ok, err := New(nil).Verify(context.Background(), address, message, tampered)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Fatalf("Verify() accepted a tampered signature")
	}
}

func TestVerifyRejectsWrongAddress(t *testing.T) {
	t.Parallel()

	const message = "hello rise"
	_, signature := signPersonal(t, message)

	other := common.HexToAddress("0x0000000000000000000000000000000000000bad").Hex()
	ok, err := New(nil).Verify(context.Background(), other, message, signature)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Fatalf("Verify() accepted a signature for the wrong address")
	}
}

func TestVerifyRawHashFallback(t *testing.T) {
	t.Parallel()

	const message = "hello rise"
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error = %v", err)
	}
	// Sign the bare keccak digest, skipping the personal-sign prefix.
	sig, err := crypto.Sign(crypto.Keccak256([]byte(message)), key)
	if err != nil {
		t.Fatalf("Sign() error = %v", err)
	}
	address := crypto.PubkeyToAddress(key.PublicKey).Hex()

	ok, err := New(nil).Verify(context.Background(), address, message, "0x"+hex.EncodeToString(sig))
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ok {
		t.Fatalf("Verify() = false, want true via raw-hash fallback")
	}
}

// stubCaller models a smart-contract account whose isValidSignature answers
// with a canned 4-byte value.
type stubCaller struct {
	magic [4]byte
}

func (s *stubCaller) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (s *stubCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	out := make([]byte, 32)
	copy(out, s.magic[:])
	return out, nil
}

func TestVerifyContractAccount(t *testing.T) {
	t.Parallel()

	// 96 bytes: longer than a keypair signature, so only the contract path
	// can validate it.
	longSig := "0x" + hex.EncodeToString(make([]byte, 96))
	address := common.HexToAddress("0x00000000000000000000000000000000000c0de").Hex()

	ok, err := New(&stubCaller{magic: erc1271Magic}).Verify(context.Background(), address, "hello", longSig)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if !ok {
		t.Fatalf("Verify() = false, want true for contract account")
	}

	ok, err = New(&stubCaller{magic: [4]byte{0xde, 0xad, 0xbe, 0xef}}).Verify(context.Background(), address, "hello", longSig)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Fatalf("Verify() accepted a non-magic isValidSignature answer")
	}
}

// A long signature with no reachable contract account must fail. Earlier
// systems have treated oversized signatures as automatically valid, which is
// an authentication bypass.
func TestVerifyLongSignatureWithoutContractFails(t *testing.T) {
	t.Parallel()

	longSig := "0x" + hex.EncodeToString(make([]byte, 96))
	address := common.HexToAddress("0x00000000000000000000000000000000000c0de").Hex()

	ok, err := New(nil).Verify(context.Background(), address, "hello", longSig)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if ok {
		t.Fatalf("Verify() accepted a long signature with no on-chain validation")
	}
}
