package relay

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/degenRobot/rise-tg-bot/permissions"
)

// Signer holds the backend's delegated session key. Sign takes the digest the
// relay produced during the prepare phase and returns the signature in the
// hex wire encoding the relay expects for the key type.
type Signer interface {
	PublicKey() string
	KeyType() string
	Sign(digest []byte) (string, error)
}

// NewSignerFromHex builds a signer from a hex private key and a key type
// string, as configured by session.private_key / session.key_type.
func NewSignerFromHex(privateKeyHex, keyType string) (Signer, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("relay: private key is not hex: %w", err)
	}
	switch keyType {
	case permissions.KeyTypeSecp256k1:
		key, err := gethcrypto.ToECDSA(raw)
		if err != nil {
			return nil, fmt.Errorf("relay: parse secp256k1 key: %w", err)
		}
		return &secp256k1Signer{key: key}, nil
	case permissions.KeyTypeP256:
		key, err := p256FromScalar(raw)
		if err != nil {
			return nil, err
		}
		return &p256Signer{key: key}, nil
	default:
		return nil, fmt.Errorf("relay: unsupported key type %q", keyType)
	}
}

// secp256k1Signer signs with the Ethereum curve. The wire format is the
// usual 65-byte r||s||v encoding.
type secp256k1Signer struct {
	key *ecdsa.PrivateKey
}

func (s *secp256k1Signer) KeyType() string { return permissions.KeyTypeSecp256k1 }

func (s *secp256k1Signer) PublicKey() string {
	return "0x" + hex.EncodeToString(gethcrypto.FromECDSAPub(&s.key.PublicKey))
}

func (s *secp256k1Signer) Sign(digest []byte) (string, error) {
	sig, err := gethcrypto.Sign(digest, s.key)
	if err != nil {
		return "", fmt.Errorf("relay: secp256k1 sign: %w", err)
	}
	return "0x" + hex.EncodeToString(sig), nil
}

// p256Signer signs with NIST P-256, the curve WebAuthn passkeys use. The
// relay expects a fixed 64-byte r||s encoding with both halves left-padded.
type p256Signer struct {
	key *ecdsa.PrivateKey
}

func (s *p256Signer) KeyType() string { return permissions.KeyTypeP256 }

func (s *p256Signer) PublicKey() string {
	pub := s.key.PublicKey
	out := make([]byte, 0, 64)
	out = append(out, leftPad32(pub.X)...)
	out = append(out, leftPad32(pub.Y)...)
	return "0x" + hex.EncodeToString(out)
}

func (s *p256Signer) Sign(digest []byte) (string, error) {
	r, sv, err := ecdsa.Sign(rand.Reader, s.key, digest)
	if err != nil {
		return "", fmt.Errorf("relay: p256 sign: %w", err)
	}
	sig := make([]byte, 0, 64)
	sig = append(sig, leftPad32(r)...)
	sig = append(sig, leftPad32(sv)...)
	return "0x" + hex.EncodeToString(sig), nil
}

func p256FromScalar(raw []byte) (*ecdsa.PrivateKey, error) {
	curve := elliptic.P256()
	d := new(big.Int).SetBytes(raw)
	if d.Sign() == 0 || d.Cmp(curve.Params().N) >= 0 {
		return nil, fmt.Errorf("relay: p256 scalar out of range")
	}
	key := &ecdsa.PrivateKey{D: d}
	key.PublicKey.Curve = curve
	key.PublicKey.X, key.PublicKey.Y = curve.ScalarBaseMult(d.Bytes())
	return key, nil
}

func leftPad32(v *big.Int) []byte {
	b := v.Bytes()
	if len(b) >= 32 {
		return b[len(b)-32:]
	}
	out := make([]byte, 32)
	copy(out[32-len(b):], b)
	return out
}
