package intents

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Token is one entry of the token registry. Native marks the chain's own
// currency, which has no contract address.
type Token struct {
	Symbol   string `yaml:"symbol" json:"symbol"`
	Address  string `yaml:"address,omitempty" json:"address,omitempty"`
	Decimals int    `yaml:"decimals" json:"decimals"`
	Native   bool   `yaml:"native,omitempty" json:"native,omitempty"`
}

// Registry resolves token symbols from user input to addresses and decimal
// counts. Symbols compare case-insensitively.
type Registry struct {
	bySymbol map[string]Token
}

func NewRegistry(tokens []Token) (*Registry, error) {
	r := &Registry{bySymbol: make(map[string]Token, len(tokens))}
	for _, tok := range tokens {
		sym := strings.ToUpper(strings.TrimSpace(tok.Symbol))
		if sym == "" {
			return nil, fmt.Errorf("intents: token with empty symbol")
		}
		if !tok.Native && tok.Address == "" {
			return nil, fmt.Errorf("intents: token %s has no address", sym)
		}
		if tok.Decimals < 0 || tok.Decimals > 36 {
			return nil, fmt.Errorf("intents: token %s has invalid decimals %d", sym, tok.Decimals)
		}
		if _, dup := r.bySymbol[sym]; dup {
			return nil, fmt.Errorf("intents: duplicate token symbol %s", sym)
		}
		r.bySymbol[sym] = tok
	}
	return r, nil
}

// LoadRegistry reads a YAML registry file of the form:
//
//	tokens:
//	  - symbol: ETH
//	    decimals: 18
//	    native: true
//	  - symbol: RISE
//	    address: "0x..."
//	    decimals: 18
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("intents: read registry: %w", err)
	}
	var doc struct {
		Tokens []Token `yaml:"tokens"`
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("intents: parse registry: %w", err)
	}
	if len(doc.Tokens) == 0 {
		return nil, fmt.Errorf("intents: registry %s lists no tokens", path)
	}
	return NewRegistry(doc.Tokens)
}

func (r *Registry) Lookup(symbol string) (Token, bool) {
	tok, ok := r.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	return tok, ok
}

func (r *Registry) mustLookup(symbol string) (Token, error) {
	tok, ok := r.Lookup(symbol)
	if !ok {
		return Token{}, fmt.Errorf("intents: unknown token %q", symbol)
	}
	return tok, nil
}
