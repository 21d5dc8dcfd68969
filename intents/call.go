package intents

import "math/big"

// Call describes one EVM contract invocation. Data and Value may be nil for
// plain value transfers and non-payable calls respectively.
type Call struct {
	To    string
	Data  []byte
	Value *big.Int
}
