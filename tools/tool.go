package tools

import "context"

// Request is the context a tool executes in. WalletAddress is empty unless
// the identity has a verified link; tools that transact never see an empty
// one because the router gates them first.
type Request struct {
	TelegramID     string
	TelegramHandle string
	WalletAddress  string
	Params         map[string]any
}

type Tool interface {
	Name() string
	Description() string
	// RequiresVerification marks tools that move funds. The router refuses to
	// run them for identities without a verified wallet link.
	RequiresVerification() bool
	Execute(ctx context.Context, req Request) (string, error)
}
