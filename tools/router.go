// Package tools routes classified tool calls to their implementations. The
// router owns the verification gate and the user-facing reply for every
// terminal state, so no inbound message ever goes unanswered.
package tools

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/degenRobot/rise-tg-bot/accounts"
	"github.com/degenRobot/rise-tg-bot/classifier"
)

// Links are the frontend entry points woven into replies.
type Links struct {
	// VerifyURL is where a user links their wallet.
	VerifyURL string
	// GrantURL is where a user grants or renews a session key.
	GrantURL string
	// ExplorerURL is the block explorer base, without trailing slash.
	ExplorerURL string
}

// LinkResolver is satisfied by verify.Protocol.
type LinkResolver interface {
	GetActiveLink(ctx context.Context, telegramID string) (accounts.Link, bool, error)
}

// Identity is the inbound chat identity a tool call runs for.
type Identity struct {
	TelegramID     string
	TelegramHandle string
}

type Router struct {
	registry *Registry
	links    LinkResolver
	urls     Links
	logger   *slog.Logger
}

func NewRouter(registry *Registry, links LinkResolver, urls Links, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{registry: registry, links: links, urls: urls, logger: logger}
}

// InvalidFormatReply is the fixed answer for classifier output that failed
// schema validation. The classifier is not retried.
const InvalidFormatReply = "Sorry, I couldn't understand that request (invalid response format). Please try rephrasing."

// Route executes one tool call and always returns a reply. Panics in tool
// implementations are contained here so a single bad request cannot take the
// bot down.
func (r *Router) Route(ctx context.Context, id Identity, tc classifier.ToolCall) (reply string) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("tool execution panicked", "tool", tc.Tool, "panic", fmt.Sprint(rec))
			reply = "Something went wrong while handling your request, please try again."
		}
	}()

	tool, ok := r.registry.Get(tc.Tool)
	if !ok {
		return InvalidFormatReply
	}

	req := Request{
		TelegramID:     id.TelegramID,
		TelegramHandle: id.TelegramHandle,
		Params:         tc.Params,
	}

	link, verified, err := r.links.GetActiveLink(ctx, id.TelegramID)
	if err != nil {
		r.logger.Error("link lookup failed", "telegram_id", id.TelegramID, "error", err)
		return "Something went wrong while handling your request, please try again."
	}
	if verified {
		req.WalletAddress = link.WalletAddress
	}

	if tool.RequiresVerification() && !verified {
		return fmt.Sprintf("Your wallet needs to be verified before I can do that. Link it here: %s", r.urls.VerifyURL)
	}

	out, err := tool.Execute(ctx, req)
	if err != nil {
		r.logger.Error("tool execution failed", "tool", tc.Tool, "error", err)
		return "Something went wrong while handling your request, please try again."
	}
	return out
}
