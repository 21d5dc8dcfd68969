package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/degenRobot/rise-tg-bot/alerts"
	"github.com/degenRobot/rise-tg-bot/portfolio"
)

// PortfolioAPI is satisfied by portfolio.Client.
type PortfolioAPI interface {
	Balances(ctx context.Context, address string) ([]portfolio.Balance, error)
	Transactions(ctx context.Context, address string, limit int) ([]portfolio.Transaction, error)
	WalletSummary(ctx context.Context, address string) (portfolio.WalletSummary, error)
}

// AlertStore is satisfied by alerts.FileStore.
type AlertStore interface {
	Create(ctx context.Context, a alerts.Alert) (alerts.Alert, error)
	List(ctx context.Context, telegramID string) ([]alerts.Alert, error)
}

// Read-only tools skip the verification gate: they only display public chain
// data, so an unlinked user simply gets told there is nothing to show.

type BalancesTool struct {
	API PortfolioAPI
}

func (t *BalancesTool) Name() string { return "get_balances" }

func (t *BalancesTool) Description() string {
	return "Show the user's token balances."
}

func (t *BalancesTool) RequiresVerification() bool { return false }

func (t *BalancesTool) Execute(ctx context.Context, req Request) (string, error) {
	if req.WalletAddress == "" {
		return "I don't know your wallet yet. Link one to see balances.", nil
	}
	balances, err := t.API.Balances(ctx, req.WalletAddress)
	if err != nil {
		return "", fmt.Errorf("fetch balances: %w", err)
	}
	if len(balances) == 0 {
		return "No balances found for your wallet.", nil
	}
	var b strings.Builder
	b.WriteString("Your balances:\n")
	for _, bal := range balances {
		fmt.Fprintf(&b, "- %s: %s", bal.Symbol, bal.Amount)
		if bal.ValueUSD != "" {
			fmt.Fprintf(&b, " ($%s)", bal.ValueUSD)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type TransactionsTool struct {
	API   PortfolioAPI
	Limit int
}

func (t *TransactionsTool) Name() string { return "get_transactions" }

func (t *TransactionsTool) Description() string {
	return "Show the user's recent transactions."
}

func (t *TransactionsTool) RequiresVerification() bool { return false }

func (t *TransactionsTool) Execute(ctx context.Context, req Request) (string, error) {
	if req.WalletAddress == "" {
		return "I don't know your wallet yet. Link one to see transactions.", nil
	}
	limit := t.Limit
	if limit <= 0 {
		limit = 10
	}
	txs, err := t.API.Transactions(ctx, req.WalletAddress, limit)
	if err != nil {
		return "", fmt.Errorf("fetch transactions: %w", err)
	}
	if len(txs) == 0 {
		return "No recent transactions found.", nil
	}
	var b strings.Builder
	b.WriteString("Recent transactions:\n")
	for _, tx := range txs {
		fmt.Fprintf(&b, "- %s", shortHash(tx.Hash))
		if tx.Method != "" {
			fmt.Fprintf(&b, " (%s)", tx.Method)
		}
		if tx.Status != "" {
			fmt.Fprintf(&b, " [%s]", tx.Status)
		}
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type WalletSummaryTool struct {
	API PortfolioAPI
}

func (t *WalletSummaryTool) Name() string { return "get_wallet_summary" }

func (t *WalletSummaryTool) Description() string {
	return "Show a summary of the user's wallet, including points."
}

func (t *WalletSummaryTool) RequiresVerification() bool { return false }

func (t *WalletSummaryTool) Execute(ctx context.Context, req Request) (string, error) {
	if req.WalletAddress == "" {
		return "I don't know your wallet yet. Link one to see a summary.", nil
	}
	summary, err := t.API.WalletSummary(ctx, req.WalletAddress)
	if err != nil {
		return "", fmt.Errorf("fetch wallet summary: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Wallet %s", shortAddress(req.WalletAddress))
	if summary.TotalValueUSD != "" {
		fmt.Fprintf(&b, "\nTotal value: $%s", summary.TotalValueUSD)
	}
	if summary.Points > 0 {
		fmt.Fprintf(&b, "\nPoints: %d", summary.Points)
	}
	if summary.Rank > 0 {
		fmt.Fprintf(&b, " (rank #%d)", summary.Rank)
	}
	return b.String(), nil
}

type CreateAlertTool struct {
	Store AlertStore
}

func (t *CreateAlertTool) Name() string { return "create_alert" }

func (t *CreateAlertTool) Description() string {
	return "Create a price alert. Params: token, condition (above/below), threshold."
}

func (t *CreateAlertTool) RequiresVerification() bool { return false }

func (t *CreateAlertTool) Execute(ctx context.Context, req Request) (string, error) {
	created, err := t.Store.Create(ctx, alerts.Alert{
		TelegramID: req.TelegramID,
		Token:      strings.ToUpper(stringParam(req.Params, "token")),
		Condition:  stringParam(req.Params, "condition"),
		Threshold:  stringParam(req.Params, "threshold"),
	})
	if err != nil {
		return "", fmt.Errorf("create alert: %w", err)
	}
	return fmt.Sprintf("Alert created: %s %s %s.", created.Token, created.Condition, created.Threshold), nil
}

type ListAlertsTool struct {
	Store AlertStore
}

func (t *ListAlertsTool) Name() string { return "list_alerts" }

func (t *ListAlertsTool) Description() string {
	return "List the user's price alerts."
}

func (t *ListAlertsTool) RequiresVerification() bool { return false }

func (t *ListAlertsTool) Execute(ctx context.Context, req Request) (string, error) {
	items, err := t.Store.List(ctx, req.TelegramID)
	if err != nil {
		return "", fmt.Errorf("list alerts: %w", err)
	}
	if len(items) == 0 {
		return "You have no alerts set up.", nil
	}
	var b strings.Builder
	b.WriteString("Your alerts:\n")
	for _, a := range items {
		fmt.Fprintf(&b, "- %s %s %s\n", a.Token, a.Condition, a.Threshold)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
