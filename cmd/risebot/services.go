package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/spf13/viper"

	"github.com/degenRobot/rise-tg-bot/accounts"
	"github.com/degenRobot/rise-tg-bot/alerts"
	"github.com/degenRobot/rise-tg-bot/classifier"
	"github.com/degenRobot/rise-tg-bot/intents"
	"github.com/degenRobot/rise-tg-bot/permissions"
	"github.com/degenRobot/rise-tg-bot/portfolio"
	"github.com/degenRobot/rise-tg-bot/relay"
	"github.com/degenRobot/rise-tg-bot/sigverify"
	"github.com/degenRobot/rise-tg-bot/tools"
	"github.com/degenRobot/rise-tg-bot/verify"
)

// services is the process-wide dependency graph, constructed once at startup
// and passed by reference. No package-level singletons.
type services struct {
	logger     *slog.Logger
	links      accounts.Store
	perms      permissions.Store
	protocol   *verify.Protocol
	router     *tools.Router
	classifier classifier.Client
}

func buildServices(ctx context.Context, logger *slog.Logger) (*services, error) {
	stateDir := strings.TrimSpace(viper.GetString("state.dir"))
	if stateDir == "" {
		return nil, fmt.Errorf("missing state.dir")
	}

	links := accounts.NewFileStore(stateDir)
	if err := links.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("init link store: %w", err)
	}
	perms := permissions.NewFileStore(stateDir)
	if err := perms.Ensure(ctx); err != nil {
		return nil, fmt.Errorf("init permission store: %w", err)
	}

	// The chain client backs both EIP-1271 verification and swap quotes. It
	// is optional for commands that never touch the chain.
	var chain *ethclient.Client
	if endpoint := strings.TrimSpace(viper.GetString("chain.rpc_endpoint")); endpoint != "" {
		var err error
		chain, err = ethclient.DialContext(ctx, endpoint)
		if err != nil {
			return nil, fmt.Errorf("dial chain rpc: %w", err)
		}
	}

	var verifier *sigverify.Verifier
	if chain != nil {
		verifier = sigverify.New(chain)
	} else {
		verifier = sigverify.New(nil)
	}
	protocol := verify.NewProtocol(verifier, links, logger)

	urls := tools.Links{
		VerifyURL:   viper.GetString("verify.portal_url"),
		GrantURL:    viper.GetString("verify.grant_url"),
		ExplorerURL: strings.TrimRight(viper.GetString("chain.explorer_url"), "/"),
	}

	registry := tools.NewRegistry()

	if endpoint := strings.TrimSpace(viper.GetString("portfolio.endpoint")); endpoint != "" {
		api := portfolio.NewClient(nil, endpoint)
		registry.Register(&tools.BalancesTool{API: api})
		registry.Register(&tools.TransactionsTool{API: api, Limit: viper.GetInt("portfolio.limit")})
		registry.Register(&tools.WalletSummaryTool{API: api})
	}

	alertStore := alerts.NewFileStore(stateDir)
	registry.Register(&tools.CreateAlertTool{Store: alertStore})
	registry.Register(&tools.ListAlertsTool{Store: alertStore})

	if err := registerExecutionTools(ctx, registry, perms, chain, urls, logger); err != nil {
		return nil, err
	}

	var clf classifier.Client
	if endpoint := strings.TrimSpace(viper.GetString("classifier.endpoint")); endpoint != "" {
		clf = classifier.NewHTTPClient(nil, endpoint)
	}

	return &services{
		logger:     logger,
		links:      links,
		perms:      perms,
		protocol:   protocol,
		router:     tools.NewRouter(registry, protocol, urls, logger),
		classifier: clf,
	}, nil
}

// registerExecutionTools wires mint/transfer/swap. They need the relay and
// the session key; without both configured the bot still runs, read-only.
func registerExecutionTools(ctx context.Context, registry *tools.Registry, perms permissions.Store, chain *ethclient.Client, urls tools.Links, logger *slog.Logger) error {
	relayEndpoint := strings.TrimSpace(viper.GetString("relay.endpoint"))
	privateKey := strings.TrimSpace(viper.GetString("session.private_key"))
	if relayEndpoint == "" || privateKey == "" {
		logger.Warn("relay.endpoint or session.private_key not set; transaction tools disabled")
		return nil
	}

	signer, err := relay.NewSignerFromHex(privateKey, viper.GetString("session.key_type"))
	if err != nil {
		return fmt.Errorf("load session key: %w", err)
	}
	client, err := relay.Dial(ctx, relayEndpoint)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}
	executor := relay.NewExecutor(perms, signer, client, viper.GetUint64("chain.id"), logger)

	registryPath := strings.TrimSpace(viper.GetString("tokens.registry_path"))
	if registryPath == "" {
		return fmt.Errorf("missing tokens.registry_path")
	}
	tokenRegistry, err := intents.LoadRegistry(registryPath)
	if err != nil {
		return err
	}

	registry.Register(&tools.MintTool{Registry: tokenRegistry, Exec: executor, URLs: urls})
	registry.Register(&tools.TransferTool{Registry: tokenRegistry, Exec: executor, URLs: urls})
	if chain != nil {
		registry.Register(&tools.SwapTool{
			Registry:      tokenRegistry,
			Reader:        chain,
			RouterAddress: viper.GetString("swap.router_address"),
			Exec:          executor,
			URLs:          urls,
		})
	} else {
		logger.Warn("chain.rpc_endpoint not set; swap tool disabled")
	}
	return nil
}
