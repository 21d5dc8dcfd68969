package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/degenRobot/rise-tg-bot/internal/logutil"
	"github.com/degenRobot/rise-tg-bot/tools"
	"github.com/degenRobot/rise-tg-bot/verify"
)

func newTelegramCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "telegram",
		Short: "Run the Telegram bot (long polling)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			token := strings.TrimSpace(viper.GetString("telegram.bot_token"))
			if token == "" {
				return fmt.Errorf("missing telegram.bot_token (set via RISEBOT_TELEGRAM_BOT_TOKEN)")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := buildServices(ctx, logger)
			if err != nil {
				return err
			}
			if svc.classifier == nil {
				return fmt.Errorf("missing classifier.endpoint")
			}

			api := newTelegramAPI(nil, viper.GetString("telegram.base_url"), token)
			me, err := api.getMe(ctx)
			if err != nil {
				return fmt.Errorf("telegram getMe: %w", err)
			}
			logger.Info("telegram bot started", "username", me.Username)

			bot := &telegramBot{
				api:     api,
				svc:     svc,
				logger:  logger,
				workers: make(map[int64]chan telegramUpdate),
			}
			bot.pollLoop(ctx, viper.GetDuration("telegram.poll_timeout"))
			bot.wg.Wait()
			return nil
		},
	}
}

type telegramBot struct {
	api    *telegramAPI
	svc    *services
	logger *slog.Logger

	mu      sync.Mutex
	wg      sync.WaitGroup
	workers map[int64]chan telegramUpdate
}

func (b *telegramBot) pollLoop(ctx context.Context, timeout time.Duration) {
	var offset int64
	for {
		if ctx.Err() != nil {
			b.closeWorkers()
			return
		}
		updates, next, err := b.api.getUpdates(ctx, offset, timeout)
		if err != nil {
			if ctx.Err() != nil {
				b.closeWorkers()
				return
			}
			if !isTelegramPollTimeoutError(err) {
				b.logger.Warn("telegram poll failed", "error", err)
			}
			continue
		}
		offset = next
		for _, u := range updates {
			b.dispatch(ctx, u)
		}
	}
}

// dispatch hands the update to the chat's worker goroutine. One worker per
// chat keeps replies within a conversation in order while chats proceed
// independently.
func (b *telegramBot) dispatch(ctx context.Context, u telegramUpdate) {
	if u.Message == nil || u.Message.Chat == nil || u.Message.From == nil || u.Message.From.IsBot {
		return
	}
	chatID := u.Message.Chat.ID

	b.mu.Lock()
	ch, ok := b.workers[chatID]
	if !ok {
		ch = make(chan telegramUpdate, 16)
		b.workers[chatID] = ch
		b.wg.Add(1)
		go b.chatWorker(ctx, chatID, ch)
	}
	b.mu.Unlock()

	select {
	case ch <- u:
	default:
		b.logger.Warn("chat queue full, dropping update", "chat_id", chatID)
	}
}

func (b *telegramBot) closeWorkers() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.workers {
		close(ch)
	}
	b.workers = make(map[int64]chan telegramUpdate)
}

func (b *telegramBot) chatWorker(ctx context.Context, chatID int64, ch <-chan telegramUpdate) {
	defer b.wg.Done()
	for u := range ch {
		reply := b.handleMessage(ctx, u.Message)
		if reply == "" {
			continue
		}
		if err := b.api.sendMessage(ctx, chatID, reply); err != nil {
			b.logger.Warn("telegram send failed", "chat_id", chatID, "error", err)
		}
	}
}

func (b *telegramBot) handleMessage(ctx context.Context, msg *telegramMessage) string {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return ""
	}
	id := tools.Identity{
		TelegramID:     strconv.FormatInt(msg.From.ID, 10),
		TelegramHandle: msg.From.Username,
	}

	if strings.HasPrefix(text, "/") {
		return b.handleCommand(ctx, id, text)
	}

	wallet := ""
	if link, ok, err := b.svc.protocol.GetActiveLink(ctx, id.TelegramID); err == nil && ok {
		wallet = link.WalletAddress
	}
	tc, err := b.svc.classifier.Classify(ctx, text, wallet)
	if err != nil {
		b.logger.Warn("classification failed", "telegram_id", id.TelegramID, "error", err)
		return tools.InvalidFormatReply
	}
	return b.svc.router.Route(ctx, id, tc)
}

func (b *telegramBot) handleCommand(ctx context.Context, id tools.Identity, text string) string {
	command := strings.ToLower(strings.Fields(text)[0])
	if i := strings.IndexByte(command, '@'); i > 0 {
		command = command[:i]
	}

	switch command {
	case "/start":
		return "Hi! I'm the RISE bot. Link your wallet with /verify, then ask me to mint, transfer, swap, or show your balances."
	case "/id":
		return fmt.Sprintf("Your Telegram ID is %s.", id.TelegramID)
	case "/verify":
		challenge, err := verify.CreateChallenge(id.TelegramID, id.TelegramHandle)
		if err != nil {
			b.logger.Error("create challenge failed", "error", err)
			return "Could not create a verification challenge, please try again."
		}
		portal := viper.GetString("verify.portal_url")
		return fmt.Sprintf("Sign this message with your wallet at %s:\n\n%s", portal, challenge.Message)
	case "/revoke":
		changed, err := b.svc.protocol.Revoke(ctx, id.TelegramID)
		if err != nil {
			b.logger.Error("revoke failed", "telegram_id", id.TelegramID, "error", err)
			return "Could not revoke your wallet link, please try again."
		}
		if !changed {
			return "You have no linked wallet to revoke."
		}
		return "Your wallet link has been revoked."
	default:
		return "Unknown command. Try /start, /id, /verify or /revoke."
	}
}
