// Package bot lets administrators review pending providers from Telegram.
package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	"travelbook/internal/config"
	"travelbook/internal/domain"
	"travelbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const updateTimeout = 30 * time.Second

// Client is the part of the Bot API the review bot needs. *tgbotapi.BotAPI satisfies it.
type Client interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Reviewer runs the approval workflow on behalf of an admin.
type Reviewer interface {
	ListPending(ctx context.Context, actor *models.Identity) ([]*models.Identity, error)
	Decide(
		ctx context.Context,
		actor *models.Identity,
		providerID string,
		action models.ApprovalAction,
		reason string,
	) (*models.Identity, *models.ApprovalDecision, error)
}

type Bot struct {
	client     Client
	reviews    Reviewer
	identities domain.IdentityProvider
	admins     map[int64]string // telegram user id -> admin identity id
	logger     *zerolog.Logger
}

func NewBot(
	client Client,
	reviews Reviewer,
	identities domain.IdentityProvider,
	admins []config.AdminSeed,
	logger *zerolog.Logger,
) *Bot {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	m := make(map[int64]string, len(admins))
	for _, a := range admins {
		if a.TelegramID != 0 {
			m[a.TelegramID] = a.ID
		}
	}

	return &Bot{
		client:     client,
		reviews:    reviews,
		identities: identities,
		admins:     m,
		logger:     logger,
	}
}

func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.client.GetUpdatesChan(u)
	b.logger.Info().Int("admins", len(b.admins)).Msg("Review bot started")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info().Msg("Review bot stopping...")
			b.client.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.processUpdate(ctx, update)
		}
	}
}

func (b *Bot) processUpdate(ctx context.Context, update tgbotapi.Update) {
	// Создаем контекст для обработки каждого обновления
	updateCtx, cancel := context.WithTimeout(ctx, updateTimeout)
	defer cancel()

	l := b.logger.With().Str("request_id", uuid.NewString()).Logger()
	updateCtx = l.WithContext(updateCtx)

	b.withRecovery(func() {
		switch {
		case update.CallbackQuery != nil:
			b.handleCallbackQuery(updateCtx, update.CallbackQuery)
		case update.Message != nil && update.Message.IsCommand():
			b.handleCommand(updateCtx, update.Message)
		}
	})
}

// actor re-reads the admin behind a Telegram user so a demoted admin loses access at once.
func (b *Bot) actor(ctx context.Context, telegramID int64) (*models.Identity, error) {
	id, ok := b.admins[telegramID]
	if !ok {
		return nil, domain.ErrAdminRequired
	}
	identity, err := b.identities.GetIdentity(ctx, id)
	if err != nil {
		return nil, domain.Wrap(domain.ErrIdentityFetch, err)
	}
	if identity == nil {
		return nil, domain.ErrAdminRequired
	}
	return identity, nil
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	chatID := msg.Chat.ID

	actor, err := b.actor(ctx, msg.From.ID)
	if err != nil {
		b.sendMessage(chatID, errorMessage(err))
		return
	}

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start", "help":
		b.sendMessage(chatID, helpText)
	case "pending":
		b.sendPending(ctx, chatID, actor)
	case "approve":
		if len(args) < 1 {
			b.sendMessage(chatID, "Usage: /approve <provider_id>")
			return
		}
		b.decide(ctx, chatID, actor, args[0], models.ActionApprove, "")
	case "reject":
		if len(args) < 1 {
			b.sendMessage(chatID, "Usage: /reject <provider_id> [reason]")
			return
		}
		b.decide(ctx, chatID, actor, args[0], models.ActionReject, strings.Join(args[1:], " "))
	default:
		b.sendMessage(chatID, "Unknown command. "+helpText)
	}
}

const helpText = "Commands:\n/pending - providers waiting for review\n/approve <id>\n/reject <id> [reason]"

func (b *Bot) sendPending(ctx context.Context, chatID int64, actor *models.Identity) {
	pending, err := b.reviews.ListPending(ctx, actor)
	if err != nil {
		b.sendMessage(chatID, errorMessage(err))
		return
	}
	if len(pending) == 0 {
		b.sendMessage(chatID, "✅ No providers waiting for review.")
		return
	}

	for _, p := range pending {
		msg := tgbotapi.NewMessage(chatID, providerCard(p))
		msg.ReplyMarkup = reviewKeyboard(p.ID)
		if _, err := b.client.Send(msg); err != nil {
			b.logger.Error().Err(err).Str("provider_id", p.ID).Msg("Failed to send pending provider")
		}
	}
}

func providerCard(p *models.Identity) string {
	submitted := "-"
	if p.ProviderProfile != nil {
		submitted = p.ProviderProfile.SubmittedAt.Format("02.01.2006 15:04")
	}
	return fmt.Sprintf("🆕 Pending provider\n\nName: %s\nEmail: %s\nPhone: %s\nSubmitted: %s\nID: %s",
		orDash(p.FullName), p.Email, orDash(p.Phone), submitted, p.ID)
}

func reviewKeyboard(providerID string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", callbackApprove+providerID),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", callbackReject+providerID),
		),
	)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	if _, err := b.client.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
