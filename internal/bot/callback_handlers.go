package bot

import (
	"context"
	"fmt"
	"strings"

	"travelbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	callbackApprove = "approve:"
	callbackReject  = "reject:"
)

func (b *Bot) handleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Отвечаем на callback сразу, чтобы убрать "часики"
	if _, err := b.client.Request(tgbotapi.NewCallback(callback.ID, "")); err != nil {
		b.logger.Warn().Err(err).Msg("Failed to answer callback")
	}
	if callback.Message == nil || callback.From == nil {
		return
	}
	chatID := callback.Message.Chat.ID

	var action models.ApprovalAction
	var providerID string
	switch {
	case strings.HasPrefix(callback.Data, callbackApprove):
		action, providerID = models.ActionApprove, strings.TrimPrefix(callback.Data, callbackApprove)
	case strings.HasPrefix(callback.Data, callbackReject):
		action, providerID = models.ActionReject, strings.TrimPrefix(callback.Data, callbackReject)
	default:
		return
	}

	actor, err := b.actor(ctx, callback.From.ID)
	if err != nil {
		b.sendMessage(chatID, errorMessage(err))
		return
	}

	text, ok := b.applyDecision(ctx, actor, providerID, action, "")
	if !ok {
		b.sendMessage(chatID, text)
		return
	}

	// Карточка заменяется итогом, кнопки исчезают
	edit := tgbotapi.NewEditMessageText(chatID, callback.Message.MessageID, text)
	if _, err := b.client.Send(edit); err != nil {
		b.logger.Error().Err(err).Msg("Failed to edit review card")
	}
}

func (b *Bot) decide(
	ctx context.Context,
	chatID int64,
	actor *models.Identity,
	providerID string,
	action models.ApprovalAction,
	reason string,
) {
	text, _ := b.applyDecision(ctx, actor, providerID, action, reason)
	b.sendMessage(chatID, text)
}

// applyDecision returns the reply text and whether the decision was recorded.
func (b *Bot) applyDecision(
	ctx context.Context,
	actor *models.Identity,
	providerID string,
	action models.ApprovalAction,
	reason string,
) (string, bool) {
	provider, decision, err := b.reviews.Decide(ctx, actor, providerID, action, reason)
	if err != nil {
		b.logger.Info().Err(err).Str("provider_id", providerID).Str("actor", actor.ID).Msg("Decision refused")
		return errorMessage(err), false
	}

	verb := "approved ✅"
	if decision.Action == models.ActionReject {
		verb = "rejected ❌"
	}
	text := fmt.Sprintf("Provider %s (%s) %s by %s", orDash(provider.FullName), provider.Email, verb, actor.ID)
	if decision.Reason != "" {
		text += "\nReason: " + decision.Reason
	}
	return text, true
}
