package bot

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"travelbook/internal/config"
	"travelbook/internal/domain"
	"travelbook/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	adminTelegramID    int64 = 1001
	strangerTelegramID int64 = 2002
	chatID             int64 = 555
)

type fakeClient struct {
	updatesChan chan tgbotapi.Update
	sent        []tgbotapi.Chattable
	requests    []tgbotapi.Chattable
	stopped     bool
}

func (f *fakeClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeClient) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return f.updatesChan
}

func (f *fakeClient) StopReceivingUpdates() {
	f.stopped = true
}

func (f *fakeClient) texts() []string {
	var out []string
	for _, c := range f.sent {
		switch m := c.(type) {
		case tgbotapi.MessageConfig:
			out = append(out, m.Text)
		case tgbotapi.EditMessageTextConfig:
			out = append(out, m.Text)
		}
	}
	return out
}

type mockReviewer struct {
	mock.Mock
}

func (m *mockReviewer) ListPending(ctx context.Context, actor *models.Identity) ([]*models.Identity, error) {
	args := m.Called(ctx, actor)
	pending, _ := args.Get(0).([]*models.Identity)
	return pending, args.Error(1)
}

func (m *mockReviewer) Decide(
	ctx context.Context,
	actor *models.Identity,
	providerID string,
	action models.ApprovalAction,
	reason string,
) (*models.Identity, *models.ApprovalDecision, error) {
	args := m.Called(ctx, actor, providerID, action, reason)
	provider, _ := args.Get(0).(*models.Identity)
	decision, _ := args.Get(1).(*models.ApprovalDecision)
	return provider, decision, args.Error(2)
}

type identityMap map[string]*models.Identity

func (m identityMap) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	return m[id], nil
}

var admin = &models.Identity{ID: "admin-1", Email: "ops@travelbook.vn", Role: models.RoleAdmin}

func provider() *models.Identity {
	return &models.Identity{
		ID:       "prov-1",
		Email:    "homestay@example.com",
		FullName: "Lan Homestay",
		Role:     models.RoleProvider,
		ProviderProfile: &models.ProviderProfile{
			ApprovalStatus: models.ApprovalPending,
			SubmittedAt:    time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC),
		},
	}
}

func newTestBot(t *testing.T) (*Bot, *fakeClient, *mockReviewer) {
	t.Helper()
	client := &fakeClient{updatesChan: make(chan tgbotapi.Update, 4)}
	reviews := &mockReviewer{}
	logger := zerolog.New(io.Discard)

	b := NewBot(client, reviews, identityMap{"admin-1": admin}, []config.AdminSeed{
		{ID: "admin-1", Email: "ops@travelbook.vn", TelegramID: adminTelegramID},
		{ID: "admin-2", Email: "night@travelbook.vn"},
	}, &logger)
	return b, client, reviews
}

func command(from int64, text string) tgbotapi.Update {
	cmd := strings.Fields(text)[0]
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From:     &tgbotapi.User{ID: from},
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd)}},
	}}
}

func callback(from int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb-1",
		From:    &tgbotapi.User{ID: from},
		Data:    data,
		Message: &tgbotapi.Message{MessageID: 77, Chat: &tgbotapi.Chat{ID: chatID}},
	}}
}

func TestNewBotMapsOnlyLinkedAdmins(t *testing.T) {
	b, _, _ := newTestBot(t)
	assert.Equal(t, map[int64]string{adminTelegramID: "admin-1"}, b.admins)
}

func TestStrangerIsRefused(t *testing.T) {
	b, client, reviews := newTestBot(t)

	b.processUpdate(context.Background(), command(strangerTelegramID, "/pending"))

	require.Len(t, client.sent, 1)
	assert.Contains(t, client.texts()[0], "only for TravelBook administrators")
	reviews.AssertNotCalled(t, "ListPending", mock.Anything, mock.Anything)
}

func TestPendingSendsReviewCards(t *testing.T) {
	b, client, reviews := newTestBot(t)
	reviews.On("ListPending", mock.Anything, admin).Return([]*models.Identity{provider()}, nil).Once()

	b.processUpdate(context.Background(), command(adminTelegramID, "/pending"))

	require.Len(t, client.sent, 1)
	msg := client.sent[0].(tgbotapi.MessageConfig)
	assert.Contains(t, msg.Text, "Lan Homestay")
	assert.Contains(t, msg.Text, "03.11.2025 09:30")

	keyboard := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.Len(t, keyboard.InlineKeyboard[0], 2)
	assert.Equal(t, "approve:prov-1", *keyboard.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "reject:prov-1", *keyboard.InlineKeyboard[0][1].CallbackData)
	reviews.AssertExpectations(t)
}

func TestPendingEmpty(t *testing.T) {
	b, client, reviews := newTestBot(t)
	reviews.On("ListPending", mock.Anything, admin).Return([]*models.Identity{}, nil).Once()

	b.processUpdate(context.Background(), command(adminTelegramID, "/pending"))

	assert.Equal(t, []string{"✅ No providers waiting for review."}, client.texts())
}

func TestApproveCallbackEditsCard(t *testing.T) {
	b, client, reviews := newTestBot(t)

	approved := provider()
	approved.ProviderProfile.ApprovalStatus = models.ApprovalApproved
	reviews.On("Decide", mock.Anything, admin, "prov-1", models.ActionApprove, "").
		Return(approved, &models.ApprovalDecision{ID: "d-1", Action: models.ActionApprove, DecidedBy: "admin-1"}, nil).Once()

	b.processUpdate(context.Background(), callback(adminTelegramID, "approve:prov-1"))

	require.Len(t, client.requests, 1)
	require.Len(t, client.sent, 1)
	edit, ok := client.sent[0].(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 77, edit.MessageID)
	assert.Contains(t, edit.Text, "approved")
	reviews.AssertExpectations(t)
}

func TestLostRaceIsReported(t *testing.T) {
	b, client, reviews := newTestBot(t)
	reviews.On("Decide", mock.Anything, admin, "prov-1", models.ActionReject, "").
		Return(nil, nil, domain.ErrAlreadyDecided).Once()

	b.processUpdate(context.Background(), callback(adminTelegramID, "reject:prov-1"))

	require.Len(t, client.sent, 1)
	_, isEdit := client.sent[0].(tgbotapi.EditMessageTextConfig)
	assert.False(t, isEdit)
	assert.Contains(t, client.texts()[0], "already been reviewed")
}

func TestRejectCommandWithReason(t *testing.T) {
	b, client, reviews := newTestBot(t)
	reviews.On("Decide", mock.Anything, admin, "prov-1", models.ActionReject, "missing business license").
		Return(provider(), &models.ApprovalDecision{Action: models.ActionReject, Reason: "missing business license"}, nil).Once()

	b.processUpdate(context.Background(), command(adminTelegramID, "/reject prov-1 missing business license"))

	require.Len(t, client.sent, 1)
	assert.Contains(t, client.texts()[0], "Reason: missing business license")
	reviews.AssertExpectations(t)
}

func TestCommandUsage(t *testing.T) {
	b, client, _ := newTestBot(t)

	b.processUpdate(context.Background(), command(adminTelegramID, "/approve"))

	assert.Equal(t, []string{"Usage: /approve <provider_id>"}, client.texts())
}

func TestStartStopsOnContextCancel(t *testing.T) {
	b, client, reviews := newTestBot(t)
	called := make(chan struct{})
	reviews.On("ListPending", mock.Anything, admin).
		Return([]*models.Identity{}, nil).
		Run(func(mock.Arguments) { close(called) }).
		Once()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(done)
	}()

	client.updatesChan <- command(adminTelegramID, "/pending")
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("update was not processed")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("bot did not stop")
	}
	assert.True(t, client.stopped)
}
