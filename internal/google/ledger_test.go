package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"travelbook/internal/config"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

func setupMockServer(t *testing.T, cfg config.LedgerConfig) (*http.ServeMux, *LedgerSheets) {
	t.Helper()
	ctx := context.Background()

	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	srv, err := sheets.NewService(ctx, option.WithEndpoint(server.URL), option.WithoutAuthentication())
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	return mux, newLedgerSheets(srv, "ledger_tid", cfg, &logger)
}

func TestLedgerSheetsAppendBookingRequest(t *testing.T) {
	mux, s := setupMockServer(t, config.LedgerConfig{})

	var got sheets.ValueRange
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "RAW", r.URL.Query().Get("valueInputOption"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{})
	})

	req := &models.BookingRequest{
		SessionID:     "s1",
		ServiceID:     "villa-1",
		CheckIn:       time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC),
		CheckOut:      time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC),
		Guests:        2,
		PaymentMethod: models.PaymentBankTransfer,
		QuotedTotal:   2_000_000,
		Currency:      "VND",
	}
	require.NoError(t, s.AppendBookingRequest(context.Background(), req, "TB1"))

	require.Len(t, got.Values, 1)
	row := got.Values[0]
	assert.Equal(t, "TB1", row[0])
	assert.Equal(t, "2025-03-03", row[8])
	assert.Equal(t, "bank_transfer", row[11])
	assert.EqualValues(t, 2_000_000, row[12])
}

func TestLedgerSheetsAppendDecision(t *testing.T) {
	mux, s := setupMockServer(t, config.LedgerConfig{})

	var calls atomic.Int32
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Decisions!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = json.NewEncoder(w).Encode(sheets.AppendValuesResponse{})
	})

	err := s.AppendDecision(context.Background(), &models.ApprovalDecision{
		ID: "d1", ProviderID: "p1", Action: models.ActionApprove, DecidedBy: "admin-1", DecidedAt: time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLedgerSheetsBreakerOpens(t *testing.T) {
	mux, s := setupMockServer(t, config.LedgerConfig{BreakerFailures: 2, BreakerCooldown: 60})

	var calls atomic.Int32
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Decisions!A:A:append", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":{"code":400,"message":"bad range"}}`, http.StatusBadRequest)
	})

	ctx := context.Background()
	decision := &models.ApprovalDecision{ID: "d1", DecidedAt: time.Now()}
	for i := 0; i < 2; i++ {
		err := s.AppendDecision(ctx, decision)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrLedgerUnavailable)
	}

	err := s.AppendDecision(ctx, decision)
	assert.ErrorIs(t, err, ErrLedgerUnavailable)
	assert.Equal(t, int32(2), calls.Load())
}

func TestLedgerSheetsTestConnection(t *testing.T) {
	mux, s := setupMockServer(t, config.LedgerConfig{})
	mux.HandleFunc("/v4/spreadsheets/ledger_tid/values/Bookings!A1", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(sheets.ValueRange{Values: [][]interface{}{{"Reference"}}})
	})
	assert.NoError(t, s.TestConnection(context.Background()))
}

func TestServiceAccountEmail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"client_email":"ledger@travelbook.iam.gserviceaccount.com"}`), 0o600))

	email, err := ServiceAccountEmail(path)
	require.NoError(t, err)
	assert.Equal(t, "ledger@travelbook.iam.gserviceaccount.com", email)

	_, err = ServiceAccountEmail(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
