package google

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"travelbook/internal/config"
	"travelbook/internal/models"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	bookingsRange  = "Bookings!A:A"
	decisionsRange = "Decisions!A:A"
	timeLayout     = "2006-01-02 15:04:05"
)

// ErrLedgerUnavailable is returned while the circuit breaker is open.
var ErrLedgerUnavailable = errors.New("ledger spreadsheet unavailable")

// LedgerSheets appends audit rows to the ledger spreadsheet.
type LedgerSheets struct {
	service       *sheets.Service
	spreadsheetID string
	breaker       *gobreaker.CircuitBreaker
	logger        *zerolog.Logger
}

func NewLedgerSheets(ctx context.Context, credentialsFile, spreadsheetID string, cfg config.LedgerConfig, logger *zerolog.Logger) (*LedgerSheets, error) {
	// Читаем файл учетных данных сервисного аккаунта
	credentialsJSON, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read credentials file: %w", err)
	}

	jwt, err := google.JWTConfigFromJSON(credentialsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse credentials: %w", err)
	}

	srv, err := sheets.NewService(ctx, option.WithHTTPClient(jwt.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}

	return newLedgerSheets(srv, spreadsheetID, cfg, logger), nil
}

func newLedgerSheets(srv *sheets.Service, spreadsheetID string, cfg config.LedgerConfig, logger *zerolog.Logger) *LedgerSheets {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 3
	}
	cooldown := time.Duration(cfg.BreakerCooldown) * time.Second
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "ledger-sheets",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state changed")
		},
	})

	return &LedgerSheets{
		service:       srv,
		spreadsheetID: spreadsheetID,
		breaker:       breaker,
		logger:        logger,
	}
}

// TestConnection проверяет доступ к таблице
func (s *LedgerSheets) TestConnection(ctx context.Context) error {
	_, err := s.service.Spreadsheets.Values.Get(s.spreadsheetID, "Bookings!A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("connection test failed: %w", err)
	}
	return nil
}

func (s *LedgerSheets) AppendBookingRequest(ctx context.Context, req *models.BookingRequest, reference string) error {
	row := []interface{}{
		reference,
		req.SessionID,
		req.ServiceID,
		req.ServiceName,
		req.IdentityID,
		req.Contact.FullName,
		req.Contact.Phone,
		req.Contact.Email,
		req.CheckIn.Format("2006-01-02"),
		req.CheckOut.Format("2006-01-02"),
		req.Guests,
		string(req.PaymentMethod),
		int64(req.QuotedTotal),
		req.Currency,
		req.SpecialRequests,
		req.CreatedAt.UTC().Format(timeLayout),
	}
	return s.append(ctx, bookingsRange, row)
}

func (s *LedgerSheets) AppendDecision(ctx context.Context, decision *models.ApprovalDecision) error {
	row := []interface{}{
		decision.ID,
		decision.ProviderID,
		string(decision.Action),
		decision.Reason,
		decision.DecidedBy,
		decision.DecidedAt.UTC().Format(timeLayout),
	}
	return s.append(ctx, decisionsRange, row)
}

func (s *LedgerSheets) append(ctx context.Context, rng string, row []interface{}) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return s.service.Spreadsheets.Values.Append(s.spreadsheetID, rng, &sheets.ValueRange{
			Values: [][]interface{}{row},
		}).
			ValueInputOption("RAW").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrLedgerUnavailable, err)
	}
	if err != nil {
		return fmt.Errorf("append %s: %w", rng, err)
	}
	return nil
}

// ServiceAccountEmail возвращает email сервисного аккаунта, которому нужно дать доступ к таблице
func ServiceAccountEmail(credentialsFile string) (string, error) {
	file, err := os.ReadFile(credentialsFile)
	if err != nil {
		return "", err
	}

	var creds struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal(file, &creds); err != nil {
		return "", err
	}
	return creds.ClientEmail, nil
}
