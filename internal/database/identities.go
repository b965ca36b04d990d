package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"travelbook/internal/domain"
	"travelbook/internal/models"

	"github.com/mattn/go-sqlite3"
)

const identityColumns = `id, email, phone, full_name, role, email_verified, approval_status,
        rejection_reason, submitted_at, decided_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// CreateIdentity inserts a new identity. A duplicate email is reported as
// domain.ErrEmailTaken.
func (db *DB) CreateIdentity(ctx context.Context, identity *models.Identity) error {
	now := time.Now().UTC()
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = now
	}
	identity.UpdatedAt = identity.CreatedAt

	var (
		status      sql.NullString
		reason      string
		submittedAt sql.NullTime
		decidedAt   sql.NullTime
	)
	if p := identity.ProviderProfile; p != nil {
		status = sql.NullString{String: string(p.ApprovalStatus), Valid: true}
		reason = p.RejectionReason
		submittedAt = sql.NullTime{Time: p.SubmittedAt, Valid: true}
		if p.DecidedAt != nil {
			decidedAt = sql.NullTime{Time: *p.DecidedAt, Valid: true}
		}
	}

	query := `INSERT INTO identities (` + identityColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := db.ExecContext(ctx, query,
		identity.ID,
		strings.ToLower(identity.Email),
		identity.Phone,
		identity.FullName,
		identity.Role,
		identity.EmailVerified,
		status,
		reason,
		submittedAt,
		decidedAt,
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return domain.Wrap(domain.ErrEmailTaken, err)
		}
		return fmt.Errorf("failed to create identity: %w", err)
	}
	return nil
}

// GetIdentity returns nil, nil when the id is unknown.
func (db *DB) GetIdentity(ctx context.Context, id string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = ?`
	identity, err := scanIdentity(db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity %s: %w", id, err)
	}
	return identity, nil
}

func (db *DB) GetIdentityByEmail(ctx context.Context, email string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE email = ?`
	identity, err := scanIdentity(db.QueryRowContext(ctx, query, strings.ToLower(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get identity by email: %w", err)
	}
	return identity, nil
}

// ListPendingProviders returns providers awaiting review, oldest submission first.
func (db *DB) ListPendingProviders(ctx context.Context) ([]*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities
        WHERE role = ? AND approval_status = ?
        ORDER BY submitted_at ASC`

	rows, err := db.QueryContext(ctx, query, models.RoleProvider, models.ApprovalPending)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending providers: %w", err)
	}
	defer rows.Close()

	var identities []*models.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan identity: %w", err)
		}
		identities = append(identities, identity)
	}
	return identities, rows.Err()
}

// MarkEmailVerified flips the flag once. It reports whether anything changed.
func (db *DB) MarkEmailVerified(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `UPDATE identities SET email_verified = 1, updated_at = ? WHERE id = ? AND email_verified = 0`
	res, err := db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("failed to mark email verified: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ApplyDecision stores the decided profile of target together with the
// decision row. The update only lands while the stored profile is still
// pending, so of two concurrent decisions exactly one succeeds.
func (db *DB) ApplyDecision(ctx context.Context, target *models.Identity, decision *models.ApprovalDecision) error {
	profile := target.ProviderProfile
	if profile == nil || profile.DecidedAt == nil {
		return fmt.Errorf("identity %s has no decided profile", target.ID)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
        UPDATE identities
        SET approval_status = ?, rejection_reason = ?, decided_at = ?, updated_at = ?
        WHERE id = ? AND role = ? AND approval_status = ?`,
		profile.ApprovalStatus,
		profile.RejectionReason,
		*profile.DecidedAt,
		target.UpdatedAt,
		target.ID,
		models.RoleProvider,
		models.ApprovalPending,
	)
	if err != nil {
		return fmt.Errorf("failed to update approval status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrAlreadyDecided
	}

	_, err = tx.ExecContext(ctx, `
        INSERT INTO approval_decisions (id, provider_id, action, reason, decided_by, decided_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		decision.ID,
		decision.ProviderID,
		decision.Action,
		decision.Reason,
		decision.DecidedBy,
		decision.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}

	return tx.Commit()
}

func (db *DB) ListDecisions(ctx context.Context, since time.Time) ([]*models.ApprovalDecision, error) {
	query := `SELECT id, provider_id, action, reason, decided_by, decided_at
        FROM approval_decisions WHERE decided_at >= ? ORDER BY decided_at ASC`

	rows, err := db.QueryContext(ctx, query, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to list decisions: %w", err)
	}
	defer rows.Close()

	var decisions []*models.ApprovalDecision
	for rows.Next() {
		var d models.ApprovalDecision
		if err := rows.Scan(&d.ID, &d.ProviderID, &d.Action, &d.Reason, &d.DecidedBy, &d.DecidedAt); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		decisions = append(decisions, &d)
	}
	return decisions, rows.Err()
}

func scanIdentity(row rowScanner) (*models.Identity, error) {
	var (
		identity    models.Identity
		status      sql.NullString
		reason      string
		submittedAt sql.NullTime
		decidedAt   sql.NullTime
	)
	err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.Phone,
		&identity.FullName,
		&identity.Role,
		&identity.EmailVerified,
		&status,
		&reason,
		&submittedAt,
		&decidedAt,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if status.Valid {
		profile := &models.ProviderProfile{
			ApprovalStatus:  models.ApprovalStatus(status.String),
			RejectionReason: reason,
		}
		if submittedAt.Valid {
			profile.SubmittedAt = submittedAt.Time
		}
		if decidedAt.Valid {
			at := decidedAt.Time
			profile.DecidedAt = &at
		}
		identity.ProviderProfile = profile
	}
	return &identity, nil
}
