package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"mlekara-shop/internal/domain"
)

// PrivacyRepository performs the data-erasure side of account deletion.
// Everything belonging to the user goes in one transaction so a partial
// failure never leaves an account half deleted.
type PrivacyRepository struct {
	tm *TxManager
}

// NewPrivacyRepository creates a new PostgreSQL privacy repository
func NewPrivacyRepository(db *sql.DB) *PrivacyRepository {
	return &PrivacyRepository{tm: NewTxManager(db)}
}

// EraseUser deletes the user's sessions, orders and account row.
// Returns domain.ErrUserNotFound when no account row matched.
func (r *PrivacyRepository) EraseUser(ctx context.Context, userID string) error {
	return r.tm.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to delete sessions: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE user_id = $1`, userID); err != nil {
			return fmt.Errorf("failed to delete orders: %w", err)
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, userID)
		if err != nil {
			return fmt.Errorf("failed to delete user: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrUserNotFound
		}

		return nil
	})
}
