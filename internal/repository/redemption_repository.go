package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voucherly/voucher-engine/internal/model"
	"github.com/voucherly/voucher-engine/pkg/database"
)

// RedemptionRepository provides data access for redemption records using pgx.
type RedemptionRepository struct {
	pool database.TxQuerier
}

// NewRedemptionRepository creates a new RedemptionRepository with the given pool.
func NewRedemptionRepository(pool *pgxpool.Pool) *RedemptionRepository {
	return &RedemptionRepository{pool: pool}
}

// NewRedemptionRepositoryWithQuerier creates a RedemptionRepository with a
// custom querier. This is primarily used for testing.
func NewRedemptionRepositoryWithQuerier(q database.TxQuerier) *RedemptionRepository {
	return &RedemptionRepository{pool: q}
}

func (r *RedemptionRepository) querier(q database.TxQuerier) database.TxQuerier {
	if q != nil {
		return q
	}
	return r.pool
}

// Insert persists a redemption record within the redemption transaction.
// Records are immutable after insert; only the status may later move to
// refunded, which is not handled here.
func (r *RedemptionRepository) Insert(ctx context.Context, tx database.TxQuerier, red *model.Redemption) error {
	_, err := r.querier(tx).Exec(ctx,
		`INSERT INTO redemptions (id, voucher_id, organization_id, user_name, user_email,
			order_id, order_amount, discount_amount, final_payable_amount,
			ip_address, user_agent, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		red.ID, red.VoucherID, red.OrganizationID, red.UserName, red.UserEmail,
		red.OrderID, red.OrderAmount, red.DiscountAmount, red.FinalPayableAmount,
		red.IPAddress, red.UserAgent, red.Status, red.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert redemption for voucher %s: %w", red.VoucherID, err)
	}
	return nil
}

// ExistsCompleted reports whether the given email already has a completed
// redemption of this voucher. Issued through q so the once-per-user check in
// a redemption transaction reads its own locked snapshot; q may be nil for
// dry-run validation against the pool.
func (r *RedemptionRepository) ExistsCompleted(ctx context.Context, q database.TxQuerier, voucherID, orgID uuid.UUID, email string) (bool, error) {
	query := `SELECT EXISTS (
		SELECT 1 FROM redemptions
		WHERE voucher_id = $1 AND organization_id = $2 AND user_email = $3 AND status = $4
	)`

	var exists bool
	err := r.querier(q).QueryRow(ctx, query, voucherID, orgID, email, model.RedemptionCompleted).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check redemption for %s: %w", email, err)
	}
	return exists, nil
}

// CountByOrganization returns the organization's total redemption count
// across all of its vouchers.
func (r *RedemptionRepository) CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM redemptions WHERE organization_id = $1`, orgID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("count organization redemptions: %w", err)
	}
	return total, nil
}

// ListByVoucher returns one page of a voucher's redemptions, newest first,
// plus the total count.
func (r *RedemptionRepository) ListByVoucher(ctx context.Context, voucherID uuid.UUID, q model.ListQuery) ([]model.Redemption, int64, error) {
	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM redemptions WHERE voucher_id = $1`, voucherID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count redemptions: %w", err)
	}

	query := fmt.Sprintf(`SELECT id, voucher_id, organization_id, user_name, user_email,
			order_id, order_amount, discount_amount, final_payable_amount,
			ip_address, user_agent, status, created_at
		FROM redemptions WHERE voucher_id = $1
		ORDER BY created_at DESC LIMIT %d OFFSET %d`, q.Limit, q.Offset())

	rows, err := r.pool.Query(ctx, query, voucherID)
	if err != nil {
		return nil, 0, fmt.Errorf("list redemptions: %w", err)
	}
	defer rows.Close()

	redemptions := []model.Redemption{}
	for rows.Next() {
		var red model.Redemption
		err := rows.Scan(
			&red.ID, &red.VoucherID, &red.OrganizationID, &red.UserName, &red.UserEmail,
			&red.OrderID, &red.OrderAmount, &red.DiscountAmount, &red.FinalPayableAmount,
			&red.IPAddress, &red.UserAgent, &red.Status, &red.CreatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("scan redemption row: %w", err)
		}
		redemptions = append(redemptions, red)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate redemption rows: %w", err)
	}

	return redemptions, total, nil
}
