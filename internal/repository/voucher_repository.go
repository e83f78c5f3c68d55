package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voucherly/voucher-engine/internal/model"
	"github.com/voucherly/voucher-engine/internal/service"
	"github.com/voucherly/voucher-engine/pkg/database"
)

// voucherColumns is the shared select list; scanVoucher must stay in sync.
const voucherColumns = `id, organization_id, name, description, prefix, suffix, code,
	discount_type, discount_value, max_discount_amount, min_order_amount,
	max_redemptions, redemption_count, start_date, end_date,
	redeem_limit_per_user, eligible_products, last_redeemed_at, created_at, updated_at`

// orderableVoucherFields whitelists the columns list queries may sort by.
var orderableVoucherFields = map[string]string{
	"name":             "name",
	"code":             "code",
	"start_date":       "start_date",
	"end_date":         "end_date",
	"redemption_count": "redemption_count",
	"created_at":       "created_at",
}

// VoucherRepository provides data access for vouchers using pgx.
type VoucherRepository struct {
	pool database.TxQuerier
}

// NewVoucherRepository creates a new VoucherRepository with the given pool.
func NewVoucherRepository(pool *pgxpool.Pool) *VoucherRepository {
	return &VoucherRepository{pool: pool}
}

// NewVoucherRepositoryWithQuerier creates a VoucherRepository with a custom
// querier. This is primarily used for testing.
func NewVoucherRepositoryWithQuerier(q database.TxQuerier) *VoucherRepository {
	return &VoucherRepository{pool: q}
}

// querier returns q when the caller supplied a transaction, the pool otherwise.
func (r *VoucherRepository) querier(q database.TxQuerier) database.TxQuerier {
	if q != nil {
		return q
	}
	return r.pool
}

// Insert persists a new voucher. Returns service.ErrVoucherExists when the
// code is already taken anywhere in the system; the unique constraint on
// code is the final arbiter of code uniqueness, not the generator.
func (r *VoucherRepository) Insert(ctx context.Context, q database.TxQuerier, v *model.Voucher) error {
	_, err := r.querier(q).Exec(ctx,
		`INSERT INTO vouchers (id, organization_id, name, description, prefix, suffix, code,
			discount_type, discount_value, max_discount_amount, min_order_amount,
			max_redemptions, redemption_count, start_date, end_date,
			redeem_limit_per_user, eligible_products)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, 0, $13, $14, $15, $16)`,
		v.ID, v.OrganizationID, v.Name, v.Description, v.Prefix, v.Suffix, v.Code,
		v.DiscountType, v.DiscountValue, v.MaxDiscountAmount, v.MinOrderAmount,
		v.MaxRedemptions, v.StartDate, v.EndDate, v.RedeemLimitPerUser, v.EligibleProducts)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return service.ErrVoucherExists
		}
		return fmt.Errorf("insert voucher %s: %w", v.Code, err)
	}
	return nil
}

// GetByCode retrieves one of an organization's vouchers by code.
// Returns nil, nil if the voucher is not found (service layer handles this).
func (r *VoucherRepository) GetByCode(ctx context.Context, orgID uuid.UUID, code string) (*model.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE organization_id = $1 AND code = $2`

	v, err := scanVoucher(r.pool.QueryRow(ctx, query, orgID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // Not found - let service handle
		}
		return nil, fmt.Errorf("get voucher by code %s: %w", code, err)
	}
	return v, nil
}

// GetByCodeForUpdate retrieves a voucher with a row lock (SELECT FOR UPDATE).
// All concurrent redemptions of the same voucher serialize on this lock until
// the surrounding transaction completes.
// Returns service.ErrVoucherNotFound if the voucher doesn't exist.
func (r *VoucherRepository) GetByCodeForUpdate(ctx context.Context, tx database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error) {
	query := `SELECT ` + voucherColumns + ` FROM vouchers WHERE organization_id = $1 AND code = $2 FOR UPDATE`

	v, err := scanVoucher(tx.QueryRow(ctx, query, orgID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, service.ErrVoucherNotFound
		}
		return nil, fmt.Errorf("get voucher for update %s: %w", code, err)
	}
	return v, nil
}

// List returns one page of an organization's vouchers plus the total count.
// Search matches name, code, prefix and suffix case-insensitively.
func (r *VoucherRepository) List(ctx context.Context, orgID uuid.UUID, q model.ListQuery) ([]model.Voucher, int64, error) {
	where := ` FROM vouchers WHERE organization_id = $1`
	args := []any{orgID}
	if q.Search != "" {
		where += ` AND (name ILIKE $2 OR code ILIKE $2 OR prefix ILIKE $2 OR suffix ILIKE $2)`
		args = append(args, "%"+q.Search+"%")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*)`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count vouchers: %w", err)
	}

	orderCol, ok := orderableVoucherFields[q.OrderByField]
	if !ok {
		orderCol = "name"
	}
	direction := "ASC"
	if q.OrderBy == "DESC" {
		direction = "DESC"
	}

	query := fmt.Sprintf(`SELECT %s%s ORDER BY %s %s LIMIT %d OFFSET %d`,
		voucherColumns, where, orderCol, direction, q.Limit, q.Offset())

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()

	vouchers := []model.Voucher{}
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan voucher row: %w", err)
		}
		vouchers = append(vouchers, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate voucher rows: %w", err)
	}

	return vouchers, total, nil
}

// Update persists the editable attributes of a voucher. The redemption
// counter and last_redeemed_at are deliberately absent: only
// CommitRedemption may advance them.
func (r *VoucherRepository) Update(ctx context.Context, v *model.Voucher) error {
	query := `UPDATE vouchers
		SET name = $2, description = $3, discount_type = $4, discount_value = $5,
			max_discount_amount = $6, min_order_amount = $7, max_redemptions = $8,
			start_date = $9, end_date = $10, redeem_limit_per_user = $11,
			eligible_products = $12, updated_at = now()
		WHERE id = $1`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.Name, v.Description, v.DiscountType, v.DiscountValue,
		v.MaxDiscountAmount, v.MinOrderAmount, v.MaxRedemptions,
		v.StartDate, v.EndDate, v.RedeemLimitPerUser, v.EligibleProducts)
	if err != nil {
		return fmt.Errorf("update voucher %s: %w", v.Code, err)
	}
	return nil
}

// Delete removes a voucher; redemption rows cascade via the foreign key.
// Returns false when no row matched.
func (r *VoucherRepository) Delete(ctx context.Context, orgID uuid.UUID, code string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM vouchers WHERE organization_id = $1 AND code = $2`, orgID, code)
	if err != nil {
		return false, fmt.Errorf("delete voucher %s: %w", code, err)
	}
	return tag.RowsAffected() == 1, nil
}

// CommitRedemption advances the redemption counter and stamps
// last_redeemed_at, guarded so the counter can never pass max_redemptions.
// Returns false when the guard rejected the update, i.e. a concurrent
// redemption consumed the last slot first. Must be called within the
// transaction holding the row lock.
func (r *VoucherRepository) CommitRedemption(ctx context.Context, tx database.TxQuerier, voucherID uuid.UUID, at time.Time) (bool, error) {
	query := `UPDATE vouchers
		SET redemption_count = redemption_count + 1, last_redeemed_at = $2, updated_at = now()
		WHERE id = $1 AND (max_redemptions IS NULL OR redemption_count < max_redemptions)`

	tag, err := tx.Exec(ctx, query, voucherID, at)
	if err != nil {
		return false, fmt.Errorf("advance redemption counter %s: %w", voucherID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Stats classifies the organization's vouchers against today's date and
// counts those ending within the horizon. Both bounds are UTC midnights,
// matching how the date columns are stored.
func (r *VoucherRepository) Stats(ctx context.Context, orgID uuid.UUID, today, horizon time.Time) (*model.VoucherStats, error) {
	query := `SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE start_date <= $2 AND end_date >= $2),
			COUNT(*) FILTER (WHERE start_date > $2),
			COUNT(*) FILTER (WHERE end_date < $2),
			COUNT(*) FILTER (WHERE end_date >= $2 AND end_date <= $3)
		FROM vouchers WHERE organization_id = $1`

	var stats model.VoucherStats
	err := r.pool.QueryRow(ctx, query, orgID, today, horizon).Scan(
		&stats.TotalVouchers, &stats.ActiveVouchers, &stats.UpcomingVouchers,
		&stats.ExpiredVouchers, &stats.NearingExpiry)
	if err != nil {
		return nil, fmt.Errorf("voucher stats: %w", err)
	}
	return &stats, nil
}

// scanVoucher reads one row in voucherColumns order.
func scanVoucher(row pgx.Row) (*model.Voucher, error) {
	var v model.Voucher
	err := row.Scan(
		&v.ID, &v.OrganizationID, &v.Name, &v.Description, &v.Prefix, &v.Suffix, &v.Code,
		&v.DiscountType, &v.DiscountValue, &v.MaxDiscountAmount, &v.MinOrderAmount,
		&v.MaxRedemptions, &v.RedemptionCount, &v.StartDate, &v.EndDate,
		&v.RedeemLimitPerUser, &v.EligibleProducts, &v.LastRedeemedAt, &v.CreatedAt, &v.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
