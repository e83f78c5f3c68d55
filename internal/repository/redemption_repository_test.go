package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voucherly/voucher-engine/internal/model"
)

func TestRedemptionRepository_Insert_Success(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	tx := &mockQuerier{
		execFn: func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
			capturedSQL = sql
			capturedArgs = arguments
			return pgconn.NewCommandTag("INSERT 0 1"), nil
		},
	}

	repo := NewRedemptionRepositoryWithQuerier(&mockQuerier{})
	red := &model.Redemption{
		ID:                 uuid.New(),
		VoucherID:          uuid.New(),
		OrganizationID:     uuid.New(),
		UserEmail:          "buyer@example.com",
		OrderAmount:        100000,
		DiscountAmount:     3000,
		FinalPayableAmount: 97000,
		Status:             model.RedemptionCompleted,
		CreatedAt:          time.Now(),
	}

	err := repo.Insert(context.Background(), tx, red)

	require.NoError(t, err)
	assert.Contains(t, capturedSQL, "INSERT INTO redemptions")
	assert.Equal(t, red.ID, capturedArgs[0])
	assert.Equal(t, red.VoucherID, capturedArgs[1])
	assert.Equal(t, model.RedemptionCompleted, capturedArgs[11])
}

func TestRedemptionRepository_ExistsCompleted_FiltersOnStatus(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	mock := &mockQuerier{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedSQL = sql
			capturedArgs = args
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*bool)) = true
				return nil
			}}
		},
	}

	repo := NewRedemptionRepositoryWithQuerier(mock)
	voucherID, orgID := uuid.New(), uuid.New()

	exists, err := repo.ExistsCompleted(context.Background(), nil, voucherID, orgID, "buyer@example.com")

	require.NoError(t, err)
	assert.True(t, exists)
	assert.Contains(t, capturedSQL, "SELECT EXISTS")
	assert.Contains(t, capturedSQL, "status = $4",
		"refunded redemptions must not count against once_per_user")
	assert.Equal(t, voucherID, capturedArgs[0])
	assert.Equal(t, orgID, capturedArgs[1])
	assert.Equal(t, "buyer@example.com", capturedArgs[2])
	assert.Equal(t, model.RedemptionCompleted, capturedArgs[3])
}

func TestRedemptionRepository_CountByOrganization(t *testing.T) {
	var capturedSQL string
	var capturedArgs []any
	mock := &mockQuerier{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			capturedSQL = sql
			capturedArgs = args
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*int64)) = 42
				return nil
			}}
		},
	}

	orgID := uuid.New()
	repo := NewRedemptionRepositoryWithQuerier(mock)
	total, err := repo.CountByOrganization(context.Background(), orgID)

	require.NoError(t, err)
	assert.Equal(t, int64(42), total)
	assert.Contains(t, capturedSQL, "FROM redemptions WHERE organization_id = $1")
	require.Len(t, capturedArgs, 1)
	assert.Equal(t, orgID, capturedArgs[0])
}

func TestRedemptionRepository_ExistsCompleted_UsesSuppliedQuerier(t *testing.T) {
	poolUsed := false
	pool := &mockQuerier{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			poolUsed = true
			return &mockRow{}
		},
	}
	txUsed := false
	tx := &mockQuerier{
		queryRowFn: func(ctx context.Context, sql string, args ...any) pgx.Row {
			txUsed = true
			return &mockRow{scanFn: func(dest ...any) error {
				*(dest[0].(*bool)) = false
				return nil
			}}
		},
	}

	repo := NewRedemptionRepositoryWithQuerier(pool)
	_, err := repo.ExistsCompleted(context.Background(), tx, uuid.New(), uuid.New(), "a@b.c")

	require.NoError(t, err)
	assert.True(t, txUsed)
	assert.False(t, poolUsed, "inside a redemption the check must read the locked snapshot")
}
