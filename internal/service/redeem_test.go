package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voucherly/voucher-engine/internal/model"
	"github.com/voucherly/voucher-engine/pkg/database"
)

func validRedeemRequest() *model.RedeemVoucherRequest {
	return &model.RedeemVoucherRequest{
		OrderAmount: int64Ptr(100000),
		UserEmail:   "buyer@example.com",
		UserName:    "Buyer",
		OrderID:     "order-42",
	}
}

func TestRedeem_Success(t *testing.T) {
	v := activeVoucher()

	committed := false
	tx := &mockTx{commitFn: func(ctx context.Context) error {
		committed = true
		return nil
	}}
	pool := &mockTxBeginner{beginFn: func(ctx context.Context) (pgx.Tx, error) {
		return tx, nil
	}}

	var counterFor uuid.UUID
	vr := &mockVoucherRepository{
		getByCodeForUpdateFn: func(ctx context.Context, q database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error) {
			assert.Equal(t, "SUMMER26", code)
			return v, nil
		},
		commitRedemptionFn: func(ctx context.Context, q database.TxQuerier, voucherID uuid.UUID, at time.Time) (bool, error) {
			counterFor = voucherID
			return true, nil
		},
	}
	var captured *model.Redemption
	rr := &mockRedemptionRepository{
		insertFn: func(ctx context.Context, q database.TxQuerier, red *model.Redemption) error {
			captured = red
			return nil
		},
	}
	svc := NewVoucherServiceWithTxBeginner(pool, vr, rr, nil, testClock())

	resp, err := svc.Redeem(context.Background(), testPrincipal(), "SUMMER26", validRedeemRequest(), "10.0.0.1", "curl/8.0")

	require.NoError(t, err)
	assert.True(t, committed)
	assert.Equal(t, v.ID, counterFor)

	assert.Equal(t, int64(3000), resp.Discount)
	assert.Equal(t, int64(97000), resp.FinalAmount)

	require.NotNil(t, captured)
	assert.Equal(t, v.ID, captured.VoucherID)
	assert.Equal(t, model.RedemptionCompleted, captured.Status)
	assert.Equal(t, "buyer@example.com", captured.UserEmail)
	assert.Equal(t, "order-42", captured.OrderID)
	assert.Equal(t, "10.0.0.1", captured.IPAddress)
	assert.Equal(t, "curl/8.0", captured.UserAgent)
	assert.Equal(t, int64(97000), captured.FinalPayableAmount)
}

func TestRedeem_UnknownCode(t *testing.T) {
	vr := &mockVoucherRepository{
		getByCodeForUpdateFn: func(ctx context.Context, q database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error) {
			return nil, ErrVoucherNotFound
		},
	}
	svc := NewVoucherServiceWithTxBeginner(&mockTxBeginner{}, vr, &mockRedemptionRepository{}, nil, testClock())

	_, err := svc.Redeem(context.Background(), testPrincipal(), "NOPE", validRedeemRequest(), "", "")

	requireRejection(t, err, RejectInvalidCode)
}

func TestRedeem_RejectionRollsBack(t *testing.T) {
	v := activeVoucher()
	v.StartDate = time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	v.EndDate = time.Date(2026, 5, 31, 0, 0, 0, 0, time.UTC)

	rolledBack := false
	tx := &mockTx{
		commitFn: func(ctx context.Context) error {
			t.Fatal("a rejected redemption must not commit")
			return nil
		},
		rollbackFn: func(ctx context.Context) error {
			rolledBack = true
			return nil
		},
	}
	pool := &mockTxBeginner{beginFn: func(ctx context.Context) (pgx.Tx, error) {
		return tx, nil
	}}
	vr := &mockVoucherRepository{
		getByCodeForUpdateFn: func(ctx context.Context, q database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error) {
			return v, nil
		},
	}
	rr := &mockRedemptionRepository{
		insertFn: func(ctx context.Context, q database.TxQuerier, red *model.Redemption) error {
			t.Fatal("no redemption record may be written for a rejected request")
			return nil
		},
	}
	svc := NewVoucherServiceWithTxBeginner(pool, vr, rr, nil, testClock())

	_, err := svc.Redeem(context.Background(), testPrincipal(), "SUMMER26", validRedeemRequest(), "", "")

	requireRejection(t, err, RejectExpired)
	assert.True(t, rolledBack)
}

func TestRedeem_CounterRaceRetriesOnce(t *testing.T) {
	v := activeVoucher()
	v.MaxRedemptions = intPtr(10)

	attempts := 0
	vr := &mockVoucherRepository{
		getByCodeForUpdateFn: func(ctx context.Context, q database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error) {
			return v, nil
		},
		commitRedemptionFn: func(ctx context.Context, q database.TxQuerier, voucherID uuid.UUID, at time.Time) (bool, error) {
			attempts++
			// First attempt loses the guarded update, second wins.
			return attempts > 1, nil
		},
	}
	svc := NewVoucherServiceWithTxBeginner(&mockTxBeginner{}, vr, &mockRedemptionRepository{}, nil, testClock())

	resp, err := svc.Redeem(context.Background(), testPrincipal(), "SUMMER26", validRedeemRequest(), "", "")

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int64(3000), resp.Discount)
}

func TestRedeem_CounterRaceExhaustedSurfacesLimit(t *testing.T) {
	v := activeVoucher()
	v.MaxRedemptions = intPtr(10)

	attempts := 0
	vr := &mockVoucherRepository{
		getByCodeForUpdateFn: func(ctx context.Context, q database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error) {
			return v, nil
		},
		commitRedemptionFn: func(ctx context.Context, q database.TxQuerier, voucherID uuid.UUID, at time.Time) (bool, error) {
			attempts++
			return false, nil
		},
	}
	svc := NewVoucherServiceWithTxBeginner(&mockTxBeginner{}, vr, &mockRedemptionRepository{}, nil, testClock())

	_, err := svc.Redeem(context.Background(), testPrincipal(), "SUMMER26", validRedeemRequest(), "", "")

	requireRejection(t, err, RejectLimitReached)
	assert.Equal(t, 2, attempts, "exactly one retry before giving up")
}

func TestRedeem_OncePerUserRejected(t *testing.T) {
	v := activeVoucher()
	v.RedeemLimitPerUser = model.RedeemOncePerUser

	vr := &mockVoucherRepository{
		getByCodeForUpdateFn: func(ctx context.Context, q database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error) {
			return v, nil
		},
	}
	rr := &mockRedemptionRepository{
		existsCompletedFn: func(ctx context.Context, q database.TxQuerier, voucherID, orgID uuid.UUID, email string) (bool, error) {
			assert.NotNil(t, q, "the per-user check inside a redemption must use the transaction")
			return true, nil
		},
		insertFn: func(ctx context.Context, q database.TxQuerier, red *model.Redemption) error {
			t.Fatal("no redemption record may be written for a repeat user")
			return nil
		},
	}
	svc := NewVoucherServiceWithTxBeginner(&mockTxBeginner{}, vr, rr, nil, testClock())

	_, err := svc.Redeem(context.Background(), testPrincipal(), "SUMMER26", validRedeemRequest(), "", "")

	requireRejection(t, err, RejectAlreadyRedeemed)
}

func TestRedeem_NotificationDispatched(t *testing.T) {
	v := activeVoucher()

	sent := make(chan string, 1)
	dispatcher := &mockDispatcher{
		sendFn: func(ctx context.Context, orgID, templateRef, recipient string, data map[string]string) (string, error) {
			assert.Equal(t, "voucher-redeemed", templateRef)
			assert.Equal(t, "$ 3000", data["discount_amount"])
			sent <- recipient
			return "ref-1", nil
		},
	}
	vr := &mockVoucherRepository{
		getByCodeForUpdateFn: func(ctx context.Context, q database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error) {
			return v, nil
		},
	}
	svc := NewVoucherServiceWithTxBeginner(&mockTxBeginner{}, vr, &mockRedemptionRepository{}, dispatcher, testClock())

	_, err := svc.Redeem(context.Background(), testPrincipal(), "SUMMER26", validRedeemRequest(), "", "")
	require.NoError(t, err)

	select {
	case recipient := <-sent:
		assert.Equal(t, "buyer@example.com", recipient)
	case <-time.After(2 * time.Second):
		t.Fatal("notification was never dispatched")
	}
}

func TestRedeem_NotificationFailureDoesNotUnwind(t *testing.T) {
	v := activeVoucher()

	attempted := make(chan struct{}, 1)
	dispatcher := &mockDispatcher{
		sendFn: func(ctx context.Context, orgID, templateRef, recipient string, data map[string]string) (string, error) {
			attempted <- struct{}{}
			return "", errors.New("smtp: relay unavailable")
		},
	}
	vr := &mockVoucherRepository{
		getByCodeForUpdateFn: func(ctx context.Context, q database.TxQuerier, orgID uuid.UUID, code string) (*model.Voucher, error) {
			return v, nil
		},
	}
	svc := NewVoucherServiceWithTxBeginner(&mockTxBeginner{}, vr, &mockRedemptionRepository{}, dispatcher, testClock())

	resp, err := svc.Redeem(context.Background(), testPrincipal(), "SUMMER26", validRedeemRequest(), "", "")

	require.NoError(t, err, "a failed notification never fails the redemption")
	assert.Equal(t, int64(97000), resp.FinalAmount)

	select {
	case <-attempted:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatch was never attempted")
	}
}

func TestRedeem_NilOrderAmount(t *testing.T) {
	svc := newTestService(&mockVoucherRepository{}, &mockRedemptionRepository{})

	_, err := svc.Redeem(context.Background(), testPrincipal(), "SUMMER26", &model.RedeemVoucherRequest{}, "", "")

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}
