package withdrawal_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/gateway"
	"github.com/josh-kwaku/pix-ledger/internal/repository"
	"github.com/josh-kwaku/pix-ledger/internal/service/ledger"
	"github.com/josh-kwaku/pix-ledger/internal/service/withdrawal"
	"github.com/josh-kwaku/pix-ledger/internal/testutil"
)

type fakeGateway struct {
	mu     sync.Mutex
	calls  int
	payout *gateway.Payout
	err    error
}

func (f *fakeGateway) PayoutPix(_ context.Context, _ int64, _ gateway.Receiver, _ string, _ domain.PixType) (*gateway.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	p := *f.payout
	p.ExternalID = uuid.NewString()
	return &p, nil
}

func setupProcessor(t *testing.T, db *sql.DB, gw *fakeGateway) *withdrawal.Processor {
	t.Helper()
	store := ledger.NewStore(repository.NewLedgerRepository(db), db, 3, nil)
	return withdrawal.NewProcessor(
		store,
		repository.NewWithdrawRepository(db),
		repository.NewUserRepository(db),
		gw,
		repository.NewOutboxRepository(db),
		nil,
		0,
	)
}

func request(userID uuid.UUID, amount int64) withdrawal.Request {
	return withdrawal.Request{
		UserID:  userID,
		Amount:  amount,
		PixKey:  "ana@pix.com",
		PixType: domain.PixTypeEmail,
	}
}

func TestHandle_PaidFinalizes(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := &fakeGateway{payout: &gateway.Payout{Status: "paid"}}
	proc := setupProcessor(t, db, gw)

	user := testutil.SeedTestUser(t, db, "paid@test.com", "Paid")
	testutil.SeedLedger(t, db, user.ID, 5000)

	w, err := proc.Handle(context.Background(), request(user.ID, 3000))
	require.NoError(t, err)

	assert.Equal(t, domain.StatusPaid, w.Status)
	require.NotNil(t, w.ExternalID)
	assert.Equal(t, domain.StatusPaid, testutil.GetWithdrawStatus(t, db, w.ID))

	l := testutil.GetLedger(t, db, user.ID)
	assert.Equal(t, int64(2000), l.TotalAmount)
	assert.Equal(t, int64(0), l.TotalBlocked)
	assert.Equal(t, 1, testutil.CountRows(t, db, "outbox_messages", "topic = $1", domain.TopicWithdrawPaid))
}

func TestHandle_InsufficientBalance(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := &fakeGateway{payout: &gateway.Payout{Status: "paid"}}
	proc := setupProcessor(t, db, gw)

	user := testutil.SeedTestUser(t, db, "poor@test.com", "Poor")
	testutil.SeedLedger(t, db, user.ID, 5000)

	_, err := proc.Handle(context.Background(), request(user.ID, 6000))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	assert.Zero(t, gw.calls)
	assert.Equal(t, 0, testutil.CountRows(t, db, "withdraws", "user_id = $1", user.ID))
	l := testutil.GetLedger(t, db, user.ID)
	assert.Equal(t, int64(5000), l.TotalAmount)
	assert.Equal(t, int64(0), l.TotalBlocked)
}

func TestHandle_Outcomes(t *testing.T) {
	tests := []struct {
		name        string
		gw          *fakeGateway
		wantStatus  domain.Status
		wantAmount  int64
		wantBlocked int64
		wantExtID   bool
	}{
		{
			name:       "gateway reproves",
			gw:         &fakeGateway{payout: &gateway.Payout{Status: "reproved", Message: "key not found"}},
			wantStatus: domain.StatusReproved,
			wantAmount: 5000,
			wantExtID:  true,
		},
		{
			name:       "gateway rejects with client error",
			gw:         &fakeGateway{err: fmt.Errorf("status 422: %w", domain.ErrGatewayRejected)},
			wantStatus: domain.StatusError,
			wantAmount: 5000,
		},
		{
			name:       "payout never sent",
			gw:         &fakeGateway{err: fmt.Errorf("/withdraw: %w: accessToken: status 503", domain.ErrGatewayNotSent)},
			wantStatus: domain.StatusError,
			wantAmount: 5000,
		},
		{
			name:        "gateway times out",
			gw:          &fakeGateway{err: fmt.Errorf("deadline exceeded: %w", domain.ErrGatewayAmbiguous)},
			wantStatus:  domain.StatusCreated,
			wantAmount:  2000,
			wantBlocked: 3000,
		},
		{
			name:        "gateway still processing",
			gw:          &fakeGateway{payout: &gateway.Payout{Status: "processing"}},
			wantStatus:  domain.StatusCreated,
			wantAmount:  2000,
			wantBlocked: 3000,
			wantExtID:   true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			db := testutil.SetupTestDB(t)
			proc := setupProcessor(t, db, tc.gw)

			user := testutil.SeedTestUser(t, db, "outcome@test.com", "Outcome")
			testutil.SeedLedger(t, db, user.ID, 5000)

			w, err := proc.Handle(context.Background(), request(user.ID, 3000))
			require.NoError(t, err)

			assert.Equal(t, tc.wantStatus, w.Status)
			assert.Equal(t, tc.wantStatus, testutil.GetWithdrawStatus(t, db, w.ID))
			assert.Equal(t, tc.wantExtID, w.ExternalID != nil)

			l := testutil.GetLedger(t, db, user.ID)
			assert.Equal(t, tc.wantAmount, l.TotalAmount)
			assert.Equal(t, tc.wantBlocked, l.TotalBlocked)
			assert.Equal(t, int64(5000), l.TotalAmount+l.TotalBlocked)
		})
	}
}

func TestHandle_Validation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := &fakeGateway{payout: &gateway.Payout{Status: "paid"}}
	proc := setupProcessor(t, db, gw)
	user := testutil.SeedTestUser(t, db, "val@test.com", "Val")

	tests := []struct {
		name string
		req  withdrawal.Request
	}{
		{name: "zero amount", req: withdrawal.Request{UserID: user.ID, Amount: 0, PixKey: "a@b.c", PixType: domain.PixTypeEmail}},
		{name: "bad pix type", req: withdrawal.Request{UserID: user.ID, Amount: 100, PixKey: "a@b.c", PixType: "iban"}},
		{name: "bad pix key", req: withdrawal.Request{UserID: user.ID, Amount: 100, PixKey: "123", PixType: domain.PixTypeCPF}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := proc.Handle(context.Background(), tc.req)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
	assert.Zero(t, gw.calls)
}

func TestHandle_ConcurrentWithdrawalsNeverOverdraw(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := &fakeGateway{payout: &gateway.Payout{Status: "paid"}}
	proc := setupProcessor(t, db, gw)

	user := testutil.SeedTestUser(t, db, "race@test.com", "Race")
	testutil.SeedLedger(t, db, user.ID, 5000)

	amounts := []int64{3000, 4000}
	var wg sync.WaitGroup
	results := make(chan error, len(amounts))
	for _, amount := range amounts {
		wg.Add(1)
		go func(amount int64) {
			defer wg.Done()
			_, err := proc.Handle(context.Background(), request(user.ID, amount))
			results <- err
		}(amount)
	}
	wg.Wait()
	close(results)

	var successes int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	}
	assert.Equal(t, 1, successes)

	l := testutil.GetLedger(t, db, user.ID)
	assert.GreaterOrEqual(t, l.TotalAmount, int64(0))
	assert.Contains(t, []int64{1000, 2000}, l.TotalAmount)
}

func TestApplyGatewayEvent_ResolvesPendingPayout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := &fakeGateway{payout: &gateway.Payout{Status: "pending"}}
	proc := setupProcessor(t, db, gw)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "late@test.com", "Late")
	testutil.SeedLedger(t, db, user.ID, 5000)

	w, err := proc.Handle(ctx, request(user.ID, 3000))
	require.NoError(t, err)
	require.NotNil(t, w.ExternalID)

	applied, err := proc.ApplyGatewayEvent(ctx, *w.ExternalID, domain.StatusReproved)
	require.NoError(t, err)
	assert.True(t, applied)

	applied, err = proc.ApplyGatewayEvent(ctx, *w.ExternalID, domain.StatusPaid)
	require.NoError(t, err)
	assert.False(t, applied, "terminal withdrawals ignore later events")

	assert.Equal(t, domain.StatusReproved, testutil.GetWithdrawStatus(t, db, w.ID))
	l := testutil.GetLedger(t, db, user.ID)
	assert.Equal(t, int64(5000), l.TotalAmount)
	assert.Equal(t, int64(0), l.TotalBlocked)
}

func TestApplyGatewayEvent_UnknownExternalID(t *testing.T) {
	db := testutil.SetupTestDB(t)
	proc := setupProcessor(t, db, &fakeGateway{})

	_, err := proc.ApplyGatewayEvent(context.Background(), "nope", domain.StatusPaid)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestResolve(t *testing.T) {
	db := testutil.SetupTestDB(t)
	gw := &fakeGateway{err: domain.ErrGatewayAmbiguous}
	proc := setupProcessor(t, db, gw)
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "ops@test.com", "Ops")
	testutil.SeedLedger(t, db, user.ID, 5000)

	w, err := proc.Handle(ctx, request(user.ID, 3000))
	require.NoError(t, err)
	require.Equal(t, domain.StatusCreated, w.Status)

	_, err = proc.Resolve(ctx, w.ID, domain.StatusCreated, "")
	assert.ErrorIs(t, err, domain.ErrValidation)

	resolved, err := proc.Resolve(ctx, w.ID, domain.StatusPaid, "confirmed on gateway statement")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, resolved.Status)

	_, err = proc.Resolve(ctx, w.ID, domain.StatusError, "")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	l := testutil.GetLedger(t, db, user.ID)
	assert.Equal(t, int64(2000), l.TotalAmount)
	assert.Equal(t, int64(0), l.TotalBlocked)
}

func TestGet_OwnershipAndList(t *testing.T) {
	db := testutil.SetupTestDB(t)
	proc := setupProcessor(t, db, &fakeGateway{payout: &gateway.Payout{Status: "paid"}})
	ctx := context.Background()

	user := testutil.SeedTestUser(t, db, "owner@test.com", "Owner")
	other := testutil.SeedTestUser(t, db, "other@test.com", "Other")
	testutil.SeedLedger(t, db, user.ID, 5000)

	w, err := proc.Handle(ctx, request(user.ID, 1000))
	require.NoError(t, err)

	got, err := proc.Get(ctx, user.ID, w.ID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, got.ID)

	_, err = proc.Get(ctx, other.ID, w.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	list, total, err := proc.List(ctx, user.ID, domain.NewPage(1, 10))
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, list, 1)
}
