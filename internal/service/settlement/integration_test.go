package settlement_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/gateway"
	"github.com/josh-kwaku/pix-ledger/internal/repository"
	"github.com/josh-kwaku/pix-ledger/internal/service/commission"
	"github.com/josh-kwaku/pix-ledger/internal/service/deposit"
	"github.com/josh-kwaku/pix-ledger/internal/service/ledger"
	"github.com/josh-kwaku/pix-ledger/internal/service/settlement"
	"github.com/josh-kwaku/pix-ledger/internal/service/withdrawal"
	"github.com/josh-kwaku/pix-ledger/internal/testutil"
)

type fakeGateway struct {
	mu           sync.Mutex
	payoutStatus string
	payoutErr    error
	lastPayoutID string
}

func (f *fakeGateway) OpenPixCharge(_ context.Context, _ int64, _ gateway.Payer) (*gateway.Charge, error) {
	return &gateway.Charge{ExternalID: uuid.NewString(), PaymentCode: "000201pix", QRCodeBase64: "iVBOR"}, nil
}

func (f *fakeGateway) PayoutPix(_ context.Context, _ int64, _ gateway.Receiver, _ string, _ domain.PixType) (*gateway.Payout, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.payoutErr != nil {
		return nil, f.payoutErr
	}
	f.lastPayoutID = uuid.NewString()
	return &gateway.Payout{ExternalID: f.lastPayoutID, Status: f.payoutStatus}, nil
}

type harness struct {
	db          *sql.DB
	gw          *fakeGateway
	deposits    *deposit.Orchestrator
	withdrawals *withdrawal.Processor
	settlement  *settlement.Processor
}

func setup(t *testing.T) *harness {
	t.Helper()
	db := testutil.SetupTestDB(t)
	gw := &fakeGateway{payoutStatus: "paid"}

	users := repository.NewUserRepository(db)
	outbox := repository.NewOutboxRepository(db)
	store := ledger.NewStore(repository.NewLedgerRepository(db), db, 3, nil)
	withdrawals := withdrawal.NewProcessor(store, repository.NewWithdrawRepository(db), users, gw, outbox, nil, 0)

	return &harness{
		db:          db,
		gw:          gw,
		deposits:    deposit.NewOrchestrator(repository.NewDepositRepository(db), users, gw, nil, 0),
		withdrawals: withdrawals,
		settlement: settlement.NewProcessor(
			store,
			repository.NewDepositRepository(db),
			commission.NewAccruer(users, repository.NewCommissionRepository(db), nil),
			withdrawals,
			outbox,
			nil,
		),
	}
}

func (h *harness) openDeposit(t *testing.T, userID uuid.UUID, amount int64) *domain.Deposit {
	t.Helper()
	d, err := h.deposits.Create(context.Background(), deposit.CreateRequest{
		UserID:   userID,
		Amount:   amount,
		Document: "123.456.789-09",
	})
	require.NoError(t, err)
	return d
}

func TestScenario_PaidWebhookCreditsOnce(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	user := testutil.SeedTestUser(t, h.db, "dep@test.com", "Depositor")

	d := h.openDeposit(t, user.ID, 10000)
	assert.Equal(t, domain.StatusCreated, testutil.GetDepositStatus(t, h.db, d.ID))

	result, err := h.settlement.ApplyGatewayEvent(ctx, *d.ExternalID, "paid")
	require.NoError(t, err)
	assert.Equal(t, settlement.ResultCredited, result)
	assert.Equal(t, int64(10000), testutil.GetLedger(t, h.db, user.ID).TotalAmount)

	result, err = h.settlement.ApplyGatewayEvent(ctx, *d.ExternalID, "paid")
	require.NoError(t, err)
	assert.Equal(t, settlement.ResultDuplicate, result)
	assert.Equal(t, int64(10000), testutil.GetLedger(t, h.db, user.ID).TotalAmount)
	assert.Equal(t, domain.StatusPaid, testutil.GetDepositStatus(t, h.db, d.ID))
}

func TestScenario_WithdrawAboveBalanceIsRejected(t *testing.T) {
	h := setup(t)
	user := testutil.SeedTestUser(t, h.db, "wd@test.com", "Withdrawer")
	testutil.SeedLedger(t, h.db, user.ID, 5000)

	_, err := h.withdrawals.Handle(context.Background(), withdrawal.Request{
		UserID: user.ID, Amount: 6000, PixKey: "wd@pix.com", PixType: domain.PixTypeEmail,
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, int64(5000), testutil.GetLedger(t, h.db, user.ID).TotalAmount)
}

func TestScenario_ConfirmedWithdrawFinalizes(t *testing.T) {
	h := setup(t)
	user := testutil.SeedTestUser(t, h.db, "wd@test.com", "Withdrawer")
	testutil.SeedLedger(t, h.db, user.ID, 5000)

	w, err := h.withdrawals.Handle(context.Background(), withdrawal.Request{
		UserID: user.ID, Amount: 3000, PixKey: "wd@pix.com", PixType: domain.PixTypeEmail,
	})
	require.NoError(t, err)

	l := testutil.GetLedger(t, h.db, user.ID)
	assert.Equal(t, int64(2000), l.TotalAmount)
	assert.Equal(t, int64(0), l.TotalBlocked)
	assert.Equal(t, domain.StatusPaid, testutil.GetWithdrawStatus(t, h.db, w.ID))
}

func TestScenario_RejectedWithdrawReleases(t *testing.T) {
	h := setup(t)
	h.gw.payoutStatus = "reproved"
	user := testutil.SeedTestUser(t, h.db, "wd@test.com", "Withdrawer")
	testutil.SeedLedger(t, h.db, user.ID, 5000)

	w, err := h.withdrawals.Handle(context.Background(), withdrawal.Request{
		UserID: user.ID, Amount: 3000, PixKey: "wd@pix.com", PixType: domain.PixTypeEmail,
	})
	require.NoError(t, err)

	l := testutil.GetLedger(t, h.db, user.ID)
	assert.Equal(t, int64(5000), l.TotalAmount)
	assert.Equal(t, int64(0), l.TotalBlocked)
	assert.Equal(t, domain.StatusReproved, testutil.GetWithdrawStatus(t, h.db, w.ID))
}

func TestScenario_ReferredDepositAccruesOneCommission(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	owner := testutil.SeedTestUser(t, h.db, "aff@test.com", "Affiliate")
	aff := testutil.SeedAffiliate(t, h.db, owner.ID, "AFF00001", "0.10")
	user := testutil.SeedReferredUser(t, h.db, "ref@test.com", "Referred", &aff.ID)

	d := h.openDeposit(t, user.ID, 10000)

	for range 3 {
		_, err := h.settlement.ApplyGatewayEvent(ctx, *d.ExternalID, "paid")
		require.NoError(t, err)
	}

	commissions, err := repository.NewCommissionRepository(h.db).GetByDepositID(ctx, d.ID)
	require.NoError(t, err)
	require.Len(t, commissions, 1)
	assert.Equal(t, aff.ID, commissions[0].AffiliateID)
	assert.Equal(t, user.ID, commissions[0].SourceUserID)
	assert.Equal(t, domain.CommissionTypeDeposit, commissions[0].Type)
	assert.Equal(t, int64(1000), testutil.SumCommissions(t, h.db, d.ID))
	assert.Equal(t, 1, testutil.CountRows(t, h.db, "outbox_messages", "topic = $1", domain.TopicCommissionAccrued))
}

func TestConcurrentDuplicateDeliveriesCreditOnce(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	owner := testutil.SeedTestUser(t, h.db, "aff@test.com", "Affiliate")
	aff := testutil.SeedAffiliate(t, h.db, owner.ID, "AFF00002", "0.10")
	user := testutil.SeedReferredUser(t, h.db, "ref@test.com", "Referred", &aff.ID)
	d := h.openDeposit(t, user.ID, 10000)

	const n = 10
	var wg sync.WaitGroup
	results := make(chan settlement.Result, n)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := h.settlement.ApplyGatewayEvent(ctx, *d.ExternalID, "paid")
			assert.NoError(t, err)
			results <- r
		}()
	}
	wg.Wait()
	close(results)

	credited := 0
	for r := range results {
		if r == settlement.ResultCredited {
			credited++
		}
	}
	assert.Equal(t, 1, credited)
	assert.Equal(t, int64(10000), testutil.GetLedger(t, h.db, user.ID).TotalAmount)
	assert.Equal(t, 1, testutil.CountRows(t, h.db, "affiliate_commissions", "deposit_id = $1", d.ID))
	assert.Equal(t, 1, testutil.CountRows(t, h.db, "ledger_movements", "reference_id = $1", d.ID))
}

func TestOutOfBandStatusResetDoesNotDoubleCredit(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	user := testutil.SeedTestUser(t, h.db, "reset@test.com", "Reset")
	d := h.openDeposit(t, user.ID, 10000)

	_, err := h.settlement.ApplyGatewayEvent(ctx, *d.ExternalID, "paid")
	require.NoError(t, err)

	_, err = h.db.Exec(`UPDATE deposits SET status = $1 WHERE id = $2`, domain.StatusCreated, d.ID)
	require.NoError(t, err)

	result, err := h.settlement.ApplyGatewayEvent(ctx, *d.ExternalID, "paid")
	require.NoError(t, err)
	assert.Equal(t, settlement.ResultDuplicate, result)
	assert.Equal(t, int64(10000), testutil.GetLedger(t, h.db, user.ID).TotalAmount)
}

func TestWebhookResolvesPendingWithdrawal(t *testing.T) {
	h := setup(t)
	h.gw.payoutStatus = "processing"
	ctx := context.Background()
	user := testutil.SeedTestUser(t, h.db, "pend@test.com", "Pending")
	testutil.SeedLedger(t, h.db, user.ID, 5000)

	w, err := h.withdrawals.Handle(ctx, withdrawal.Request{
		UserID: user.ID, Amount: 3000, PixKey: "pend@pix.com", PixType: domain.PixTypeEmail,
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusCreated, w.Status)

	result, err := h.settlement.ApplyGatewayEvent(ctx, h.gw.lastPayoutID, "paid")
	require.NoError(t, err)
	assert.Equal(t, settlement.ResultWithdraw, result)

	l := testutil.GetLedger(t, h.db, user.ID)
	assert.Equal(t, int64(2000), l.TotalAmount)
	assert.Equal(t, int64(0), l.TotalBlocked)
	assert.Equal(t, domain.StatusPaid, testutil.GetWithdrawStatus(t, h.db, w.ID))
}

func TestUnknownExternalIDIsReported(t *testing.T) {
	h := setup(t)

	_, err := h.settlement.ApplyGatewayEvent(context.Background(), "ghost", "paid")
	assert.ErrorIs(t, err, domain.ErrUnknownDeposit)
}
