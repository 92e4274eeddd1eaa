package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/repository"
	"github.com/josh-kwaku/pix-ledger/internal/service/commission"
	"github.com/josh-kwaku/pix-ledger/internal/service/ledger"
	"github.com/josh-kwaku/pix-ledger/internal/service/settlement"
	"github.com/josh-kwaku/pix-ledger/internal/service/withdrawal"
	"github.com/josh-kwaku/pix-ledger/internal/testutil"
)

type mockWebhookRepo struct {
	pending  []domain.WebhookEvent
	claimErr error
	statuses map[uuid.UUID]domain.WebhookEventStatus
}

func (m *mockWebhookRepo) ClaimPending(_ context.Context, _ int) ([]domain.WebhookEvent, error) {
	return m.pending, m.claimErr
}

func (m *mockWebhookRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.WebhookEventStatus) error {
	if m.statuses == nil {
		m.statuses = map[uuid.UUID]domain.WebhookEventStatus{}
	}
	m.statuses[id] = status
	return nil
}

type mockSettler struct {
	calls  []string
	result settlement.Result
	err    error
}

func (m *mockSettler) ApplyGatewayEvent(_ context.Context, externalID, status string) (settlement.Result, error) {
	m.calls = append(m.calls, externalID+":"+status)
	return m.result, m.err
}

func webhookEvent(t *testing.T, payload any) domain.WebhookEvent {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	return domain.WebhookEvent{
		ID:             uuid.New(),
		IdempotencyKey: uuid.NewString(),
		EventType:      domain.WebhookEventTypePaid,
		Payload:        body,
		Status:         domain.WebhookEventStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestWebhookProcessor_Poll(t *testing.T) {
	tests := []struct {
		name       string
		payload    any
		attempts   int
		settlerErr error
		wantStatus domain.WebhookEventStatus
		wantDone   int
		wantCalls  int
	}{
		{
			name:       "applied event is processed",
			payload:    domain.WebhookPayload{ID: "ext-1", Status: "paid"},
			wantStatus: domain.WebhookEventStatusProcessed,
			wantDone:   1,
			wantCalls:  1,
		},
		{
			name:       "unknown external id stays pending on first claim",
			payload:    domain.WebhookPayload{ID: "ext-404", Status: "paid"},
			attempts:   1,
			settlerErr: fmt.Errorf("ApplyGatewayEvent: %w", domain.ErrUnknownDeposit),
			wantCalls:  1,
		},
		{
			name:       "unknown external id is failed once attempts run out",
			payload:    domain.WebhookPayload{ID: "ext-404", Status: "paid"},
			attempts:   unknownEventAttempts,
			settlerErr: fmt.Errorf("ApplyGatewayEvent: %w", domain.ErrUnknownDeposit),
			wantStatus: domain.WebhookEventStatusFailed,
			wantDone:   1,
			wantCalls:  1,
		},
		{
			name:       "unknown status is failed",
			payload:    domain.WebhookPayload{ID: "ext-1", Status: "refunded"},
			settlerErr: fmt.Errorf("ApplyGatewayEvent: %w", domain.ErrInvalidStatus),
			wantStatus: domain.WebhookEventStatusFailed,
			wantDone:   1,
			wantCalls:  1,
		},
		{
			name:       "malformed payload is failed without settling",
			payload:    "not an object",
			wantStatus: domain.WebhookEventStatusFailed,
			wantDone:   1,
		},
		{
			name:       "missing id is failed without settling",
			payload:    domain.WebhookPayload{Status: "paid"},
			wantStatus: domain.WebhookEventStatusFailed,
			wantDone:   1,
		},
		{
			name:       "transient error leaves event pending",
			payload:    domain.WebhookPayload{ID: "ext-1", Status: "paid"},
			settlerErr: fmt.Errorf("ApplyGatewayEvent: %w", domain.ErrConcurrencyConflict),
			wantCalls:  1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			event := webhookEvent(t, tc.payload)
			event.Attempts = tc.attempts
			repo := &mockWebhookRepo{pending: []domain.WebhookEvent{event}}
			settler := &mockSettler{result: settlement.ResultCredited, err: tc.settlerErr}
			p := NewWebhookProcessor(repo, settler, slog.Default(), time.Second)

			assert.Equal(t, tc.wantDone, p.Poll(context.Background()))
			assert.Len(t, settler.calls, tc.wantCalls)

			status, ok := repo.statuses[event.ID]
			if tc.wantStatus == "" {
				assert.False(t, ok, "event should stay pending")
				return
			}
			assert.Equal(t, tc.wantStatus, status)
		})
	}
}

func TestWebhookProcessor_ClaimError(t *testing.T) {
	repo := &mockWebhookRepo{claimErr: errors.New("connection refused")}
	settler := &mockSettler{}
	p := NewWebhookProcessor(repo, settler, slog.Default(), time.Second)

	assert.Zero(t, p.Poll(context.Background()))
	assert.Empty(t, settler.calls)
}

func TestWebhookProcessor_StopsOnCancel(t *testing.T) {
	p := NewWebhookProcessor(&mockWebhookRepo{}, &mockSettler{}, slog.Default(), 10*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("processor did not stop")
	}
}

func storeWebhook(t *testing.T, repo *repository.WebhookEventRepository, externalID string, status domain.GatewayStatus) *domain.WebhookEvent {
	t.Helper()
	body, err := json.Marshal(domain.WebhookPayload{ID: externalID, Status: string(status)})
	require.NoError(t, err)

	event := &domain.WebhookEvent{
		ID:             uuid.New(),
		IdempotencyKey: externalID + ":" + string(status),
		EventType:      domain.WebhookEventTypeFor(status),
		Payload:        body,
		Status:         domain.WebhookEventStatusPending,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, repo.Create(context.Background(), event))
	return event
}

func getWebhookStatus(t *testing.T, db *sql.DB, id uuid.UUID) domain.WebhookEventStatus {
	t.Helper()
	var status domain.WebhookEventStatus
	err := db.QueryRow(`SELECT status FROM webhook_events WHERE id = $1`, id).Scan(&status)
	require.NoError(t, err)
	return status
}

func newSettlement(db *sql.DB) *settlement.Processor {
	users := repository.NewUserRepository(db)
	outbox := repository.NewOutboxRepository(db)
	store := ledger.NewStore(repository.NewLedgerRepository(db), db, 3, nil)
	withdrawals := withdrawal.NewProcessor(store, repository.NewWithdrawRepository(db), users, nil, outbox, nil, 0)
	return settlement.NewProcessor(
		store,
		repository.NewDepositRepository(db),
		commission.NewAccruer(users, repository.NewCommissionRepository(db), nil),
		withdrawals,
		outbox,
		nil,
	)
}

func TestWebhookProcessor_SettlesStoredEvents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	webhooks := repository.NewWebhookEventRepository(db)
	p := NewWebhookProcessor(webhooks, newSettlement(db), slog.Default(), time.Second)

	user := testutil.SeedTestUser(t, db, "payer@test.com", "Payer")
	d := testutil.SeedDeposit(t, db, user.ID, 10000, "ext-paid", domain.StatusCreated)

	paid := storeWebhook(t, webhooks, "ext-paid", domain.GatewayStatusPaid)
	late := storeWebhook(t, webhooks, "ext-paid", domain.GatewayStatusReproved)
	stray := storeWebhook(t, webhooks, "ext-nobody", domain.GatewayStatusPaid)

	assert.Equal(t, 2, p.Poll(context.Background()))

	assert.Equal(t, domain.StatusPaid, testutil.GetDepositStatus(t, db, d.ID))
	assert.Equal(t, int64(10000), testutil.GetLedger(t, db, user.ID).TotalAmount)

	assert.Equal(t, domain.WebhookEventStatusProcessed, getWebhookStatus(t, db, paid.ID))
	assert.Equal(t, domain.WebhookEventStatusProcessed, getWebhookStatus(t, db, late.ID))
	assert.Equal(t, domain.WebhookEventStatusPending, getWebhookStatus(t, db, stray.ID))

	// The stray event is leased, so nothing is claimable right away.
	assert.Zero(t, p.Poll(context.Background()))

	for range unknownEventAttempts - 2 {
		expireWebhookLeases(t, db)
		assert.Zero(t, p.Poll(context.Background()))
	}
	assert.Equal(t, domain.WebhookEventStatusPending, getWebhookStatus(t, db, stray.ID))

	expireWebhookLeases(t, db)
	assert.Equal(t, 1, p.Poll(context.Background()))
	assert.Equal(t, domain.WebhookEventStatusFailed, getWebhookStatus(t, db, stray.ID))
}

func TestWebhookProcessor_CallbackBeforeExternalIDIsRecorded(t *testing.T) {
	db := testutil.SetupTestDB(t)
	webhooks := repository.NewWebhookEventRepository(db)
	p := NewWebhookProcessor(webhooks, newSettlement(db), slog.Default(), time.Second)

	event := storeWebhook(t, webhooks, "ext-early", domain.GatewayStatusPaid)
	assert.Zero(t, p.Poll(context.Background()))
	assert.Equal(t, domain.WebhookEventStatusPending, getWebhookStatus(t, db, event.ID))

	user := testutil.SeedTestUser(t, db, "early@test.com", "Early")
	d := testutil.SeedDeposit(t, db, user.ID, 7000, "ext-early", domain.StatusCreated)

	expireWebhookLeases(t, db)
	assert.Equal(t, 1, p.Poll(context.Background()))
	assert.Equal(t, domain.WebhookEventStatusProcessed, getWebhookStatus(t, db, event.ID))
	assert.Equal(t, domain.StatusPaid, testutil.GetDepositStatus(t, db, d.ID))
	assert.Equal(t, int64(7000), testutil.GetLedger(t, db, user.ID).TotalAmount)
}

func expireWebhookLeases(t *testing.T, db *sql.DB) {
	t.Helper()
	_, err := db.Exec(`UPDATE webhook_events SET last_attempt = now() - interval '1 hour' WHERE status = 'pending'`)
	require.NoError(t, err)
}
