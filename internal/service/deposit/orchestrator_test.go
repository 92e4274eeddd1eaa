package deposit

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/gateway"
)

type mockDepositRepo struct {
	created   []*domain.Deposit
	createErr error
	byID      map[uuid.UUID]*domain.Deposit
}

func (m *mockDepositRepo) Create(_ context.Context, d *domain.Deposit) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, d)
	return nil
}

func (m *mockDepositRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Deposit, error) {
	if d, ok := m.byID[id]; ok {
		return d, nil
	}
	return nil, domain.ErrNotFound
}

func (m *mockDepositRepo) ListByUser(_ context.Context, userID uuid.UUID, limit, offset int) ([]domain.Deposit, int, error) {
	var out []domain.Deposit
	for _, d := range m.created {
		if d.UserID == userID {
			out = append(out, *d)
		}
	}
	total := len(out)
	if offset >= total {
		return nil, total, nil
	}
	return out[offset:min(offset+limit, total)], total, nil
}

type mockUserRepo struct {
	user *domain.User
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	if m.user != nil && m.user.ID == id {
		return m.user, nil
	}
	return nil, domain.ErrNotFound
}

type mockGateway struct {
	calls  int
	payer  gateway.Payer
	charge *gateway.Charge
	err    error
}

func (m *mockGateway) OpenPixCharge(_ context.Context, _ int64, payer gateway.Payer) (*gateway.Charge, error) {
	m.calls++
	m.payer = payer
	if m.err != nil {
		return nil, m.err
	}
	return m.charge, nil
}

type mockRecorder struct {
	created  []int64
	orphaned int
}

func (m *mockRecorder) DepositCreated(amount int64) { m.created = append(m.created, amount) }
func (m *mockRecorder) DepositOrphaned()            { m.orphaned++ }

type fixture struct {
	orch     *Orchestrator
	deposits *mockDepositRepo
	gw       *mockGateway
	metrics  *mockRecorder
	user     *domain.User
}

func newFixture() *fixture {
	user := &domain.User{ID: uuid.New(), Name: "Ana", Document: "12345678901"}
	f := &fixture{
		deposits: &mockDepositRepo{},
		gw: &mockGateway{charge: &gateway.Charge{
			ExternalID:   "ext-1",
			PaymentCode:  "000201pix",
			QRCodeBase64: "iVBOR",
		}},
		metrics: &mockRecorder{},
		user:    user,
	}
	f.orch = NewOrchestrator(f.deposits, &mockUserRepo{user: user}, f.gw, f.metrics, 0)
	return f
}

func TestCreate_PersistsCreatedDeposit(t *testing.T) {
	f := newFixture()

	d, err := f.orch.Create(context.Background(), CreateRequest{
		UserID:   f.user.ID,
		Amount:   10000,
		Document: "123.456.789-01",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCreated, d.Status)
	assert.Equal(t, int64(10000), d.Amount)
	require.NotNil(t, d.ExternalID)
	assert.Equal(t, "ext-1", *d.ExternalID)
	require.NotNil(t, d.PaymentCode)
	assert.Equal(t, "000201pix", *d.PaymentCode)

	assert.Equal(t, "12345678901", f.gw.payer.Document)
	assert.Equal(t, "Ana", f.gw.payer.Name)
	assert.Len(t, f.deposits.created, 1)
	assert.Equal(t, []int64{10000}, f.metrics.created)
}

func TestCreate_Validation(t *testing.T) {
	tests := []struct {
		name string
		req  func(userID uuid.UUID) CreateRequest
	}{
		{name: "zero amount", req: func(u uuid.UUID) CreateRequest {
			return CreateRequest{UserID: u, Amount: 0, Document: "12345678901"}
		}},
		{name: "negative amount", req: func(u uuid.UUID) CreateRequest {
			return CreateRequest{UserID: u, Amount: -1, Document: "12345678901"}
		}},
		{name: "above maximum", req: func(u uuid.UUID) CreateRequest {
			return CreateRequest{UserID: u, Amount: 100_000_001, Document: "12345678901"}
		}},
		{name: "empty document", req: func(u uuid.UUID) CreateRequest {
			return CreateRequest{UserID: u, Amount: 100, Document: ""}
		}},
		{name: "short document", req: func(u uuid.UUID) CreateRequest {
			return CreateRequest{UserID: u, Amount: 100, Document: "1234"}
		}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.orch.Create(context.Background(), tc.req(f.user.ID))
			assert.ErrorIs(t, err, domain.ErrValidation)
			assert.Zero(t, f.gw.calls)
			assert.Empty(t, f.deposits.created)
		})
	}
}

func TestCreate_GatewayFailurePersistsNothing(t *testing.T) {
	f := newFixture()
	f.gw.err = domain.ErrGatewayAmbiguous

	_, err := f.orch.Create(context.Background(), CreateRequest{UserID: f.user.ID, Amount: 100, Document: "12345678901"})
	assert.ErrorIs(t, err, domain.ErrGateway)
	assert.Empty(t, f.deposits.created)
	assert.Empty(t, f.metrics.created)
}

func TestCreate_PersistFailureIsReportedAsOrphan(t *testing.T) {
	f := newFixture()
	f.deposits.createErr = errors.New("connection reset")

	_, err := f.orch.Create(context.Background(), CreateRequest{UserID: f.user.ID, Amount: 100, Document: "12345678901"})
	assert.Error(t, err)
	assert.Equal(t, 1, f.gw.calls)
	assert.Equal(t, 1, f.metrics.orphaned)
}

func TestGet_HidesOtherUsersDeposits(t *testing.T) {
	f := newFixture()
	owner := uuid.New()
	d := &domain.Deposit{ID: uuid.New(), UserID: owner}
	f.deposits.byID = map[uuid.UUID]*domain.Deposit{d.ID: d}

	got, err := f.orch.Get(context.Background(), owner, d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)

	_, err = f.orch.Get(context.Background(), uuid.New(), d.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_Paginates(t *testing.T) {
	f := newFixture()
	for range 5 {
		_, err := f.orch.Create(context.Background(), CreateRequest{UserID: f.user.ID, Amount: 100, Document: "12345678901"})
		require.NoError(t, err)
	}

	page, total, err := f.orch.List(context.Background(), f.user.ID, domain.NewPage(2, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, page, 2)
}
