package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
)

const TestPassword = "password123"

func SeedTestUser(t *testing.T, db *sql.DB, email, name string) *domain.User {
	t.Helper()
	return SeedReferredUser(t, db, email, name, nil)
}

func SeedReferredUser(t *testing.T, db *sql.DB, email, name string, referredBy *uuid.UUID) *domain.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	u := &domain.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		Document:     "12345678909",
		PasswordHash: string(hash),
		ReferredBy:   referredBy,
		Status:       domain.UserStatusActive,
		CreatedAt:    time.Now().UTC(),
	}

	_, err = db.Exec(
		`INSERT INTO users (id, email, name, document, password_hash, referred_by, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.Name, u.Document, u.PasswordHash, u.ReferredBy, u.Status, u.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed test user %s: %v", email, err)
	}
	return u
}

// SeedLedger sets the user's spendable balance directly.
func SeedLedger(t *testing.T, db *sql.DB, userID uuid.UUID, totalAmount int64) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO ledgers (user_id, total_amount) VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET total_amount = EXCLUDED.total_amount`,
		userID, totalAmount,
	)
	if err != nil {
		t.Fatalf("seed ledger %s: %v", userID, err)
	}
}

func SeedAffiliate(t *testing.T, db *sql.DB, userID uuid.UUID, code string, percent string) *domain.Affiliate {
	t.Helper()

	a := &domain.Affiliate{
		ID:                uuid.New(),
		UserID:            userID,
		AffiliateCode:     code,
		CommissionPercent: decimal.RequireFromString(percent),
		CommissionType:    domain.CommissionTypeDeposit,
		CreatedAt:         time.Now().UTC(),
	}
	_, err := db.Exec(
		`INSERT INTO affiliates (id, user_id, affiliate_code, commission_percent, commission_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.UserID, a.AffiliateCode, a.CommissionPercent, a.CommissionType, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed affiliate %s: %v", code, err)
	}
	return a
}

// SeedDeposit inserts a deposit in the given status with an external id.
func SeedDeposit(t *testing.T, db *sql.DB, userID uuid.UUID, amount int64, externalID string, status domain.Status) *domain.Deposit {
	t.Helper()

	now := time.Now().UTC()
	d := &domain.Deposit{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        amount,
		PaymentMethod: domain.PaymentMethodPix,
		Status:        status,
		ExternalID:    &externalID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := db.Exec(
		`INSERT INTO deposits (id, user_id, amount, payment_method, status, external_id, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		d.ID, d.UserID, d.Amount, d.PaymentMethod, d.Status, d.ExternalID, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		t.Fatalf("seed deposit %s: %v", externalID, err)
	}
	return d
}

func GetLedger(t *testing.T, db *sql.DB, userID uuid.UUID) domain.Ledger {
	t.Helper()

	l := domain.Ledger{UserID: userID}
	err := db.QueryRow(
		`SELECT total_amount, total_blocked, version FROM ledgers WHERE user_id = $1`, userID,
	).Scan(&l.TotalAmount, &l.TotalBlocked, &l.Version)
	if err != nil && err != sql.ErrNoRows {
		t.Fatalf("get ledger %s: %v", userID, err)
	}
	return l
}

func GetDepositStatus(t *testing.T, db *sql.DB, depositID uuid.UUID) domain.Status {
	t.Helper()

	var s domain.Status
	if err := db.QueryRow(`SELECT status FROM deposits WHERE id = $1`, depositID).Scan(&s); err != nil {
		t.Fatalf("get deposit status %s: %v", depositID, err)
	}
	return s
}

func GetWithdrawStatus(t *testing.T, db *sql.DB, withdrawID uuid.UUID) domain.Status {
	t.Helper()

	var s domain.Status
	if err := db.QueryRow(`SELECT status FROM withdraws WHERE id = $1`, withdrawID).Scan(&s); err != nil {
		t.Fatalf("get withdraw status %s: %v", withdrawID, err)
	}
	return s
}

func CountRows(t *testing.T, db *sql.DB, table, where string, args ...any) int {
	t.Helper()

	var n int
	q := `SELECT COUNT(*) FROM ` + table
	if where != "" {
		q += ` WHERE ` + where
	}
	if err := db.QueryRow(q, args...).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func SumCommissions(t *testing.T, db *sql.DB, depositID uuid.UUID) int64 {
	t.Helper()

	var sum int64
	err := db.QueryRow(
		`SELECT COALESCE(SUM(amount), 0) FROM affiliate_commissions WHERE deposit_id = $1`, depositID,
	).Scan(&sum)
	if err != nil {
		t.Fatalf("sum commissions %s: %v", depositID, err)
	}
	return sum
}
