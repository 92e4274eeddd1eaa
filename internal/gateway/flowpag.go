package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/josh-kwaku/pix-ledger/internal/domain"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
	"github.com/josh-kwaku/pix-ledger/internal/money"
)

const (
	defaultTimeout = 10 * time.Second
	tokenSkew      = 30 * time.Second
)

type Config struct {
	BaseURL           string
	ClientID          string
	ClientSecret      string
	Timeout           time.Duration
	DepositExpiration time.Duration
}

type observer interface {
	ObserveGateway(operation, outcome string, since time.Time)
}

type Payer struct {
	Name     string
	Document string
}

type Receiver struct {
	Name     string
	Document string
}

type Charge struct {
	ExternalID   string
	Status       string
	PaymentCode  string
	QRCodeBase64 string
}

type Payout struct {
	ExternalID string
	Status     string
	Message    string
}

// Flowpag talks to the Flowpag PIX API. Requests authenticate with a bearer
// token obtained from client credentials and cached until shortly before it expires.
type Flowpag struct {
	cfg        Config
	httpClient *http.Client
	metrics    observer

	mu        sync.Mutex
	token     string
	expiresAt time.Time
	now       func() time.Time
}

func NewFlowpag(cfg Config, metrics observer) *Flowpag {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Flowpag{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		metrics: metrics,
		now:     time.Now,
	}
}

type person struct {
	Name     string `json:"name"`
	Document string `json:"document"`
}

type depositRequest struct {
	Amount     json.Number `json:"amount"`
	Expiration int         `json:"expiration,omitempty"`
	Payer      person      `json:"payer"`
}

type depositResponse struct {
	Message string `json:"message"`
	Payment struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Code        string `json:"code"`
		ImageBase64 string `json:"image_base64"`
	} `json:"payment"`
}

type pixTarget struct {
	PixType string `json:"pix_type"`
	PixKey  string `json:"pix_key"`
}

type withdrawRequest struct {
	Amount   json.Number `json:"amount"`
	Receiver person      `json:"receiver"`
	Pix      pixTarget   `json:"pix"`
}

type withdrawResponse struct {
	Message string `json:"message"`
	Payment struct {
		ID      string `json:"id"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"payment"`
}

type authRequest struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
}

type authResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// OpenPixCharge opens a PIX charge for amount cents payable by payer.
func (c *Flowpag) OpenPixCharge(ctx context.Context, amount int64, payer Payer) (*Charge, error) {
	req := depositRequest{
		Amount:     json.Number(money.Format(amount)),
		Expiration: int(c.cfg.DepositExpiration.Seconds()),
		Payer:      person{Name: payer.Name, Document: payer.Document},
	}

	var resp depositResponse
	if err := c.call(ctx, "deposit_pix", "/deposit-pix", req, &resp); err != nil {
		return nil, fmt.Errorf("OpenPixCharge: %w", err)
	}
	if resp.Payment.ID == "" {
		return nil, fmt.Errorf("OpenPixCharge: response without payment id: %w", domain.ErrGatewayAmbiguous)
	}

	return &Charge{
		ExternalID:   resp.Payment.ID,
		Status:       resp.Payment.Status,
		PaymentCode:  resp.Payment.Code,
		QRCodeBase64: resp.Payment.ImageBase64,
	}, nil
}

// PayoutPix sends amount cents to the given PIX key. A returned error wraps
// domain.ErrGatewayRejected when the gateway refused the payout,
// domain.ErrGatewayNotSent when the payout request never went out and
// domain.ErrGatewayAmbiguous when the outcome is unknown.
func (c *Flowpag) PayoutPix(ctx context.Context, amount int64, receiver Receiver, pixKey string, pixType domain.PixType) (*Payout, error) {
	req := withdrawRequest{
		Amount:   json.Number(money.Format(amount)),
		Receiver: person{Name: receiver.Name, Document: receiver.Document},
		Pix:      pixTarget{PixType: string(pixType), PixKey: pixKey},
	}

	var resp withdrawResponse
	if err := c.call(ctx, "withdraw", "/withdraw", req, &resp); err != nil {
		return nil, fmt.Errorf("PayoutPix: %w", err)
	}
	if resp.Payment.ID == "" {
		return nil, fmt.Errorf("PayoutPix: response without payment id: %w", domain.ErrGatewayAmbiguous)
	}

	return &Payout{
		ExternalID: resp.Payment.ID,
		Status:     strings.ToLower(resp.Payment.Status),
		Message:    resp.Payment.Message,
	}, nil
}

func (c *Flowpag) call(ctx context.Context, op, path string, body, out any) error {
	start := c.now()
	outcome := "ok"
	defer func() {
		if c.metrics != nil {
			c.metrics.ObserveGateway(op, outcome, start)
		}
	}()

	err := c.authorized(ctx, path, body, out)
	if errors.Is(err, errUnauthorized) {
		c.invalidate()
		err = c.authorized(ctx, path, body, out)
	}

	switch {
	case err == nil:
	case errors.Is(err, domain.ErrGatewayRejected), errors.Is(err, errUnauthorized):
		outcome = "rejected"
	case errors.Is(err, domain.ErrGatewayNotSent):
		outcome = "not_sent"
	default:
		outcome = "ambiguous"
	}
	if errors.Is(err, errUnauthorized) {
		return fmt.Errorf("%w: %w", domain.ErrGatewayRejected, err)
	}
	return err
}

var errUnauthorized = errors.New("gateway unauthorized")

func (c *Flowpag) authorized(ctx context.Context, path string, body, out any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrGatewayRejected) {
			return err
		}
		// Without a token the request to path was never made.
		return fmt.Errorf("%s: %w: %v", path, domain.ErrGatewayNotSent, err)
	}
	return c.post(ctx, path, token, body, out)
}

func (c *Flowpag) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Before(c.expiresAt) {
		return c.token, nil
	}

	var resp authResponse
	req := authRequest{ClientID: c.cfg.ClientID, ClientSecret: c.cfg.ClientSecret}
	if err := c.post(ctx, "/auth", "", req, &resp); err != nil {
		return "", fmt.Errorf("accessToken: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("accessToken: empty token: %w", domain.ErrGatewayRejected)
	}

	ttl := time.Duration(resp.ExpiresIn)*time.Second - tokenSkew
	if ttl <= 0 {
		ttl = time.Duration(resp.ExpiresIn) * time.Second
	}
	c.token = resp.AccessToken
	c.expiresAt = c.now().Add(ttl)
	return c.token, nil
}

func (c *Flowpag) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func (c *Flowpag) post(ctx context.Context, path, token string, body, out any) error {
	log := logging.FromContext(ctx)

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("post %s: marshal: %w: %w", path, domain.ErrGatewayNotSent, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("post %s: build request: %w: %w", path, domain.ErrGatewayNotSent, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		log.Warn("gateway request failed", "path", path, "duration_ms", time.Since(start).Milliseconds(), "error", err)
		return fmt.Errorf("post %s: %w: %w", path, domain.ErrGatewayAmbiguous, err)
	}
	defer resp.Body.Close()

	log.Info("gateway response received",
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("post %s: read body: %w: %w", path, domain.ErrGatewayAmbiguous, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && token != "":
		return errUnauthorized
	case resp.StatusCode >= 500:
		return fmt.Errorf("post %s: status %d: %s: %w", path, resp.StatusCode, snippet(respBody), domain.ErrGatewayAmbiguous)
	case resp.StatusCode >= 400:
		return fmt.Errorf("post %s: status %d: %s: %w", path, resp.StatusCode, snippet(respBody), domain.ErrGatewayRejected)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("post %s: unexpected status %d: %w", path, resp.StatusCode, domain.ErrGatewayAmbiguous)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("post %s: decode: %w: %w", path, domain.ErrGatewayAmbiguous, err)
	}
	return nil
}

func snippet(b []byte) string {
	if len(b) > 256 {
		b = b[:256]
	}
	return strings.TrimSpace(string(b))
}
