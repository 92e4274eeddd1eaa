package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/josh-kwaku/pix-ledger/internal/handler"
	"github.com/josh-kwaku/pix-ledger/internal/logging"
)

// mock-gateway stands in for Flowpag during local runs. Charges and payouts are
// accepted immediately and settled by a signed callback to CALLBACK_URL.
// A pix key or payer document containing "reprove" or "reject" drives that outcome.

type gateway struct {
	callbackURL string
	secret      string
	delay       time.Duration
	client      *http.Client
}

func main() {
	_ = godotenv.Load()
	logging.Init("mock-gateway", "info", os.Getenv("APP_ENV"))

	delay, err := time.ParseDuration(envOr("CALLBACK_DELAY", "2s"))
	if err != nil {
		slog.Error("invalid CALLBACK_DELAY", "error", err)
		os.Exit(1)
	}

	g := &gateway{
		callbackURL: envOr("CALLBACK_URL", "http://localhost:8080/webhooks/flowpag"),
		secret:      os.Getenv("WEBHOOK_SECRET"),
		delay:       delay,
		client:      &http.Client{Timeout: 5 * time.Second},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.HandleFunc("POST /auth", g.auth)
	mux.HandleFunc("POST /deposit-pix", g.depositPix)
	mux.HandleFunc("POST /withdraw", g.withdraw)

	addr := ":" + envOr("PORT", "8081")
	slog.Info("mock gateway started", "addr", addr, "callback_url", g.callbackURL)
	if err := http.ListenAndServe(addr, mux); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func (g *gateway) auth(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID     string `json:"client_id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ClientID == "" || req.ClientSecret == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "invalid credentials"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": uuid.NewString(),
		"expires_in":   3600,
	})
}

func (g *gateway) depositPix(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount json.Number `json:"amount"`
		Payer  struct {
			Name     string `json:"name"`
			Document string `json:"document"`
		} `json:"payer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	id := uuid.NewString()
	slog.Info("charge opened", "external_id", id, "amount", req.Amount.String())
	go g.callback(id, outcomeFor(req.Payer.Document))

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "charge created",
		"payment": map[string]string{
			"id":           id,
			"status":       "pending",
			"code":         "00020126580014br.gov.bcb.pix0136" + id,
			"image_base64": "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg==",
		},
	})
}

func (g *gateway) withdraw(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount json.Number `json:"amount"`
		Pix    struct {
			PixType string `json:"pix_type"`
			PixKey  string `json:"pix_key"`
		} `json:"pix"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid body"})
		return
	}

	id := uuid.NewString()
	slog.Info("payout accepted", "external_id", id, "amount", req.Amount.String(), "pix_type", req.Pix.PixType)
	go g.callback(id, outcomeFor(req.Pix.PixKey))

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "payout accepted",
		"payment": map[string]string{
			"id":      id,
			"status":  "processing",
			"message": "awaiting settlement",
		},
	})
}

func (g *gateway) callback(externalID, status string) {
	time.Sleep(g.delay)

	body, err := json.Marshal(map[string]string{"id": externalID, "status": status})
	if err != nil {
		slog.Error("failed to encode callback", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.callbackURL, bytes.NewReader(body))
	if err != nil {
		slog.Error("failed to build callback", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Signature", handler.Sign(body, g.secret))

	resp, err := g.client.Do(req)
	if err != nil {
		slog.Error("callback failed", "external_id", externalID, "error", err)
		return
	}
	defer resp.Body.Close()
	slog.Info("callback delivered", "external_id", externalID, "status", status, "http_status", resp.StatusCode)
}

func outcomeFor(hint string) string {
	hint = strings.ToLower(hint)
	switch {
	case strings.Contains(hint, "reprove"):
		return "reproved"
	case strings.Contains(hint, "reject"):
		return "rejected"
	default:
		return "paid"
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
