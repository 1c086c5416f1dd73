// README: HTTP client for the hosted payment gateway. Amounts cross this
// boundary in minor units; everything inside the service stays in whole NGN.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chomp/internal/config"
)

// VerifyResult is the gateway's answer for a reference.
type VerifyResult struct {
	Status  string
	Channel string
	PaidAt  *time.Time
	Amount  int64 // whole NGN, converted back from minor units
}

type Gateway interface {
	Initialize(ctx context.Context, reference string, amount int64, email string) (authorizationURL string, err error)
	Verify(ctx context.Context, reference string) (VerifyResult, error)
}

// HTTPGateway talks to a Paystack-style REST API.
type HTTPGateway struct {
	baseURL     string
	secretKey   string
	callbackURL string
	client      *http.Client
}

func NewHTTPGateway(cfg config.GatewayConfig) *HTTPGateway {
	return &HTTPGateway{
		baseURL:     cfg.BaseURL,
		secretKey:   cfg.SecretKey,
		callbackURL: cfg.CallbackURL,
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

type initializeRequest struct {
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	Email       string `json:"email"`
	CallbackURL string `json:"callback_url"`
	Currency    string `json:"currency"`
}

type gatewayEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type initializeData struct {
	AuthorizationURL string `json:"authorization_url"`
}

type verifyData struct {
	Status  string  `json:"status"`
	Channel string  `json:"channel"`
	PaidAt  *string `json:"paid_at"`
	Amount  int64   `json:"amount"`
}

func (g *HTTPGateway) Initialize(ctx context.Context, reference string, amount int64, email string) (string, error) {
	body, err := json.Marshal(initializeRequest{
		Amount:      amount * 100,
		Reference:   reference,
		Email:       email,
		CallbackURL: g.callbackURL,
		Currency:    "NGN",
	})
	if err != nil {
		return "", err
	}

	var env gatewayEnvelope
	if err := g.do(ctx, http.MethodPost, "/transaction/initialize", bytes.NewReader(body), &env); err != nil {
		return "", err
	}
	if !env.Status {
		// the gateway's own message, verbatim
		return "", fmt.Errorf("gateway: %s", env.Message)
	}
	var data initializeData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return "", err
	}
	return data.AuthorizationURL, nil
}

func (g *HTTPGateway) Verify(ctx context.Context, reference string) (VerifyResult, error) {
	var env gatewayEnvelope
	if err := g.do(ctx, http.MethodGet, "/transaction/verify/"+reference, nil, &env); err != nil {
		return VerifyResult{}, err
	}
	if !env.Status {
		return VerifyResult{}, fmt.Errorf("gateway: %s", env.Message)
	}
	var data verifyData
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return VerifyResult{}, err
	}
	res := VerifyResult{
		Status:  data.Status,
		Channel: data.Channel,
		Amount:  data.Amount / 100,
	}
	if data.PaidAt != nil {
		if t, err := time.Parse(time.RFC3339, *data.PaidAt); err == nil {
			res.PaidAt = &t
		}
	}
	return res, nil
}

func (g *HTTPGateway) do(ctx context.Context, method, path string, body *bytes.Reader, out *gatewayEnvelope) error {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, g.baseURL+path, nil)
	}
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}
