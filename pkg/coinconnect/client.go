package coinconnect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gembotlabs/gembot-backend/pkg/config"
	pkgerrors "github.com/gembotlabs/gembot-backend/pkg/errors"
	"github.com/gembotlabs/gembot-backend/pkg/logger"
)

const (
	createUserPath = "/create_user_account/"
	balancePath    = "/get_account_balance/"
	withdrawPath   = "/withdraw/"

	// StatusOK and StatusNotOK are the provider's only reply states.
	StatusOK    = "OK"
	StatusNotOK = "NOTOK"

	currencyUSDT = "USDT"
)

var (
	errLoggerRequired = errors.New("coinconnect logger is required")

	// ErrNotConfigured is returned when no credentials are available.
	ErrNotConfigured = errors.New("coinconnect credentials not configured")
)

// Credentials carries the per-call API key pair. The settings store takes
// precedence over the env fallback, so they travel with each request.
type Credentials struct {
	Key    string `json:"cca_key"`
	Secret string `json:"cca_secret"`
}

// Configured reports whether the key half of the pair is present.
func (c Credentials) Configured() bool {
	return strings.TrimSpace(c.Key) != ""
}

// WalletCreateParams is the profile sent when provisioning a member wallet.
type WalletCreateParams struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Mobile    string `json:"mobile"`
}

// WithdrawParams describes an on-chain payout request.
type WithdrawParams struct {
	UserEmail   string
	UserAddress string
	ToAddress   string
	Amount      decimal.Decimal
	TxnID       string
}

// WithdrawResult is the provider's reply to a payout request.
type WithdrawResult struct {
	Status  string
	Message string
	TxnHash string
}

// OK reports whether the provider accepted the payout.
func (r *WithdrawResult) OK() bool {
	return r != nil && r.Status == StatusOK
}

// Client wraps the CoinConnect HTTP API with centralized auth, logging,
// timeouts, and error mapping.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	accountsBaseURL string
	cfg             config.CoinConnectConfig
	logger          *logger.Logger
}

// NewClient initializes the CoinConnect wrapper.
func NewClient(cfg config.CoinConnectConfig, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	return &Client{
		httpClient:      &http.Client{},
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		accountsBaseURL: strings.TrimRight(cfg.AccountsBaseURL, "/"),
		cfg:             cfg,
		logger:          logg,
	}, nil
}

// EnvCredentials returns the env-configured fallback key pair.
func (c *Client) EnvCredentials() Credentials {
	return Credentials{Key: c.cfg.Key, Secret: c.cfg.Secret}
}

type envelope struct {
	Data   any         `json:"data"`
	Header Credentials `json:"header"`
}

type reply struct {
	Status   string          `json:"status"`
	Message  json.RawMessage `json:"message"`
	Response struct {
		Data map[string]json.RawMessage `json:"data"`
	} `json:"response"`
}

// CreateWallet provisions a custodial wallet and returns its address.
func (c *Client) CreateWallet(ctx context.Context, creds Credentials, params WalletCreateParams) (string, error) {
	if !creds.Configured() {
		return "", ErrNotConfigured
	}

	c.log(ctx, "request", "create_wallet", map[string]any{"email": params.Email})

	res, err := c.post(ctx, c.accountsBaseURL+createUserPath, c.cfg.CallTimeout, envelope{Data: params, Header: creds})
	if err != nil {
		c.log(ctx, "error", "create_wallet", map[string]any{"error": err.Error()})
		return "", err
	}
	if res.Status != StatusOK {
		err := pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("coinconnect create wallet rejected: %s", res.messageText()))
		c.log(ctx, "error", "create_wallet", map[string]any{"error": err.Error()})
		return "", err
	}

	var msg struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(res.Message, &msg); err != nil || msg.Address == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "coinconnect create wallet reply missing address")
	}

	c.log(ctx, "response", "create_wallet", map[string]any{"address": msg.Address})
	return msg.Address, nil
}

// GetBalance fetches the USD value of the wallet at address.
func (c *Client) GetBalance(ctx context.Context, creds Credentials, address string) (decimal.Decimal, error) {
	if !creds.Configured() || address == "" {
		return decimal.Zero, ErrNotConfigured
	}

	payload := map[string]string{"address": address, "currency": currencyUSDT}
	res, err := c.post(ctx, c.baseURL+balancePath, c.cfg.CallTimeout, envelope{Data: payload, Header: creds})
	if err != nil {
		c.log(ctx, "error", "get_balance", map[string]any{"error": err.Error()})
		return decimal.Zero, err
	}
	if res.Status != StatusOK {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("coinconnect balance rejected: %s", res.messageText()))
	}

	raw, ok := res.Response.Data["balance_in_usd"]
	if !ok {
		return decimal.Zero, nil
	}
	balance, err := decodeDecimal(raw)
	if err != nil {
		return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "coinconnect balance reply malformed")
	}
	return balance, nil
}

// Withdraw submits an on-chain payout. A NOTOK reply is returned as a result,
// not an error, so the caller can surface the provider message.
func (c *Client) Withdraw(ctx context.Context, creds Credentials, params WithdrawParams) (*WithdrawResult, error) {
	if !creds.Configured() {
		return &WithdrawResult{Status: StatusNotOK, Message: "CoinConnect not configured"}, nil
	}

	payload := map[string]any{
		"currency":     currencyUSDT,
		"to_address":   params.ToAddress,
		"txn_id":       params.TxnID,
		"user_address": params.UserAddress,
		"user_email":   params.UserEmail,
		"value_in_usd": params.Amount,
	}
	c.log(ctx, "request", "withdraw", map[string]any{
		"txn_id": params.TxnID,
		"amount": params.Amount.String(),
	})

	res, err := c.post(ctx, c.baseURL+withdrawPath, c.cfg.WithdrawTimeout, envelope{Data: payload, Header: creds})
	if err != nil {
		c.log(ctx, "error", "withdraw", map[string]any{"error": err.Error()})
		return nil, err
	}

	result := &WithdrawResult{Status: res.Status, Message: res.messageText()}
	if raw, ok := res.Response.Data["txn_hash"]; ok {
		var hash string
		if err := json.Unmarshal(raw, &hash); err == nil {
			result.TxnHash = hash
		}
	}

	c.log(ctx, "response", "withdraw", map[string]any{
		"txn_id": params.TxnID,
		"status": result.Status,
	})
	return result, nil
}

func (c *Client) post(ctx context.Context, url string, timeout time.Duration, body envelope) (*reply, error) {
	encoded, err := json.Marshal(body)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding coinconnect request")
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(encoded))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "building coinconnect request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "calling coinconnect")
	}
	defer resp.Body.Close()

	var parsed reply
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decoding coinconnect reply")
	}
	return &parsed, nil
}

func (r *reply) messageText() string {
	if len(r.Message) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(r.Message, &text); err == nil {
		return text
	}
	return string(r.Message)
}

func decodeDecimal(raw json.RawMessage) (decimal.Decimal, error) {
	var value decimal.Decimal
	if err := json.Unmarshal(raw, &value); err == nil {
		return value, nil
	}
	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return decimal.Zero, fmt.Errorf("unexpected balance encoding %s", string(raw))
	}
	return decimal.NewFromString(text)
}

func (c *Client) log(ctx context.Context, phase, op string, fields map[string]any) {
	if c == nil || c.logger == nil {
		return
	}
	logFields := map[string]any{
		"operation": op,
		"phase":     phase,
	}
	for k, v := range fields {
		logFields[k] = c.redact(k, v)
	}
	ctx = c.logger.WithFields(ctx, logFields)
	switch phase {
	case "error":
		c.logger.Error(ctx, fmt.Sprintf("coinconnect %s", op), errors.New(fmt.Sprint(fields["error"])))
	default:
		c.logger.Info(ctx, fmt.Sprintf("coinconnect %s", phase))
	}
}

func (c *Client) redact(key string, value any) any {
	lower := strings.ToLower(key)
	for _, sensitive := range []string{"secret", "email", "mobile", "address"} {
		if strings.Contains(lower, sensitive) {
			return "[REDACTED]"
		}
	}
	return value
}
