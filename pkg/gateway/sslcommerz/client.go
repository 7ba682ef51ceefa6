package sslcommerz

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/medicura/medicura-backend/pkg/config"
	pkgerrors "github.com/medicura/medicura-backend/pkg/errors"
	"github.com/medicura/medicura-backend/pkg/logger"
	"github.com/medicura/medicura-backend/pkg/metrics"
)

const (
	statusSuccess   = "SUCCESS"
	statusValid     = "VALID"
	statusValidated = "VALIDATED"
)

var (
	errStoreIDRequired  = errors.New("gateway store id is required")
	errPasswordRequired = errors.New("gateway store password is required")
	errLoggerRequired   = errors.New("gateway logger is required")
)

// SessionRequest carries the fields needed to open a hosted payment session.
type SessionRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	ProductName   string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
}

// Session is the gateway's answer to a session-creation call.
type Session struct {
	GatewayPageURL string
	SessionKey     string
}

// Validation is the gateway's answer to a server-side validation call. The
// transaction id and amount echoed back here are the authoritative values;
// callers must cross-check them against their own records instead of trusting
// callback parameters.
type Validation struct {
	Status        string
	TransactionID string
	ValidationID  string
	Amount        decimal.Decimal
	Currency      string
}

// Valid reports whether the gateway declared the transaction good.
func (v Validation) Valid() bool {
	return v.Status == statusValid || v.Status == statusValidated
}

// Client talks to an SSLCommerz-style gateway over its session and validation
// endpoints.
type Client struct {
	cfg     config.GatewayConfig
	http    *http.Client
	logger  *logger.Logger
	metrics *metrics.PipelineMetrics
}

// NewClient validates the gateway credentials and returns a ready client.
// pm may be a no-op metrics handle.
func NewClient(cfg config.GatewayConfig, pm *metrics.PipelineMetrics, logg *logger.Logger) (*Client, error) {
	if logg == nil {
		return nil, errLoggerRequired
	}
	if strings.TrimSpace(cfg.StoreID) == "" {
		return nil, errStoreIDRequired
	}
	if strings.TrimSpace(cfg.StorePassword) == "" {
		return nil, errPasswordRequired
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		logger:  logg,
		metrics: pm,
	}, nil
}

type sessionResponse struct {
	Status         string `json:"status"`
	FailedReason   string `json:"failedreason"`
	SessionKey     string `json:"sessionkey"`
	GatewayPageURL string `json:"GatewayPageURL"`
}

// CreateSession opens a hosted checkout session and returns the redirect URL.
func (c *Client) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	form := url.Values{}
	form.Set("store_id", c.cfg.StoreID)
	form.Set("store_passwd", c.cfg.StorePassword)
	form.Set("tran_id", req.TransactionID)
	form.Set("total_amount", req.Amount.StringFixed(2))
	form.Set("currency", req.Currency)
	form.Set("success_url", c.cfg.CallbackBase+"/api/v1/payments/success")
	form.Set("fail_url", c.cfg.CallbackBase+"/api/v1/payments/fail")
	form.Set("cancel_url", c.cfg.CallbackBase+"/api/v1/payments/cancel")
	form.Set("product_name", req.ProductName)
	form.Set("product_category", "Medical")
	form.Set("product_profile", "general")
	form.Set("cus_name", req.CustomerName)
	form.Set("cus_email", req.CustomerEmail)
	form.Set("cus_phone", req.CustomerPhone)
	form.Set("shipping_method", "NO")
	form.Set("num_of_item", "1")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.SessionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build gateway session request")
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var parsed sessionResponse
	if err := c.do(ctx, "session", httpReq, &parsed); err != nil {
		return nil, err
	}

	if parsed.Status != statusSuccess {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway refused payment session").
			WithDetails(map[string]any{"status": parsed.Status, "reason": parsed.FailedReason})
	}
	if parsed.GatewayPageURL == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "gateway session missing redirect url")
	}

	ctx = c.logger.WithTransactionID(ctx, req.TransactionID)
	c.logger.Info(ctx, "gateway session created")

	return &Session{
		GatewayPageURL: parsed.GatewayPageURL,
		SessionKey:     parsed.SessionKey,
	}, nil
}

type validationResponse struct {
	Status   string `json:"status"`
	TranID   string `json:"tran_id"`
	ValID    string `json:"val_id"`
	Amount   string `json:"amount"`
	Currency string `json:"currency"`
}

// Validate re-checks a transaction with the gateway's validation endpoint.
// The call is a side-effect-free query and safe to repeat.
func (c *Client) Validate(ctx context.Context, validationID string) (*Validation, error) {
	if strings.TrimSpace(validationID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation id required")
	}

	query := url.Values{}
	query.Set("val_id", validationID)
	query.Set("store_id", c.cfg.StoreID)
	query.Set("store_passwd", c.cfg.StorePassword)
	query.Set("format", "json")

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.ValidationURL+"?"+query.Encode(), nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "build gateway validation request")
	}

	var parsed validationResponse
	if err := c.do(ctx, "validate", httpReq, &parsed); err != nil {
		return nil, err
	}

	amount := decimal.Zero
	if parsed.Amount != "" {
		amount, err = decimal.NewFromString(parsed.Amount)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "parse validated amount")
		}
	}

	return &Validation{
		Status:        parsed.Status,
		TransactionID: parsed.TranID,
		ValidationID:  parsed.ValID,
		Amount:        amount,
		Currency:      parsed.Currency,
	}, nil
}

func (c *Client) do(ctx context.Context, call string, req *http.Request, dest any) error {
	start := time.Now()
	resp, err := c.http.Do(req)
	c.metrics.ObserveGateway(call, time.Since(start).Seconds())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "call payment gateway")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read gateway response")
	}
	if resp.StatusCode != http.StatusOK {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("gateway returned status %d", resp.StatusCode))
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode gateway response")
	}
	return nil
}
