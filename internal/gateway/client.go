package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/antonminaichev/laundry-booking/internal/logger"
	"github.com/antonminaichev/laundry-booking/internal/types/booking"
	"github.com/antonminaichev/laundry-booking/internal/types/payment"
)

const DefaultBaseURL = "https://api.paystack.co"

// Client talks to the hosted payment provider.
type Client struct {
	Client      *http.Client
	BaseURL     string
	SecretKey   string
	CallbackURL string
	Currency    string
	// Retries is how many extra attempts are made after a transport error or 5xx.
	Retries int
}

func NewClient(baseURL, secretKey, appURL, currency string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		Client:      &http.Client{Timeout: timeout},
		BaseURL:     strings.TrimRight(baseURL, "/"),
		SecretKey:   secretKey,
		CallbackURL: strings.TrimRight(appURL, "/") + "/payment/callback",
		Currency:    currency,
		Retries:     1,
	}
}

func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	meta := make(map[string]any, len(req.Metadata)+1)
	maps.Copy(meta, req.Metadata)
	if req.Draft != nil {
		encoded, err := booking.EncodeDraft(*req.Draft)
		if err != nil {
			return nil, err
		}
		meta[booking.DraftMetadataKey] = encoded
	}
	channels := req.Channels
	if len(channels) == 0 {
		channels = []string{payment.ChannelCard, payment.ChannelBank, payment.ChannelMobileMoney}
	}

	body, err := json.Marshal(initializeBody{
		Amount:      ToMinor(req.Amount),
		Email:       req.Email,
		Reference:   req.Reference,
		Currency:    c.Currency,
		CallbackURL: c.CallbackURL,
		Channels:    channels,
		Metadata:    meta,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal initialize: %w", err)
	}

	var env envelope[InitializeResult]
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &env); err != nil {
		return nil, err
	}
	if env.Data.AuthorizationURL == "" {
		return nil, &Error{StatusCode: http.StatusOK, Message: "missing authorization url"}
	}
	return &env.Data, nil
}

func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	var env envelope[Transaction]
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) GetTransaction(ctx context.Context, reference string) (*Transaction, error) {
	var env envelope[Transaction]
	if err := c.do(ctx, http.MethodGet, "/transaction/"+url.PathEscape(reference), nil, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}

func (c *Client) ListTransactions(ctx context.Context, page, perPage int) (*TransactionList, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 50
	}
	var env envelope[[]Transaction]
	path := fmt.Sprintf("/transaction?page=%d&perPage=%d", page, perPage)
	if err := c.do(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	list := &TransactionList{Transactions: env.Data}
	if env.Meta != nil {
		list.Meta = *env.Meta
	}
	return list, nil
}

// VerifySignature checks a webhook body against the provider secret.
func (c *Client) VerifySignature(body []byte, signature string) bool {
	return VerifySignature(body, signature, c.SecretKey)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.Retries; attempt++ {
		if attempt > 0 {
			logger.Log.Warn().Err(lastErr).Str("path", path).Int("attempt", attempt+1).Msg("retrying gateway call")
		}
		retry, err := c.once(ctx, method, path, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry || ctx.Err() != nil {
			break
		}
	}
	return lastErr
}

func (c *Client) once(ctx context.Context, method, path string, body []byte, out any) (bool, error) {
	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, rdr)
	if err != nil {
		return false, &Error{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(req)
	if err != nil {
		return true, &Error{Err: fmt.Errorf("do request: %w", err)}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return true, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	var head envelope[json.RawMessage]
	decodeErr := json.Unmarshal(raw, &head)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := head.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode >= 500, &Error{StatusCode: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return false, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", decodeErr)}
	}
	if !head.Status {
		return false, &Error{StatusCode: resp.StatusCode, Message: head.Message}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, &Error{StatusCode: resp.StatusCode, Err: fmt.Errorf("decode body: %w", err)}
	}
	return false, nil
}
