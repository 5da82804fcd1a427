// Package sms sends text messages through the VoiceTelekom HTTP API.
package sms

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sis-teknik/servicedesk/internal/notifications"
	"golang.org/x/time/rate"
)

const (
	maxCauseBytes    = 200
	defaultURL       = "https://smsvt.voicetelekom.com:9588/sms/create"
	defaultTimeout   = 30 * time.Second
	defaultTitle     = "SIS Teknik SMS"
	defaultRateLimit = 5.0
	userAgent        = "SIS-Teknik/1.0"
	validityMinutes  = 60
)

// Config holds gateway configuration. Credentials come from config, never code.
type Config struct {
	URL                string
	Username           string
	Password           string
	Sender             string
	Title              string
	Timeout            time.Duration
	InsecureSkipVerify bool
	RateLimit          float64 // messages per second
}

// Gateway implements notifications.Sender.
type Gateway struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ notifications.Sender = (*Gateway)(nil)

// NewGateway creates a new SMS gateway.
func NewGateway(config Config) (*Gateway, error) {
	if config.Username == "" || config.Password == "" {
		return nil, fmt.Errorf("sms username and password are required")
	}
	if config.Sender == "" {
		return nil, fmt.Errorf("sms sender is required")
	}
	if config.URL == "" {
		config.URL = defaultURL
	}
	if config.Title == "" {
		config.Title = defaultTitle
	}
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.RateLimit <= 0 {
		config.RateLimit = defaultRateLimit
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if config.InsecureSkipVerify {
		// The provider endpoint serves a certificate that does not validate.
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	return &Gateway{
		config: config,
		httpClient: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}, nil
}

type sendRequest struct {
	Type             int             `json:"type"`
	SendingType      int             `json:"sendingType"`
	Title            string          `json:"title"`
	Content          string          `json:"content"`
	Number           string          `json:"number"`
	Encoding         int             `json:"encoding"`
	Sender           string          `json:"sender"`
	PeriodicSettings json.RawMessage `json:"periodicSettings"`
	SendingDate      json.RawMessage `json:"sendingDate"`
	Validity         int             `json:"validity"`
	PushSettings     json.RawMessage `json:"pushSettings"`
}

type providerError struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type sendResponse struct {
	Err       *providerError  `json:"err"`
	Data      json.RawMessage `json:"data"`
	Status    *string         `json:"status"`
	Message   *string         `json:"message"`
	MessageID *string         `json:"message_id"`
}

var jsonNull = json.RawMessage("null")

// Send makes exactly one provider call. Retrying is up to the caller.
func (g *Gateway) Send(ctx context.Context, phone, text string) (*notifications.Receipt, error) {
	number := NormalizePhone(phone)
	if len(number) <= len(countryCode) {
		return nil, &notifications.ValidationError{Field: "phone", Message: "no digits"}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &notifications.ValidationError{Field: "text", Message: "empty message"}
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, &notifications.TransportError{Cause: "rate limiter: " + err.Error(), Err: err}
	}

	payload := sendRequest{
		Type:             1,
		SendingType:      0,
		Title:            g.config.Title,
		Content:          text,
		Number:           number,
		Encoding:         0,
		Sender:           g.config.Sender,
		PeriodicSettings: jsonNull,
		SendingDate:      jsonNull,
		Validity:         validityMinutes,
		PushSettings:     jsonNull,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.SetBasicAuth(g.config.Username, g.config.Password)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		cause := "request failed: " + err.Error()
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			cause = "request timed out: " + err.Error()
		}
		return nil, &notifications.TransportError{Cause: cause, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	return g.handleResponse(resp, number)
}

func (g *Gateway) handleResponse(resp *http.Response, number string) (*notifications.Receipt, error) {
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, &notifications.TransportError{StatusCode: resp.StatusCode, Cause: "read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &notifications.TransportError{
			StatusCode: resp.StatusCode,
			Cause:      fmt.Sprintf("unexpected status: %s", truncate(string(respBody))),
		}
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &notifications.TransportError{
			StatusCode: resp.StatusCode,
			Cause:      fmt.Sprintf("SMS response parse error: %v | Body: %s", err, truncate(string(respBody))),
			Err:        err,
		}
	}

	if parsed.Err != nil {
		return nil, &notifications.TransportError{
			StatusCode: resp.StatusCode,
			Cause:      fmt.Sprintf("SMS API Error [%d]: %s - %s", parsed.Err.Status, parsed.Err.Code, parsed.Err.Message),
		}
	}

	receipt := &notifications.Receipt{Status: "success", Message: "SMS sent"}
	if parsed.Status != nil {
		receipt.Status = *parsed.Status
	}
	if parsed.Message != nil {
		receipt.Message = *parsed.Message
	}
	if parsed.MessageID != nil {
		receipt.MessageID = *parsed.MessageID
	}

	slog.Debug("sms accepted by provider", "number", notifications.MaskPhone(number), "message_id", receipt.MessageID)
	return receipt, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// truncate bounds provider text kept in last_error, cutting on a rune boundary.
func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= maxCauseBytes {
		return s
	}
	cut := maxCauseBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
