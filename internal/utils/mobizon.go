package utils

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"loanops/internal/config"
	"loanops/internal/logger"
)

const defaultMobizonURL = "https://api.mobizon.kz/service/message/sendsmsmessage"

// Client sends applicant SMS through Mobizon.
type Client struct {
	APIKey  string
	Sender  string
	BaseURL string
	DryRun  bool

	httpClient *http.Client
	log        logger.Logger
}

type SendSMSResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
}

func NewClient(cfg config.MobizonConfig, log logger.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = defaultMobizonURL
	}
	return &Client{
		APIKey:     cfg.APIKey,
		Sender:     cfg.SenderID,
		BaseURL:    base,
		DryRun:     cfg.DryRun,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log.WithFields(map[string]interface{}{"module": "sms"}),
	}
}

// SendSMS sends text to one recipient. In dry-run, or without an API key, the
// message is only logged.
func (c *Client) SendSMS(ctx context.Context, to, text string) (*SendSMSResponse, error) {
	if c.DryRun || c.APIKey == "" || c.APIKey == "dry-run" {
		c.log.Info("sms dry-run", map[string]interface{}{"to": to, "sender": c.Sender, "text": text})
		return &SendSMSResponse{Code: 0}, nil
	}

	form := url.Values{
		"apiKey":    {c.APIKey},
		"recipient": {strings.TrimPrefix(to, "+")},
		"text":      {text},
	}
	if c.Sender != "" {
		form.Set("from", c.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send sms request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	var result SendSMSResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("parse sms response (status %d): %w", resp.StatusCode, err)
	}
	if result.Code != 0 {
		return nil, fmt.Errorf("mobizon returned error code %d: %s", result.Code, result.Message)
	}
	c.log.Debug("sms sent", map[string]interface{}{"to": to, "message_id": result.Data.MessageID})
	return &result, nil
}
