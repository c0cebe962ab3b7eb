package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultTimeout = 15 * time.Second

// BrevoClient sends transactional email through the Brevo HTTP API.
// See https://developers.brevo.com/reference/sendtransacemail.
type BrevoClient struct {
	APIKey      string
	BaseURL     string
	SenderEmail string
	SenderName  string
	Subject     string
	HTTPClient  *http.Client
}

// NewBrevoClient returns a client using apiKey; baseURL defaults to the public endpoint.
func NewBrevoClient(apiKey, baseURL, senderEmail, senderName, subject string) *BrevoClient {
	if baseURL == "" {
		baseURL = "https://api.brevo.com/v3/smtp/email"
	}
	return &BrevoClient{
		APIKey:      apiKey,
		BaseURL:     baseURL,
		SenderEmail: senderEmail,
		SenderName:  senderName,
		Subject:     subject,
		HTTPClient:  &http.Client{Timeout: defaultTimeout},
	}
}

type brevoAddress struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

type brevoRequest struct {
	Sender      brevoAddress   `json:"sender"`
	To          []brevoAddress `json:"to"`
	Subject     string         `json:"subject"`
	HTMLContent string         `json:"htmlContent"`
}

// SendOTP posts the passcode email. Any non-2xx response is an error.
func (c *BrevoClient) SendOTP(ctx context.Context, msg OTPMessage) error {
	if c.APIKey == "" {
		return fmt.Errorf("mail: brevo API key not configured")
	}
	raw, err := json.Marshal(brevoRequest{
		Sender:      brevoAddress{Email: c.SenderEmail, Name: c.SenderName},
		To:          []brevoAddress{{Email: msg.To}},
		Subject:     c.Subject,
		HTMLContent: renderOTPBody(msg),
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("api-key", c.APIKey)
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("mail: brevo request failed status=%d body=%s", resp.StatusCode, string(b))
	}
	return nil
}
