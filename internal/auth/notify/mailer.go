// Package notify sends account emails through the club's mail relay. Email
// delivery is a fire-and-forget side effect: callers treat failures as
// non-fatal because account state never depends on a message arriving.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// Mailer delivers invitation and verification emails.
type Mailer interface {
	SendInvitation(ctx context.Context, email, token string, expiresAt time.Time) error
	SendVerification(ctx context.Context, email, token string, expiresAt time.Time) error
}

// LogMailer is the development mailer: it logs the links it would have sent.
type LogMailer struct {
	Logger *slog.Logger
	AppURL string
}

func (m *LogMailer) SendInvitation(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.Logger.Info("invitation email (dev mode, not sent)",
		"to", email,
		"link", registerLink(m.AppURL, token),
		"expires_at", expiresAt,
	)
	return nil
}

func (m *LogMailer) SendVerification(ctx context.Context, email, token string, expiresAt time.Time) error {
	m.Logger.Info("verification email (dev mode, not sent)",
		"to", email,
		"link", verifyLink(m.AppURL, token),
		"expires_at", expiresAt,
	)
	return nil
}

// HTTPMailer posts send requests to the mail relay, authenticating with a
// short-lived signed service token.
type HTTPMailer struct {
	BaseURL string
	AppURL  string
	Tokens  *ServiceTokenSource
	Client  *http.Client
}

type sendRequest struct {
	To        string            `json:"to"`
	Template  string            `json:"template"`
	Variables map[string]string `json:"variables"`
}

func (m *HTTPMailer) SendInvitation(ctx context.Context, email, token string, expiresAt time.Time) error {
	return m.send(ctx, sendRequest{
		To:       email,
		Template: "staff-invitation",
		Variables: map[string]string{
			"register_link": registerLink(m.AppURL, token),
			"expires_at":    expiresAt.UTC().Format(time.RFC3339),
		},
	})
}

func (m *HTTPMailer) SendVerification(ctx context.Context, email, token string, expiresAt time.Time) error {
	return m.send(ctx, sendRequest{
		To:       email,
		Template: "verify-email",
		Variables: map[string]string{
			"verify_link": verifyLink(m.AppURL, token),
			"expires_at":  expiresAt.UTC().Format(time.RFC3339),
		},
	})
}

func (m *HTTPMailer) send(ctx context.Context, payload sendRequest) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.BaseURL+"/v1/send", bytes.NewReader(body))
	if err != nil {
		return err
	}

	serviceToken, err := m.Tokens.Token()
	if err != nil {
		return fmt.Errorf("mint service token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+serviceToken)
	req.Header.Set("Content-Type", "application/json")

	client := m.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("mail relay returned %d", resp.StatusCode)
	}
	return nil
}

func registerLink(appURL, token string) string {
	return fmt.Sprintf("%s/register?token=%s", appURL, url.QueryEscape(token))
}

func verifyLink(appURL, token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s", appURL, url.QueryEscape(token))
}
