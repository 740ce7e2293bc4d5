package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/resend/resend-go/v3"
)

type ResendMagicLinkSender struct {
	client     *resend.Client
	From       string
	AppBaseURL string
	VerifyPath string
}

// NewResendMagicLinkSender returns nil when the API key or sender address is
// missing, so callers can skip delivery.
func NewResendMagicLinkSender(apiKey string, from string, appBaseURL string) *ResendMagicLinkSender {
	if strings.TrimSpace(apiKey) == "" || strings.TrimSpace(from) == "" {
		return nil
	}
	return &ResendMagicLinkSender{
		client:     resend.NewClient(apiKey),
		From:       from,
		AppBaseURL: strings.TrimRight(appBaseURL, "/"),
		VerifyPath: "/auth/verify",
	}
}

func (s *ResendMagicLinkSender) SendMagicLink(ctx context.Context, email string, token string, expiresAt time.Time) error {
	if s == nil || s.client == nil {
		return errors.New("email sender not configured")
	}
	link := s.buildURL(token)
	minutes := int(time.Until(expiresAt).Round(time.Minute).Minutes())
	if minutes < 1 {
		minutes = 1
	}

	html := fmt.Sprintf(
		"<p>Use the link below to finish signing in to the radiology portal.</p>"+
			"<p><a href=\"%s\">Sign in</a></p>"+
			"<p>This link expires in %d minutes. If you did not request it, you can ignore this email.</p>",
		link, minutes,
	)
	text := fmt.Sprintf("Sign in to the radiology portal: %s\nThis link expires in %d minutes.", link, minutes)

	params := &resend.SendEmailRequest{
		From:    s.From,
		To:      []string{email},
		Subject: "Your sign-in link",
		Html:    html,
		Text:    text,
	}
	if _, err := s.client.Emails.SendWithContext(ctx, params); err != nil {
		return fmt.Errorf("send magic link email: %w", err)
	}
	return nil
}

func (s *ResendMagicLinkSender) buildURL(token string) string {
	if s.AppBaseURL == "" {
		return token
	}
	path := s.VerifyPath
	if path == "" {
		path = "/"
	}
	return fmt.Sprintf("%s%s?token=%s", s.AppBaseURL, path, url.QueryEscape(token))
}
