package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/voucherly/voucher-engine/internal/config"
)

// subjects maps template references to mail subjects. Template bodies proper
// are rendered by the (external) template service; this dispatcher only
// formats the substitution data it was handed.
var subjects = map[string]string{
	"voucher-redeemed": "Your voucher has been redeemed",
	"voucher-issued":   "A voucher has been issued to you",
}

// SMTPDispatcher delivers notifications through a plain SMTP relay. An
// outbound rate limiter keeps bursts of redemptions from tripping the
// relay's own throttling.
type SMTPDispatcher struct {
	cfg     config.SMTPConfig
	limiter *rate.Limiter
}

// NewSMTPDispatcher creates a dispatcher for the configured relay.
func NewSMTPDispatcher(cfg config.SMTPConfig) *SMTPDispatcher {
	return &SMTPDispatcher{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.SendPerSecond), cfg.SendBurst),
	}
}

// Send implements Dispatcher over SMTP.
func (d *SMTPDispatcher) Send(ctx context.Context, orgID, templateRef, recipient string, data map[string]string) (string, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("wait for send slot: %w", err)
	}

	subject, ok := subjects[templateRef]
	if !ok {
		subject = templateRef
	}

	sender := d.cfg.Sender
	if sender == "" {
		sender = d.cfg.User
	}

	var body strings.Builder
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&body, "%s: %s\r\n", strings.ReplaceAll(k, "_", " "), data[k])
	}

	msg := []byte(
		"From: " + sender + "\r\n" +
			"To: " + recipient + "\r\n" +
			"Subject: " + subject + "\r\n" +
			"MIME-Version: 1.0\r\n" +
			"Content-Type: text/plain; charset=UTF-8\r\n" +
			"\r\n" +
			body.String(),
	)

	addr := fmt.Sprintf("%s:%d", d.cfg.Host, d.cfg.Port)
	auth := smtp.PlainAuth("", d.cfg.User, d.cfg.Password, d.cfg.Host)
	if err := smtp.SendMail(addr, auth, sender, []string{recipient}, msg); err != nil {
		return "", fmt.Errorf("smtp send to %s: %w", recipient, err)
	}

	return fmt.Sprintf("smtp-%s-%d", orgID, time.Now().UnixNano()), nil
}
