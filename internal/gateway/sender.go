// Package gateway delivers one rendered message to one recipient through
// an ordered list of messaging gateway instances.
//
// The first enabled instance that accepts the message wins. When every
// instance fails, the outcome carries a pre-filled deep link an operator
// can open by hand — a human escape valve recorded as failed, never as a
// third automated channel.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/safegreen/outreach-engine/internal/config"
	"github.com/safegreen/outreach-engine/internal/pkg/httpretry"
	"github.com/safegreen/outreach-engine/internal/pkg/logger"
)

// Send outcomes. Assist links ride on failed outcomes, they never count
// as sent.
const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Outcome reports one dispatch attempt across the instance chain.
type Outcome struct {
	Status     string   `json:"status"`
	Channel    string   `json:"channel,omitempty"`   // instance that accepted
	Attempted  []string `json:"attempted,omitempty"` // every instance tried, in order
	Detail     string   `json:"detail,omitempty"`
	AssistLink string   `json:"assist_link,omitempty"`
}

// Sender fans a message across gateway instances with per-attempt timeouts
// and a per-phone cooldown.
type Sender struct {
	instances []config.GatewayConfig
	client    httpretry.HTTPDoer
	cooldown  Cooldown
}

// NewSender builds a sender over the configured instances, tried in
// declaration order. client may be nil, in which case a retrying client
// with tight backoff is used.
func NewSender(instances []config.GatewayConfig, client httpretry.HTTPDoer, cooldown Cooldown) *Sender {
	if client == nil {
		client = httpretry.NewRetryClientWithDelays(nil, 1, 200*time.Millisecond, 2*time.Second)
	}
	return &Sender{instances: instances, client: client, cooldown: cooldown}
}

type sendPayload struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

// Send delivers message to phone. The cooldown is checked first; a send
// inside the window returns ErrCooldownActive (wrapped) and no outcome.
func (s *Sender) Send(ctx context.Context, phone, message string) (*Outcome, error) {
	if err := s.cooldown.Reserve(ctx, phone); err != nil {
		return nil, err
	}

	out := &Outcome{Status: StatusFailed}
	var lastErr string
	for _, inst := range s.instances {
		if !inst.Enabled {
			continue
		}
		out.Attempted = append(out.Attempted, inst.Name)

		err := s.attempt(ctx, inst, phone, message)
		if err == nil {
			out.Status = StatusSent
			out.Channel = inst.Name
			return out, nil
		}
		lastErr = err.Error()
		logger.Warn("gateway attempt failed", "gateway", inst.Name, "phone", phone, "error", lastErr)

		if ctx.Err() != nil {
			break
		}
	}

	if len(out.Attempted) == 0 {
		out.Detail = "no gateway instance enabled"
	} else {
		out.Detail = "all gateways failed: " + lastErr
	}
	out.AssistLink = AssistLink(phone, message)
	return out, nil
}

// attempt posts the message to one instance within its configured timeout.
func (s *Sender) attempt(ctx context.Context, inst config.GatewayConfig, phone, message string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, inst.Timeout())
	defer cancel()

	body, err := json.Marshal(sendPayload{Number: phone, Message: message})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, strings.TrimRight(inst.BaseURL, "/")+"/send-message", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if inst.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+inst.APIKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", inst.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s: status %d: %s", inst.Name, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// AssistLink builds the pre-filled manual deep link for a phone/message.
func AssistLink(phone, message string) string {
	return "https://wa.me/" + phone + "?text=" + url.QueryEscape(message)
}
