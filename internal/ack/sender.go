// Package ack implements the Acknowledgment Sender (C11): composes a
// personalized acknowledgment and hands it to the external mail provider
// with bounded exponential-backoff retry, grounded on the shared
// resilience.Backoff helper and the teacher's HTTP-client-per-collaborator
// idiom.
package ack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/sony/gobreaker"

	"github.com/junksamiad/argan-call-log/internal/model"
	"github.com/junksamiad/argan-call-log/internal/resilience"
)

// Template holds the configured text/HTML body templates and the
// installation short name used in the acknowledgment subject.
type Template struct {
	TextBody         string
	HTMLBody         string
	InstallShortName string
}

// Sender composes and dispatches acknowledgment emails.
type Sender struct {
	endpoint  string
	apiKey    string
	fromAddr  string
	ccAddr    string
	httpc     *http.Client
	breaker   *gobreaker.CircuitBreaker
	backoff   resilience.Backoff
	initDelay time.Duration
}

// New builds a Sender. It takes no retry settings: the retry schedule is
// the fixed 2s/4s/6s list (§4.11) rather than a series computed from
// mail.retries and mail.base_delay_ms.
func New(endpoint, apiKey, fromAddr, ccAddr string, deadline time.Duration) *Sender {
	return &Sender{
		endpoint:  endpoint,
		apiKey:    apiKey,
		fromAddr:  fromAddr,
		ccAddr:    ccAddr,
		httpc:     &http.Client{Timeout: deadline},
		breaker:   resilience.NewBreaker("mail"),
		backoff:   resilience.NewFixed(2*time.Second, 4*time.Second, 6*time.Second),
		initDelay: 500 * time.Millisecond,
	}
}

type personalization struct {
	To []addr `json:"to"`
	CC []addr `json:"cc,omitempty"`
}

type addr struct {
	Email string `json:"email"`
}

type content struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

type sendRequest struct {
	Personalizations []personalization `json:"personalizations"`
	From              addr              `json:"from"`
	ReplyTo           addr              `json:"reply_to"`
	Subject           string            `json:"subject"`
	Content           []content         `json:"content"`
}

// Compose builds the subject/text/html body for an acknowledgment (§4.11).
func Compose(tmpl Template, ticketID string, senderFirst string, senderConfidence float64, ctxRecord *model.Context) (subject, textBody, htmlBody string) {
	greeting := "Hello"
	if senderConfidence >= 0.5 && senderFirst != "" {
		greeting = "Hi " + senderFirst
	}
	subject = fmt.Sprintf("[%s] %s - Call Logged", ticketID, tmpl.InstallShortName)

	replacer := strings.NewReplacer(
		"{first_name}", greeting,
		"{ticket_id}", ticketID,
		"{original_subject}", ctxRecord.Subject,
		"{original_body}", ctxRecord.TextBody,
		"{priority}", string(ctxRecord.Priority),
	)
	textBody = replacer.Replace(tmpl.TextBody)
	htmlBody = replacer.Replace(tmpl.HTMLBody)
	return
}

// Send dispatches the acknowledgment with up to 3 retries at 2s/4s/6s,
// preceded by a 500ms initial delay (§4.11). Success is a 2xx response.
func (s *Sender) Send(ctx context.Context, toAddr, subject, textBody, htmlBody string) error {
	select {
	case <-time.After(s.initDelay):
	case <-ctx.Done():
		return ctx.Err()
	}

	payload := sendRequest{
		Personalizations: []personalization{{
			To: []addr{{Email: toAddr}},
			CC: ccList(s.ccAddr),
		}},
		From:    addr{Email: s.fromAddr},
		ReplyTo: addr{Email: toAddr},
		Subject: subject,
		Content: []content{
			{Type: "text/plain", Value: textBody},
			{Type: "text/html", Value: htmlBody},
		},
	}
	body, err := gojson.Marshal(payload)
	if err != nil {
		return err
	}

	retryable := func(err error) bool { return err != nil }
	return resilience.Do(ctx, s.backoff, retryable, func(attempt int) error {
		_, err := s.breaker.Execute(func() (interface{}, error) {
			return nil, s.post(ctx, body)
		})
		return err
	})
}

func (s *Sender) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ack: mail provider status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Ping performs the lightweight mail-provider reachability check run once
// at startup (§6 exit code 3 path, surfaced by GET /health): a bare HEAD
// request, bypassing the breaker and retry schedule.
func (s *Sender) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := s.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

func ccList(ccAddr string) []addr {
	if ccAddr == "" {
		return nil
	}
	return []addr{{Email: ccAddr}}
}
