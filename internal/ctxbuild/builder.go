// Package ctxbuild implements the Context Builder (C2): it assembles a
// model.Context from the field map produced by the Wire Decoder.
package ctxbuild

import (
	"encoding/json"
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/junksamiad/argan-call-log/internal/model"
)

// ErrMissingRequiredField is returned when a required wire field is absent.
var ErrMissingRequiredField = errors.New("ctxbuild: missing required field")

var messageIDHeaderRe = regexp.MustCompile(`(?im)^Message-I[Dd]\s*:\s*(.+)$`)
var addrSpecAngleRe = regexp.MustCompile(`<([^<>@\s]+@[^<>\s]+)>`)
var addrSpecBareRe = regexp.MustCompile(`^[^<>@\s]+@[^<>\s]+$`)

// envelopeField is the JSON shape of the optional `envelope` wire field
// (§6): `{to: [addr...], from: addr}`.
type envelopeField struct {
	To   []string `json:"to"`
	From string    `json:"from"`
}

// Build assembles a Context Record from the decoded wire field map. Only
// `to` and `from` are required (§4.2); all other fields degrade to zero
// values when absent.
func Build(fields map[string]string, receivedAt time.Time) (*model.Context, error) {
	to, ok := fields["to"]
	if !ok || strings.TrimSpace(to) == "" {
		return nil, wrapMissing("to")
	}
	from, ok := fields["from"]
	if !ok || strings.TrimSpace(from) == "" {
		return nil, wrapMissing("from")
	}

	c := &model.Context{
		ToAddr:      normalizeAddr(extractAddrSpec(to)),
		FromRaw:     from,
		FromAddr:    normalizeAddr(extractAddrSpec(from)),
		Subject:     fields["subject"],
		TextBody:    fields["text"],
		HeadersBlob: fields["headers"],
		SPF:         fields["SPF"],
		DKIM:        fields["dkim"],
		SenderIP:    fields["sender_ip"],
		ReceivedAt:  receivedAt.UTC(),
		MessageID:   extractMessageID(fields["headers"]),
		Priority:    model.PriorityNormal,
	}

	if raw, ok := fields["attachments"]; ok && strings.TrimSpace(raw) != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil && n > 0 {
			c.HasAttachments = true
			c.AttachmentCount = n
		}
	}

	if raw, ok := fields["envelope"]; ok && strings.TrimSpace(raw) != "" {
		var env envelopeField
		if err := json.Unmarshal([]byte(raw), &env); err == nil {
			c.EnvelopeFrom = normalizeAddr(env.From)
		}
	}

	if raw, ok := fields["priority"]; ok {
		if p := parsePriority(raw); p != "" {
			c.Priority = p
		}
	}

	return c, nil
}

func wrapMissing(field string) error {
	return &missingFieldError{field: field}
}

type missingFieldError struct{ field string }

func (e *missingFieldError) Error() string {
	return "ctxbuild: missing required field " + e.field
}

func (e *missingFieldError) Unwrap() error { return ErrMissingRequiredField }

// extractMessageID case-insensitively scans a raw headers blob for
// Message-Id:/Message-ID: and returns its value, or the sentinel "unknown"
// (§3) when absent.
func extractMessageID(headers string) string {
	m := messageIDHeaderRe.FindStringSubmatch(headers)
	if m == nil {
		return "unknown"
	}
	v := strings.TrimSpace(m[1])
	if v == "" {
		return "unknown"
	}
	return v
}

// extractAddrSpec pulls the addr-spec out of a raw From/To header value by
// locating the last <...> pair or, if absent, by stripping quotes (§4.2).
func extractAddrSpec(raw string) string {
	raw = strings.TrimSpace(raw)
	matches := addrSpecAngleRe.FindAllStringSubmatch(raw, -1)
	if len(matches) > 0 {
		return matches[len(matches)-1][1]
	}
	stripped := strings.Trim(raw, `"'`)
	stripped = strings.TrimSpace(stripped)
	if addrSpecBareRe.MatchString(stripped) {
		return stripped
	}
	return stripped
}

func normalizeAddr(addr string) string {
	return strings.ToLower(strings.TrimSpace(addr))
}

func parsePriority(raw string) model.Priority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "low":
		return model.PriorityLow
	case "normal":
		return model.PriorityNormal
	case "high":
		return model.PriorityHigh
	case "urgent":
		return model.PriorityUrgent
	}
	return ""
}
