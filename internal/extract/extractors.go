// Package extract implements the two LLM-backed Extractors (C7):
// sender-name and organization, each with a deterministic fallback that
// never fails the pipeline, grounded on the shared llm.Client abstraction.
package extract

import (
	"context"
	"strings"
	"time"

	"github.com/junksamiad/argan-call-log/internal/llm"
)

// SenderName is the sender-name extractor's output shape (§4.7).
type SenderName struct {
	FullName   string  `json:"full_name"`
	First      string  `json:"first"`
	Last       string  `json:"last"`
	Confidence float64 `json:"confidence"`
}

// Organization is the organization extractor's output shape (§4.7).
type Organization struct {
	OrgName string `json:"org_name"`
}

const extractDeadline = 30 * time.Second

var senderNameSchemaJSON = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"full_name":  map[string]interface{}{"type": "string"},
		"first":      map[string]interface{}{"type": "string"},
		"last":       map[string]interface{}{"type": "string"},
		"confidence": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
	},
}

var orgSchemaJSON = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"org_name": map[string]interface{}{"type": "string"},
	},
}

var senderNameSchema = llm.MustCompileSchema("sender-name-response", senderNameSchemaJSON)
var orgSchema = llm.MustCompileSchema("org-response", orgSchemaJSON)

// Extractors bundles both extractors behind one LLM client, matching the
// single "LLM call" abstraction's intent: different prompts and schemas
// passed through the same function.
type Extractors struct {
	llmClient  *llm.Client
	llmEnabled bool
}

func New(llmClient *llm.Client, llmEnabled bool) *Extractors {
	return &Extractors{llmClient: llmClient, llmEnabled: llmEnabled}
}

// SenderName extracts the sender's display name from body, falling back to
// a title-cased reconstruction from the local part of fromAddr. Never
// returns an error.
func (e *Extractors) SenderName(ctx context.Context, body, fromAddr string) SenderName {
	if e.llmEnabled && e.llmClient != nil {
		callCtx, cancel := context.WithTimeout(ctx, extractDeadline)
		var resp SenderName
		err := e.llmClient.Call(callCtx, senderNameSystemPrompt, body, senderNameSchema, senderNameSchemaJSON, &resp)
		cancel()
		if err == nil && (resp.FullName != "" || resp.First != "") {
			return resp
		}
	}
	return fallbackSenderName(fromAddr)
}

// Organization extracts an organization name from body, falling back to
// empty string. Never returns an error.
func (e *Extractors) Organization(ctx context.Context, body string) Organization {
	if e.llmEnabled && e.llmClient != nil {
		callCtx, cancel := context.WithTimeout(ctx, extractDeadline)
		var resp Organization
		err := e.llmClient.Call(callCtx, orgSystemPrompt, body, orgSchema, orgSchemaJSON, &resp)
		cancel()
		if err == nil {
			return resp
		}
	}
	return Organization{}
}

func fallbackSenderName(fromAddr string) SenderName {
	local := fromAddr
	if i := strings.IndexByte(fromAddr, '@'); i >= 0 {
		local = fromAddr[:i]
	}
	parts := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_'
	})
	for i, p := range parts {
		parts[i] = titleCase(p)
	}
	first, last := "", ""
	if len(parts) > 0 {
		first = parts[0]
	}
	if len(parts) > 1 {
		last = parts[len(parts)-1]
	}
	full := strings.Join(parts, " ")
	return SenderName{
		FullName:   full,
		First:      first,
		Last:       last,
		Confidence: 0.4,
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + strings.ToLower(s[1:])
}

const senderNameSystemPrompt = `Extract the sender's display name from the email body signature or ` +
	`salutation, if present. Respond only with the requested JSON shape.`

const orgSystemPrompt = `Extract the sender's organization or company name from the email body, ` +
	`if mentioned. Respond only with the requested JSON shape.`
