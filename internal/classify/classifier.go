// Package classify implements the Classifier (C5): decides NEW vs EXISTING
// routing from the subject line, primarily via the shared LLM client with a
// deterministic regex fallback, grounded on the spec's own regex contract
// and the teacher's pattern of pairing an external call with a local
// deterministic backstop (cf. O365Ingester's Graph API paging fallback).
package classify

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/junksamiad/argan-call-log/internal/llm"
	"github.com/junksamiad/argan-call-log/internal/model"
)

// Result is the classifier's verdict (§4.5).
type Result struct {
	Present    bool
	Path       model.Path
	TicketID   string
	Confidence float64
	Notes      string
}

// Classifier decides NEW vs EXISTING from a subject line.
type Classifier struct {
	llmClient *llm.Client
	llmEnabled bool
	deadline  time.Duration
	pattern   *regexp.Regexp
}

const defaultDeadline = 30 * time.Second

var bracketAndPrefixRe = regexp.MustCompile(`(?i)^\s*(\[[^\]]*\]\s*)*(re|fw|fwd)\s*:\s*`)

// New builds a Classifier. prefix is the installation's ticket prefix
// letters (configurable per §4.5); an empty prefix is treated as "P".
func New(llmClient *llm.Client, llmEnabled bool, prefix string) *Classifier {
	if prefix == "" {
		prefix = "P"
	}
	pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(prefix) + `-\d{8}-\d{4}`)
	return &Classifier{
		llmClient:  llmClient,
		llmEnabled: llmEnabled,
		deadline:   defaultDeadline,
		pattern:    pattern,
	}
}

type llmResponse struct {
	Present    bool    `json:"present"`
	Path       string  `json:"path"`
	TicketID   string  `json:"ticket_id"`
	Confidence float64 `json:"confidence"`
	Notes      string  `json:"notes"`
}

var classifySchemaJSON = map[string]interface{}{
	"type":     "object",
	"required": []string{"present", "path", "confidence"},
	"properties": map[string]interface{}{
		"present":    map[string]interface{}{"type": "boolean"},
		"path":       map[string]interface{}{"type": "string", "enum": []string{"NEW", "EXISTING"}},
		"ticket_id":  map[string]interface{}{"type": "string"},
		"confidence": map[string]interface{}{"type": "number", "minimum": 0, "maximum": 1},
		"notes":      map[string]interface{}{"type": "string"},
	},
}

var classifySchema = llm.MustCompileSchema("classify-response", classifySchemaJSON)

// Classify decides the routing path for subject. It tries the LLM primary
// path (when enabled) within the 30s deadline; any error, timeout, or
// schema-validation failure falls back to the regex (§4.5). The decision is
// final — no further retry beyond the two methods.
func (c *Classifier) Classify(ctx context.Context, subject string) Result {
	if c.llmEnabled && c.llmClient != nil {
		callCtx, cancel := context.WithTimeout(ctx, c.deadline)
		var resp llmResponse
		err := c.llmClient.Call(callCtx, classifySystemPrompt, subject, classifySchema, classifySchemaJSON, &resp)
		cancel()
		if err == nil {
			return Result{
				Present:    resp.Present,
				Path:       pathFrom(resp.Path, resp.Present),
				TicketID:   resp.TicketID,
				Confidence: clampConfidence(resp.Confidence),
				Notes:      resp.Notes,
			}
		}
	}
	return c.regexFallback(subject)
}

func (c *Classifier) regexFallback(subject string) Result {
	normalized := bracketAndPrefixRe.ReplaceAllString(subject, "")
	normalized = bracketAndPrefixRe.ReplaceAllString(normalized, "")
	match := c.pattern.FindString(normalized)
	if match == "" {
		match = c.pattern.FindString(subject)
	}
	present := match != ""
	res := Result{Present: present}
	if present {
		res.Path = model.PathExisting
		res.TicketID = strings.ToUpper(match)
		res.Confidence = 0.8
	} else {
		res.Path = model.PathNew
		res.Confidence = 0.7
	}
	return res
}

func pathFrom(path string, present bool) model.Path {
	switch strings.ToUpper(path) {
	case "EXISTING":
		return model.PathExisting
	case "NEW":
		return model.PathNew
	}
	if present {
		return model.PathExisting
	}
	return model.PathNew
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

const classifySystemPrompt = `You classify support email subjects. Determine whether the subject ` +
	`references an existing ticket identifier of the form PREFIX-YYYYMMDD-NNNN. ` +
	`Respond only with the requested JSON shape.`
