// Package conversation implements the Conversation Parser (C8) and
// Conversation Merger (C9): decomposing a raw email body into ordered
// Conversation Entries, and merging new entries into stored history without
// duplication, grounded on the shared llm.Client abstraction plus a
// deterministic fallback/source-of-truth per the spec's own algorithm.
package conversation

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/junksamiad/argan-call-log/internal/llm"
	"github.com/junksamiad/argan-call-log/internal/model"
)

const parseDeadline = 30 * time.Second

// quoteBoundaryRe recognizes common top-posted quote/forward markers:
// "On <date>, <name> wrote:", "-----Original Message-----", "From: ...".
var quoteBoundaryRe = regexp.MustCompile(`(?im)^(on .+ wrote:|-{3,}\s*original message\s*-{3,}|-{3,}\s*forwarded message\s*-{3,}|from:\s*.+)$`)

type parsedEntry struct {
	SenderEmail    string `json:"sender_email"`
	SenderName     string `json:"sender_name"`
	SenderDatetime string `json:"sender_datetime"`
	Content        string `json:"content"`
}

type parseResponse struct {
	Entries []parsedEntry `json:"entries"`
}

var parseSchemaJSON = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"entries": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"sender_email", "content"},
				"properties": map[string]interface{}{
					"sender_email":    map[string]interface{}{"type": "string"},
					"sender_name":     map[string]interface{}{"type": "string"},
					"sender_datetime": map[string]interface{}{"type": "string"},
					"content":         map[string]interface{}{"type": "string"},
				},
			},
		},
	},
}

var parseSchema = llm.MustCompileSchema("parse-response", parseSchemaJSON)

// Parser decomposes raw email bodies into Conversation Entries.
type Parser struct {
	llmClient  *llm.Client
	llmEnabled bool
}

func NewParser(llmClient *llm.Client, llmEnabled bool) *Parser {
	return &Parser{llmClient: llmClient, llmEnabled: llmEnabled}
}

// Parse decomposes body into chronologically ascending Conversation
// Entries. An empty body yields an empty list, never a single empty entry
// (§4.8 edge case). ctxRecord supplies the fallback entry's fields.
func (p *Parser) Parse(ctx context.Context, body string, ctxRecord *model.Context) []model.ConversationEntry {
	if strings.TrimSpace(body) == "" {
		return nil
	}

	if p.llmEnabled && p.llmClient != nil {
		callCtx, cancel := context.WithTimeout(ctx, parseDeadline)
		var resp parseResponse
		err := p.llmClient.Call(callCtx, parseSystemPrompt, body, parseSchema, parseSchemaJSON, &resp)
		cancel()
		if err == nil && len(resp.Entries) > 0 {
			return toModelEntries(resp.Entries)
		}
	}

	return p.deterministicParse(body, ctxRecord)
}

// deterministicParse splits body on recognized quote/forward boundaries.
// Each block becomes its own entry; dates on quoted blocks are frequently
// absent, so entries without a recoverable sender_datetime keep block
// position as their only ordering signal (§4.8 edge case).
func (p *Parser) deterministicParse(body string, ctxRecord *model.Context) []model.ConversationEntry {
	locs := quoteBoundaryRe.FindAllStringIndex(body, -1)
	if len(locs) == 0 {
		return []model.ConversationEntry{singleEntryFromContext(body, ctxRecord)}
	}

	var entries []model.ConversationEntry
	order := 1

	live := strings.TrimSpace(body[:locs[0][0]])
	if live != "" {
		entries = append(entries, model.ConversationEntry{
			SenderEmail:    ctxRecord.FromAddr,
			SenderName:     "",
			SenderDatetime: formatDatetime(ctxRecord.ReceivedAt),
			Content:        live,
			Order:          order,
		})
		order++
	}

	for i, loc := range locs {
		start := loc[0]
		end := len(body)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		block := strings.TrimSpace(body[start:end])
		if block == "" {
			continue
		}
		entries = append(entries, model.ConversationEntry{
			SenderEmail:    "name@unknown",
			SenderName:     "",
			SenderDatetime: "",
			Content:        block,
			Order:          order,
		})
		order++
	}

	if len(entries) == 0 {
		return []model.ConversationEntry{singleEntryFromContext(body, ctxRecord)}
	}

	// Top-posted mail puts the newest block first; reverse so the entries
	// run oldest to newest, then renumber.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	for i := range entries {
		entries[i].Order = i + 1
	}
	return entries
}

func singleEntryFromContext(body string, ctxRecord *model.Context) model.ConversationEntry {
	return model.ConversationEntry{
		SenderEmail:    ctxRecord.FromAddr,
		SenderName:     "",
		SenderDatetime: formatDatetime(ctxRecord.ReceivedAt),
		Content:        strings.TrimSpace(body),
		Order:          1,
	}
}

func toModelEntries(entries []parsedEntry) []model.ConversationEntry {
	out := make([]model.ConversationEntry, 0, len(entries))
	for i, e := range entries {
		email := e.SenderEmail
		if email == "" {
			email = "name@unknown"
		}
		out = append(out, model.ConversationEntry{
			SenderEmail:    email,
			SenderName:     e.SenderName,
			SenderDatetime: e.SenderDatetime,
			Content:        strings.TrimSpace(e.Content),
			Order:          i + 1,
		})
	}
	return out
}

func formatDatetime(t time.Time) string {
	return t.Format("02/01/2006 15:04 MST")
}

const parseSystemPrompt = `Decompose this email body into its chronological conversation entries. ` +
	`Do not emit the live reply text as its own entry separate from the quoted history unless it is ` +
	`genuinely new content; each distinct forwarded or quoted block is its own entry. If a sender can ` +
	`only be identified by display name, use "name@unknown" for sender_email. Respond only with the ` +
	`requested JSON shape.`
