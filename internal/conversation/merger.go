package conversation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/junksamiad/argan-call-log/internal/llm"
	"github.com/junksamiad/argan-call-log/internal/model"
)

const mergeDeadline = 30 * time.Second

// Merger combines newly parsed entries with stored history, deduplicating
// by content fingerprint and producing a strictly ordered, contiguously
// numbered result (§4.9). The deterministic algorithm is always computed
// first and is the source of truth; the LLM-assisted path, when enabled,
// may replace it only if its result validates as a superset.
type Merger struct {
	llmClient  *llm.Client
	llmEnabled bool
}

func NewMerger(llmClient *llm.Client, llmEnabled bool) *Merger {
	return &Merger{llmClient: llmClient, llmEnabled: llmEnabled}
}

// Fingerprint computes the content fingerprint H(sender_email + "|" +
// normalized_content) used for deduplication (§4.9 step 2).
func Fingerprint(e model.ConversationEntry) string {
	normalized := normalizeContent(e.Content)
	sum := sha256.Sum256([]byte(e.SenderEmail + "|" + normalized))
	return hex.EncodeToString(sum[:])
}

func normalizeContent(s string) string {
	fields := strings.Fields(s)
	return strings.ToLower(strings.Join(fields, " "))
}

// Merge combines existing history with newly parsed entries and returns the
// merged, renumbered list.
func (m *Merger) Merge(ctx context.Context, history []model.ConversationEntry, newEntries []model.ConversationEntry) []model.ConversationEntry {
	deterministic := m.deterministicMerge(history, newEntries)

	if m.llmEnabled && m.llmClient != nil {
		if advanced, ok := m.tryLLMMerge(ctx, history, newEntries, deterministic); ok {
			return advanced
		}
	}
	return deterministic
}

func (m *Merger) deterministicMerge(history, newEntries []model.ConversationEntry) []model.ConversationEntry {
	seen := map[string]bool{}
	for _, e := range history {
		seen[Fingerprint(e)] = true
	}

	combined := make([]model.ConversationEntry, 0, len(history)+len(newEntries))
	combined = append(combined, history...)

	originalIndex := map[int]int{}
	for i := range combined {
		originalIndex[i] = i
	}
	nextIdx := len(combined)

	for _, e := range newEntries {
		fp := Fingerprint(e)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		combined = append(combined, e)
		originalIndex[nextIdx] = nextIdx
		nextIdx++
	}

	type ranked struct {
		entry    model.ConversationEntry
		idx      int
		datetime time.Time
		hasDate  bool
	}
	ranked2 := make([]ranked, len(combined))
	for i, e := range combined {
		t, ok := parseSenderDatetime(e.SenderDatetime)
		ranked2[i] = ranked{entry: e, idx: i, datetime: t, hasDate: ok}
	}

	sort.SliceStable(ranked2, func(i, j int) bool {
		a, b := ranked2[i], ranked2[j]
		if a.hasDate && b.hasDate && !a.datetime.Equal(b.datetime) {
			return a.datetime.Before(b.datetime)
		}
		if a.hasDate != b.hasDate {
			return a.hasDate
		}
		if a.idx != b.idx {
			return a.idx < b.idx
		}
		return Fingerprint(a.entry) < Fingerprint(b.entry)
	})

	out := make([]model.ConversationEntry, len(ranked2))
	for i, r := range ranked2 {
		entry := r.entry
		entry.Order = i + 1
		out[i] = entry
	}
	return out
}

func parseSenderDatetime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("02/01/2006 15:04 MST", s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

type mergeResponse struct {
	Entries []parsedEntry `json:"entries"`
}

var mergeSchemaJSON = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"entries": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"sender_email", "content"},
			},
		},
	},
}

var mergeSchema = llm.MustCompileSchema("merge-response", mergeSchemaJSON)

// tryLLMMerge runs the optional LLM-assisted merge path (§4.9 Policy). The
// result is accepted only if every entry parses, no two entries share a
// fingerprint, and its fingerprint set is a superset of the deterministic
// algorithm's, guarding invariant 5 even on the advanced path.
func (m *Merger) tryLLMMerge(ctx context.Context, history, newEntries, deterministic []model.ConversationEntry) ([]model.ConversationEntry, bool) {
	callCtx, cancel := context.WithTimeout(ctx, mergeDeadline)
	defer cancel()

	prompt := mergePrompt(history, newEntries)
	var resp mergeResponse
	if err := m.llmClient.Call(callCtx, mergeSystemPrompt, prompt, mergeSchema, mergeSchemaJSON, &resp); err != nil {
		return nil, false
	}
	if len(resp.Entries) == 0 {
		return nil, false
	}

	candidate := toModelEntries(resp.Entries)
	required := map[string]bool{}
	for _, e := range deterministic {
		required[Fingerprint(e)] = true
	}
	present := map[string]bool{}
	for _, e := range candidate {
		fp := Fingerprint(e)
		if present[fp] {
			return nil, false
		}
		present[fp] = true
	}
	for fp := range required {
		if !present[fp] {
			return nil, false
		}
	}
	return candidate, true
}

func mergePrompt(history, newEntries []model.ConversationEntry) string {
	var sb strings.Builder
	sb.WriteString("existing_json and new_json follow. existing_json: ")
	sb.WriteString(jsonizeEntries(history))
	sb.WriteString(" new_json: ")
	sb.WriteString(jsonizeEntries(newEntries))
	return sb.String()
}

func jsonizeEntries(entries []model.ConversationEntry) string {
	var sb strings.Builder
	sb.WriteString("[")
	for i, e := range entries {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"sender_email":"` + e.SenderEmail + `","content":"` + escapeQuotes(e.Content) + `"}`)
	}
	sb.WriteString("]")
	return sb.String()
}

func escapeQuotes(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}

const mergeSystemPrompt = `You merge a new list of conversation entries into an existing chronologically ` +
	`ordered history, removing duplicates by (sender, normalized content) and producing a merged, ` +
	`strictly chronological list. Respond only with the requested JSON shape.`
