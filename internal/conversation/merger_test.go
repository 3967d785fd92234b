package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/junksamiad/argan-call-log/internal/model"
)

func entry(sender, datetime, content string, order int) model.ConversationEntry {
	return model.ConversationEntry{
		SenderEmail:    sender,
		SenderDatetime: datetime,
		Content:        content,
		Order:          order,
	}
}

func TestMergeAppendsOnlyNewFingerprints(t *testing.T) {
	m := NewMerger(nil, false)
	history := []model.ConversationEntry{
		entry("js@client.example", "12/01/2026 09:00 UTC", "original question", 1),
	}
	newEntries := []model.ConversationEntry{
		entry("js@client.example", "12/01/2026 09:00 UTC", "original question", 1),
		entry("js@client.example", "13/01/2026 10:00 UTC", "a new reply", 2),
	}
	merged := m.Merge(context.Background(), history, newEntries)
	require.Len(t, merged, 2)
	require.Equal(t, 1, merged[0].Order)
	require.Equal(t, 2, merged[1].Order)
	require.Equal(t, "original question", merged[0].Content)
	require.Equal(t, "a new reply", merged[1].Content)
}

func TestMergeOrderIsContiguousAndStartsAtOne(t *testing.T) {
	m := NewMerger(nil, false)
	history := []model.ConversationEntry{
		entry("a@example.com", "10/01/2026 09:00 UTC", "first", 1),
		entry("b@example.com", "11/01/2026 09:00 UTC", "second", 2),
	}
	newEntries := []model.ConversationEntry{
		entry("c@example.com", "12/01/2026 09:00 UTC", "third", 1),
	}
	merged := m.Merge(context.Background(), history, newEntries)
	require.Len(t, merged, 3)
	for i, e := range merged {
		require.Equal(t, i+1, e.Order)
	}
}

func TestMergeRedundantQuoteDoesNotDuplicate(t *testing.T) {
	m := NewMerger(nil, false)
	history := []model.ConversationEntry{
		entry("a@example.com", "10/01/2026 09:00 UTC", "first message", 1),
		entry("b@example.com", "11/01/2026 09:00 UTC", "second message", 2),
	}
	newEntries := []model.ConversationEntry{
		entry("a@example.com", "10/01/2026 09:00 UTC", "first message", 1),
		entry("b@example.com", "11/01/2026 09:00 UTC", "second message", 2),
		entry("c@example.com", "12/01/2026 09:00 UTC", "third message", 3),
	}
	merged := m.Merge(context.Background(), history, newEntries)
	require.Len(t, merged, 3)
}

func TestFingerprintNormalizesWhitespace(t *testing.T) {
	a := entry("x@example.com", "", "hello   world", 1)
	b := entry("x@example.com", "", "  hello world  ", 1)
	require.Equal(t, Fingerprint(a), Fingerprint(b))
}
