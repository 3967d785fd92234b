package conversation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/junksamiad/argan-call-log/internal/model"
)

func testCtx() *model.Context {
	return &model.Context{
		FromAddr:   "js@client.example",
		ReceivedAt: time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC),
	}
}

func TestParseEmptyBodyYieldsEmptyList(t *testing.T) {
	p := NewParser(nil, false)
	entries := p.Parse(context.Background(), "", testCtx())
	require.Empty(t, entries)
}

func TestParseNoQuoteBoundaryYieldsSingleEntry(t *testing.T) {
	p := NewParser(nil, false)
	entries := p.Parse(context.Background(), "just one plain message", testCtx())
	require.Len(t, entries, 1)
	require.Equal(t, "js@client.example", entries[0].SenderEmail)
	require.Equal(t, 1, entries[0].Order)
}

func TestParseWithQuoteBoundarySplitsIntoEntries(t *testing.T) {
	p := NewParser(nil, false)
	body := "Thanks, got it.\n\nOn Mon, 12 Jan 2026, John wrote:\n> original question here"
	entries := p.Parse(context.Background(), body, testCtx())
	require.Len(t, entries, 2)
}
