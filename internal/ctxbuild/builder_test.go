package ctxbuild

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/junksamiad/argan-call-log/internal/model"
)

func TestBuildRequiresToAndFrom(t *testing.T) {
	_, err := Build(map[string]string{"from": "a@b.example"}, time.Now())
	require.Error(t, err)

	_, err = Build(map[string]string{"to": "a@b.example"}, time.Now())
	require.Error(t, err)
}

func TestBuildExtractsAddrSpecFromDisplayName(t *testing.T) {
	fields := map[string]string{
		"to":   "advice@ops.example",
		"from": "John Smith <JS@Client.Example>",
	}
	c, err := Build(fields, time.Now())
	require.NoError(t, err)
	require.Equal(t, "js@client.example", c.FromAddr)
	require.Equal(t, "John Smith <JS@Client.Example>", c.FromRaw)
}

func TestBuildDefaultsAttachmentsAbsent(t *testing.T) {
	fields := map[string]string{"to": "a@b.example", "from": "c@d.example"}
	c, err := Build(fields, time.Now())
	require.NoError(t, err)
	require.False(t, c.HasAttachments)
	require.Equal(t, 0, c.AttachmentCount)
}

func TestBuildMessageIDFallsBackToUnknown(t *testing.T) {
	fields := map[string]string{"to": "a@b.example", "from": "c@d.example"}
	c, err := Build(fields, time.Now())
	require.NoError(t, err)
	require.Equal(t, "unknown", c.MessageID)
}

func TestBuildMessageIDExtractedCaseInsensitively(t *testing.T) {
	fields := map[string]string{
		"to":      "a@b.example",
		"from":    "c@d.example",
		"headers": "Subject: hi\nmessage-id: <m1@client.example>\nFrom: c@d.example",
	}
	c, err := Build(fields, time.Now())
	require.NoError(t, err)
	require.Equal(t, "<m1@client.example>", c.MessageID)
}

func TestBuildEnvelopeFromParsedForLoopGuard(t *testing.T) {
	fields := map[string]string{
		"to":       "a@b.example",
		"from":     "c@d.example",
		"envelope": `{"to":["a@b.example"],"from":"Support@Ops.Example"}`,
	}
	c, err := Build(fields, time.Now())
	require.NoError(t, err)
	require.Equal(t, "support@ops.example", c.EnvelopeFrom)
}

func TestBuildPriorityDefaultsNormal(t *testing.T) {
	fields := map[string]string{"to": "a@b.example", "from": "c@d.example"}
	c, err := Build(fields, time.Now())
	require.NoError(t, err)
	require.Equal(t, model.PriorityNormal, c.Priority)
}

func TestBuildPriorityHonoredWhenPresent(t *testing.T) {
	fields := map[string]string{"to": "a@b.example", "from": "c@d.example", "priority": "Urgent"}
	c, err := Build(fields, time.Now())
	require.NoError(t, err)
	require.Equal(t, model.PriorityUrgent, c.Priority)
}
