package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/junksamiad/argan-call-log/internal/model"
)

func TestClassifyFallbackDetectsTicketID(t *testing.T) {
	c := New(nil, false, "P")
	res := c.Classify(context.Background(), "Re: [urgent] P-20260115-0042 still waiting")
	require.True(t, res.Present)
	require.Equal(t, model.PathExisting, res.Path)
	require.Equal(t, "P-20260115-0042", res.TicketID)
	require.Equal(t, 0.8, res.Confidence)
}

func TestClassifyFallbackNoTicketIDIsNew(t *testing.T) {
	c := New(nil, false, "P")
	res := c.Classify(context.Background(), "Holiday policy question")
	require.False(t, res.Present)
	require.Equal(t, model.PathNew, res.Path)
	require.Equal(t, 0.7, res.Confidence)
}

func TestClassifyFallbackCaseInsensitive(t *testing.T) {
	c := New(nil, false, "P")
	res := c.Classify(context.Background(), "ticket p-20260101-0001 update")
	require.True(t, res.Present)
	require.Equal(t, "P-20260101-0001", res.TicketID)
}

func TestClassifyFallbackConfigurablePrefix(t *testing.T) {
	c := New(nil, false, "ARG")
	res := c.Classify(context.Background(), "ARG-20260101-0007 question")
	require.True(t, res.Present)
	require.Equal(t, "ARG-20260101-0007", res.TicketID)
}
