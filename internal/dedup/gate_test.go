package dedup

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClaimFirstSeenWins(t *testing.T) {
	g := New(time.Hour, "")
	now := time.Now()
	require.True(t, g.Claim("msg-1", now))
	require.False(t, g.Claim("msg-1", now.Add(time.Minute)))
}

func TestClaimUnknownAlwaysAdmitted(t *testing.T) {
	g := New(time.Hour, "")
	now := time.Now()
	require.True(t, g.Claim(UnknownMessageID, now))
	require.True(t, g.Claim(UnknownMessageID, now))
	require.Equal(t, 0, g.Size())
}

func TestClaimAfterTTLReadmits(t *testing.T) {
	g := New(time.Minute, "")
	now := time.Now()
	require.True(t, g.Claim("msg-2", now))
	require.True(t, g.Claim("msg-2", now.Add(2*time.Minute)))
}

func TestSweepEvictsExpired(t *testing.T) {
	g := New(time.Minute, "")
	now := time.Now()
	g.Claim("msg-3", now)
	require.Equal(t, 1, g.Size())
	g.Sweep(now.Add(2 * time.Minute))
	require.Equal(t, 0, g.Size())
}
