package extract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSenderNameFallbackFromDotSeparatedLocalPart(t *testing.T) {
	e := New(nil, false)
	res := e.SenderName(context.Background(), "body", "john.smith@client.example")
	require.Equal(t, "John Smith", res.FullName)
	require.Equal(t, "John", res.First)
	require.Equal(t, "Smith", res.Last)
}

func TestSenderNameFallbackFromUnderscoreSeparatedLocalPart(t *testing.T) {
	e := New(nil, false)
	res := e.SenderName(context.Background(), "body", "jane_doe@client.example")
	require.Equal(t, "Jane Doe", res.FullName)
}

func TestOrganizationFallbackIsEmpty(t *testing.T) {
	e := New(nil, false)
	res := e.Organization(context.Background(), "some body text")
	require.Equal(t, "", res.OrgName)
}
