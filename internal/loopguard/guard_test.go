package loopguard

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{
		OutboundFromAddr: "support@ops.example",
		AckSubjectPrefix: "Support",
		MarkerPhrase:     "Call Logged",
	}
}

func TestCheckProceedsOnOrdinaryMessage(t *testing.T) {
	d := Check(testConfig(), "client@example.com", "", "Holiday question", "how many days left?")
	require.Equal(t, Proceed, d)
}

func TestCheckIgnoresExactFromAddrMatch(t *testing.T) {
	d := Check(testConfig(), "Support@Ops.Example", "", "anything", "anything")
	require.Equal(t, Ignore, d)
}

func TestCheckIgnoresForwardedAck(t *testing.T) {
	d := Check(testConfig(), "client@example.com", "", "Fwd: Support ticket P-20260101-0001", "please see below: Call Logged under reference P-20260101-0001")
	require.Equal(t, Ignore, d)
}

func TestCheckIgnoresEnvelopeFromMatch(t *testing.T) {
	d := Check(testConfig(), "client@example.com", "support@ops.example", "whatever", "whatever")
	require.Equal(t, Ignore, d)
}
