// Package loopguard implements the Loop Guard (C4): it prevents the
// gateway from processing its own outbound acknowledgments when a
// recipient's mailbox forwards them back in.
package loopguard

import "strings"

// Decision is the Loop Guard's verdict.
type Decision string

const (
	Proceed Decision = "proceed"
	Ignore  Decision = "ignore"
)

// Config carries the configured values the guard compares against. It is a
// narrow view of internal/config.Config so this package does not import the
// full configuration surface.
type Config struct {
	OutboundFromAddr string
	AckSubjectPrefix string // e.g. the short name used in ack subjects
	MarkerPhrase     string
}

// Check evaluates the three conditions of §4.4 against a candidate message
// and returns Ignore if any hold.
func Check(cfg Config, fromAddr, envelopeFrom, subject, body string) Decision {
	if fromAddr != "" && strings.EqualFold(fromAddr, cfg.OutboundFromAddr) {
		return Ignore
	}
	if looksLikeAckSubject(subject, cfg.AckSubjectPrefix) && containsMarker(body, cfg.MarkerPhrase) {
		return Ignore
	}
	if envelopeFrom != "" && strings.EqualFold(envelopeFrom, cfg.OutboundFromAddr) {
		return Ignore
	}
	return Proceed
}

func looksLikeAckSubject(subject, prefix string) bool {
	if prefix == "" {
		return true
	}
	return strings.Contains(strings.ToLower(subject), strings.ToLower(prefix))
}

func containsMarker(body, marker string) bool {
	if marker == "" {
		return false
	}
	return strings.Contains(strings.ToLower(body), strings.ToLower(marker))
}
