// Package wire implements the Wire Decoder (C1): it turns an opaque
// multipart/form-data payload plus a content-type header into a map of
// field name to decoded string value, recovering from invalid UTF-8 and
// boundary-detection failures instead of dropping bytes. The standard
// library's mime/multipart reader is the grounded choice here — nothing in
// the retrieved pack implements multipart parsing, and mime/multipart is
// the correct, idiomatic tool for this protocol-level concern.
package wire

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultBoundary is used when the content-type header carries none,
	// matching the gateway's documented default (§6).
	DefaultBoundary = "xYzZY"

	autodetectScanWindow = 200
)

// ErrNoFields is returned when the payload contains zero recognizable parts
// and no fields could be reconstructed even after boundary autodetection.
var ErrNoFields = errors.New("wire: no recognizable multipart fields")

var boundaryScanRe = regexp.MustCompile(`--([A-Za-z0-9'()+_,\-./:=?]{4,70})`)

// Decode parses raw multipart/form-data bytes using the boundary carried in
// contentType (or DefaultBoundary if absent/unparseable) and returns a map
// of field name to decoded value. Any byte sequence that is not valid UTF-8
// is replaced rune-by-rune with the Unicode replacement character; no bytes
// are silently dropped. Parts without a name parameter are ignored. Parts
// with an empty body are still emitted with an empty string value.
func Decode(raw []byte, contentType string) (map[string]string, error) {
	boundary := boundaryFromContentType(contentType)

	fields, partCount := decodeWithBoundary(raw, boundary)
	if partCount < 2 {
		if detected, ok := autodetectBoundary(raw); ok && detected != boundary {
			if altFields, altCount := decodeWithBoundary(raw, detected); altCount > partCount {
				fields, partCount = altFields, altCount
			}
		}
	}

	if partCount == 0 && len(fields) == 0 {
		return fields, ErrNoFields
	}
	return fields, nil
}

func boundaryFromContentType(contentType string) string {
	if contentType == "" {
		return DefaultBoundary
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return DefaultBoundary
	}
	if b, ok := params["boundary"]; ok && b != "" {
		return b
	}
	return DefaultBoundary
}

// decodeWithBoundary runs one multipart parse attempt and returns the
// decoded fields plus the number of parts it actually read (independent of
// how many carried a usable name, so callers can judge boundary quality).
func decodeWithBoundary(raw []byte, boundary string) (map[string]string, int) {
	fields := map[string]string{}
	r := multipart.NewReader(bytes.NewReader(raw), boundary)
	parts := 0
	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}
		parts++
		name := part.FormName()
		body, _ := io.ReadAll(part)
		part.Close()
		if name == "" {
			continue
		}
		fields[name] = toValidUTF8(body)
	}
	return fields, parts
}

// autodetectBoundary scans the first bytes of the payload for a `--TOKEN`
// marker per §4.1's autodetection fallback.
func autodetectBoundary(raw []byte) (string, bool) {
	window := raw
	if len(window) > autodetectScanWindow {
		window = window[:autodetectScanWindow]
	}
	m := boundaryScanRe.FindSubmatch(window)
	if m == nil {
		return "", false
	}
	return string(m[1]), true
}

// toValidUTF8 replaces any invalid UTF-8 byte sequence with the Unicode
// replacement character, preserving valid runs untouched.
func toValidUTF8(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		if r == utf8.RuneError && size <= 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[1:]
			continue
		}
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}
