package wire

import (
	"bytes"
	"fmt"
	"mime/multipart"
	"testing"

	"github.com/stretchr/testify/require"
)

func buildMultipart(t *testing.T, boundary string, fields map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.SetBoundary(boundary))
	for k, v := range fields {
		fw, err := w.CreateFormField(k)
		require.NoError(t, err)
		_, err = fw.Write([]byte(v))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestDecodeHappyPath(t *testing.T) {
	raw := buildMultipart(t, "boundary123", map[string]string{
		"to":      "advice@ops.example",
		"from":    "John Smith <js@client.example>",
		"subject": "Holiday policy question",
		"text":    "Hi team, how many days do I have left?",
	})
	fields, err := Decode(raw, fmt.Sprintf("multipart/form-data; boundary=%s", "boundary123"))
	require.NoError(t, err)
	require.Equal(t, "advice@ops.example", fields["to"])
	require.Equal(t, "John Smith <js@client.example>", fields["from"])
}

func TestDecodeEmptyFieldStillEmitted(t *testing.T) {
	raw := buildMultipart(t, "b2", map[string]string{"text": ""})
	fields, err := Decode(raw, "multipart/form-data; boundary=b2")
	require.NoError(t, err)
	v, ok := fields["text"]
	require.True(t, ok)
	require.Equal(t, "", v)
}

func TestDecodeInvalidUTF8Replaced(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.SetBoundary("b3"))
	fw, err := w.CreateFormField("text")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hello \xff\xfe world"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	fields, err := Decode(buf.Bytes(), "multipart/form-data; boundary=b3")
	require.NoError(t, err)
	require.Contains(t, fields["text"], "hello")
	require.Contains(t, fields["text"], "world")
	require.NotContains(t, fields["text"], "\xff")
}

func TestDecodeDefaultBoundaryWhenContentTypeMissing(t *testing.T) {
	raw := buildMultipart(t, DefaultBoundary, map[string]string{"to": "a@b.example"})
	fields, err := Decode(raw, "")
	require.NoError(t, err)
	require.Equal(t, "a@b.example", fields["to"])
}

func TestDecodeNoFieldsErrors(t *testing.T) {
	_, err := Decode([]byte("not multipart at all"), "multipart/form-data; boundary=nope")
	require.ErrorIs(t, err, ErrNoFields)
}

func TestDecodeIgnoresUnnamedParts(t *testing.T) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	require.NoError(t, w.SetBoundary("b4"))
	pw, err := w.CreatePart(map[string][]string{"Content-Type": {"text/plain"}})
	require.NoError(t, err)
	_, err = pw.Write([]byte("anonymous part"))
	require.NoError(t, err)
	fw, err := w.CreateFormField("subject")
	require.NoError(t, err)
	_, err = fw.Write([]byte("hi"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	fields, err := Decode(buf.Bytes(), "multipart/form-data; boundary=b4")
	require.NoError(t, err)
	require.Len(t, fields, 1)
	require.Equal(t, "hi", fields["subject"])
}
