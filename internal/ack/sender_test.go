package ack

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/junksamiad/argan-call-log/internal/model"
)

func TestComposeGreetingDependsOnConfidence(t *testing.T) {
	tmpl := Template{TextBody: "{first_name}, ref {ticket_id}", InstallShortName: "Support"}
	ctxRecord := &model.Context{Subject: "Question", TextBody: "body", Priority: model.PriorityNormal}

	subject, text, _ := Compose(tmpl, "P-20260101-0001", "John", 0.9, ctxRecord)
	require.Equal(t, "[P-20260101-0001] Support - Call Logged", subject)
	require.Contains(t, text, "Hi John")

	_, text2, _ := Compose(tmpl, "P-20260101-0001", "John", 0.2, ctxRecord)
	require.Contains(t, text2, "Hello")
	require.NotContains(t, text2, "Hi John")
}

func TestSendSucceedsOn2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	s := New(srv.URL, "key", "support@ops.example", "cc@ops.example", 2*time.Second)
	s.initDelay = time.Millisecond
	err := s.Send(context.Background(), "client@example.com", "subject", "text", "<p>html</p>")
	require.NoError(t, err)
}

func TestSendRetriesThenFails(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(srv.URL, "key", "support@ops.example", "", 2*time.Second)
	s.initDelay = time.Millisecond
	s.backoff.Delays = []time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}
	err := s.Send(context.Background(), "client@example.com", "subject", "text", "<p>html</p>")
	require.Error(t, err)
	require.GreaterOrEqual(t, calls, 2)
}
