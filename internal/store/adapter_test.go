package store

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/require"

	"github.com/junksamiad/argan-call-log/internal/model"
)

func TestFindByTicketNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = gojson.NewEncoder(w).Encode(listResponse{Records: nil})
	}))
	defer srv.Close()

	a := New(srv.URL, "key", "base1", "Tickets", 5*time.Second, 5)
	_, err := a.FindByTicket(context.Background(), "P-20260101-0001")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFindByTicketFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = gojson.NewEncoder(w).Encode(listResponse{Records: []airtableRecord{
			{ID: "rec1", Fields: fields{"ticket_id": "P-20260101-0001", "status": "new"}},
		}})
	}))
	defer srv.Close()

	a := New(srv.URL, "key", "base1", "Tickets", 5*time.Second, 5)
	rec, err := a.FindByTicket(context.Background(), "P-20260101-0001")
	require.NoError(t, err)
	require.Equal(t, "P-20260101-0001", rec.TicketID)
}

func TestDoReturnsTransientOn500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))
	defer srv.Close()

	a := New(srv.URL, "key", "base1", "Tickets", 5*time.Second, 5)
	_, err := a.FindByTicket(context.Background(), "P-20260101-0001")
	require.True(t, IsTransient(err))
}

func TestCreateConflictsOnExistingTicket(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = gojson.NewEncoder(w).Encode(listResponse{Records: []airtableRecord{
			{ID: "rec1", Fields: fields{"ticket_id": "P-20260101-0001"}},
		}})
	}))
	defer srv.Close()

	a := New(srv.URL, "key", "base1", "Tickets", 5*time.Second, 5)
	_, err := a.Create(context.Background(), &model.TicketRecord{TicketID: "P-20260101-0001"})
	require.True(t, IsConflict(err))
}
