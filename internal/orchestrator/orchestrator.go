// Package orchestrator implements the Orchestrator (C12): the state
// machine driving wire decode -> context build -> dedup/loop gates ->
// classify -> NEW-or-EXISTING path -> finalize, and the two HTTP handlers
// (POST /webhook/inbound, GET /health). Explicit route registration on a
// small server type, per the teacher's habit of plain net/http without a
// routing framework.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/junksamiad/argan-call-log/internal/ack"
	"github.com/junksamiad/argan-call-log/internal/classify"
	"github.com/junksamiad/argan-call-log/internal/conversation"
	"github.com/junksamiad/argan-call-log/internal/ctxbuild"
	"github.com/junksamiad/argan-call-log/internal/dedup"
	"github.com/junksamiad/argan-call-log/internal/extract"
	"github.com/junksamiad/argan-call-log/internal/loopguard"
	"github.com/junksamiad/argan-call-log/pkg/log"
	"github.com/junksamiad/argan-call-log/internal/model"
	"github.com/junksamiad/argan-call-log/internal/store"
	"github.com/junksamiad/argan-call-log/internal/ticketid"
	"github.com/junksamiad/argan-call-log/internal/wire"
)

// StartupHealth records whether each external collaborator answered the
// lightweight startup reachability check (§6 exit code 3 path). Computed
// once by cmd/webhook-gateway before the server starts accepting traffic
// and surfaced read-only by GET /health so an operator can distinguish
// "process up" from "collaborators reachable."
type StartupHealth struct {
	Store bool `json:"store"`
	LLM   bool `json:"llm"`
	Mail  bool `json:"mail"`
}

// Deps bundles every collaborator the orchestrator drives. Constructed once
// at startup by cmd/webhook-gateway.
type Deps struct {
	Logger       *log.Logger
	Dedup        *dedup.Gate
	LoopGuard    loopguard.Config
	Classifier   *classify.Classifier
	Allocator    *ticketid.Allocator
	Extractors   *extract.Extractors
	Parser       *conversation.Parser
	Merger       *conversation.Merger
	Store        *store.Adapter
	AckSender    *ack.Sender
	AckTemplate  ack.Template
	RequestDeadline time.Duration
	Location     *time.Location
	Health       StartupHealth
}

// Server wires the two HTTP handlers.
type Server struct {
	deps *Deps
	mux  *http.ServeMux
}

// New builds a Server with its routes registered.
func New(deps *Deps) *Server {
	s := &Server{deps: deps, mux: http.NewServeMux()}
	s.mux.HandleFunc("/webhook/inbound", s.handleInbound)
	s.mux.HandleFunc("/health", s.handleHealth)
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Accept") == "application/json" {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"status":"ok","dedup_entries":%d,"store_reachable":%t,"llm_reachable":%t,"mail_reachable":%t}`,
			s.deps.Dedup.Size(), s.deps.Health.Store, s.deps.Health.LLM, s.deps.Health.Mail)
		return
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, "OK")
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.deps.RequestDeadline)
	defer cancel()

	raw, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	start := time.Now()
	correlationID, ticketID, httpStatus, reason := s.run(ctx, raw, r.Header.Get("Content-Type"))
	elapsed := time.Since(start)

	s.deps.Logger.Info("request complete",
		log.KV("correlation_id", correlationID),
		log.KV("ticket_id", ticketID),
		log.KV("http_status", httpStatus),
		log.KV("elapsed_ms", elapsed.Milliseconds()),
	)

	w.WriteHeader(httpStatus)
	io.WriteString(w, reason)
}

// run executes the state machine of §4.12 and returns the correlation id,
// ticket id (if known), HTTP status, and a short plain-text reason.
func (s *Server) run(ctx context.Context, raw []byte, contentType string) (correlationID, ticketID string, status int, reason string) {
	fields, err := wire.Decode(raw, contentType)
	if err != nil {
		return "", "", http.StatusBadRequest, "unparseable payload"
	}

	now := time.Now()
	ctxRecord, err := ctxbuild.Build(fields, now)
	if err != nil {
		return "", "", http.StatusBadRequest, "missing required field"
	}

	correlationID = ctxRecord.MessageID
	if correlationID == "unknown" {
		correlationID = uuid.NewString()
	}
	ctxRecord.CorrelationID = correlationID

	if !s.deps.Dedup.Claim(ctxRecord.MessageID, now) {
		return correlationID, "", http.StatusOK, "duplicate"
	}

	loopDecision := loopguard.Check(s.deps.LoopGuard, ctxRecord.FromAddr, ctxRecord.EnvelopeFrom, ctxRecord.Subject, ctxRecord.TextBody)
	if loopDecision == loopguard.Ignore {
		return correlationID, "", http.StatusOK, "loop detected"
	}

	cls := s.deps.Classifier.Classify(ctx, ctxRecord.Subject)
	ctxRecord.Path = cls.Path

	if cls.Path == model.PathNew {
		return s.runNewPath(ctx, ctxRecord, now, correlationID)
	}
	ctxRecord.TicketID = cls.TicketID
	return s.runExistingPath(ctx, ctxRecord, correlationID)
}

func (s *Server) runNewPath(ctx context.Context, ctxRecord *model.Context, now time.Time, correlationID string) (string, string, int, string) {
	ticketID, err := s.deps.Allocator.Allocate(ctx, now)
	if err != nil {
		s.deps.Logger.Error("ticket allocation failed", log.KVErr(err), log.KV("correlation_id", correlationID))
		return correlationID, "", http.StatusInternalServerError, "allocation failure"
	}
	ctxRecord.TicketID = ticketID

	senderName := s.deps.Extractors.SenderName(ctx, ctxRecord.TextBody, ctxRecord.FromAddr)
	org := s.deps.Extractors.Organization(ctx, ctxRecord.TextBody)

	initialEntry := model.ConversationEntry{
		SenderEmail:    ctxRecord.FromAddr,
		SenderName:     senderName.FullName,
		SenderDatetime: ctxRecord.ReceivedAt.Format("02/01/2006 15:04 MST"),
		Content:        ctxRecord.TextBody,
		Order:          1,
	}

	rec := &model.TicketRecord{
		TicketID:        ticketID,
		Status:          model.StatusNew,
		CreatedAt:       ctxRecord.ReceivedAt,
		UpdatedAt:       ctxRecord.ReceivedAt,
		Subject:         ctxRecord.Subject,
		Body:            ctxRecord.TextBody,
		FromAddr:        ctxRecord.FromAddr,
		SenderFirst:     senderName.First,
		SenderLast:      senderName.Last,
		OrgName:         org.OrgName,
		InitialEntry:    initialEntry,
		History:         nil,
		RawHeaders:      ctxRecord.HeadersBlob,
		SPF:             ctxRecord.SPF,
		DKIM:            ctxRecord.DKIM,
		HasAttachments:  ctxRecord.HasAttachments,
		AttachmentCount: ctxRecord.AttachmentCount,
	}

	storeID, err := s.deps.Store.Create(ctx, rec)
	if err != nil {
		if store.IsConflict(err) {
			s.deps.Logger.Warn("allocator race on create", log.KV("ticket_id", ticketID), log.KV("correlation_id", correlationID))
		}
		s.deps.Logger.Error("store create failed", log.KVErr(err), log.KV("ticket_id", ticketID), log.KV("correlation_id", correlationID))
		return correlationID, ticketID, http.StatusInternalServerError, "store failure"
	}

	subject, textBody, htmlBody := ack.Compose(s.deps.AckTemplate, ticketID, senderName.First, senderName.Confidence, ctxRecord)
	ackErr := s.deps.AckSender.Send(ctx, ctxRecord.FromAddr, subject, textBody, htmlBody)
	if ackErr != nil {
		s.deps.Logger.Warn("acknowledgment send failed", log.KVErr(ackErr), log.KV("ticket_id", ticketID), log.KV("correlation_id", correlationID))
		return correlationID, ticketID, http.StatusOK, "ticket logged, acknowledgment pending"
	}

	if err := s.deps.Store.Update(ctx, storeID, map[string]interface{}{"ack_sent": true}); err != nil {
		s.deps.Logger.Warn("ack_sent flag update failed", log.KVErr(err), log.KV("ticket_id", ticketID), log.KV("correlation_id", correlationID))
	}

	return correlationID, ticketID, http.StatusOK, "ticket logged"
}

func (s *Server) runExistingPath(ctx context.Context, ctxRecord *model.Context, correlationID string) (string, string, int, string) {
	lock := s.deps.Store.LockTicket(ctxRecord.TicketID)
	lock.Lock()
	defer lock.Unlock()

	rec, err := s.deps.Store.FindByTicket(ctx, ctxRecord.TicketID)
	if err == store.ErrNotFound {
		return correlationID, ctxRecord.TicketID, http.StatusOK, "ticket not found"
	}
	if err != nil {
		s.deps.Logger.Error("store fetch failed", log.KVErr(err), log.KV("ticket_id", ctxRecord.TicketID), log.KV("correlation_id", correlationID))
		return correlationID, ctxRecord.TicketID, http.StatusOK, "store fetch failure"
	}

	newEntries := s.deps.Parser.Parse(ctx, ctxRecord.TextBody, ctxRecord)
	merged := s.deps.Merger.Merge(ctx, rec.History, newEntries)

	patch := map[string]interface{}{
		"history":    marshalHistory(merged),
		"updated_at": time.Now().Format(time.RFC3339),
	}
	if err := s.deps.Store.Update(ctx, rec.ID, patch); err != nil {
		s.deps.Logger.Error("store update failed", log.KVErr(err), log.KV("ticket_id", ctxRecord.TicketID), log.KV("correlation_id", correlationID))
		return correlationID, ctxRecord.TicketID, http.StatusOK, "store update failure"
	}

	return correlationID, ctxRecord.TicketID, http.StatusOK, "ticket updated"
}

func marshalHistory(entries []model.ConversationEntry) string {
	b, _ := gojson.Marshal(entries)
	return string(b)
}
