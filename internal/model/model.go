// Package model holds the data types shared across the ingestion pipeline:
// the per-request Context Record, the canonical Conversation Entry, and the
// Persistent Ticket Record (§3 of the specification).
package model

import "time"

// Path is the classifier's routing decision (§3, §4.5).
type Path string

const (
	PathNew      Path = "NEW"
	PathExisting Path = "EXISTING"
)

// TicketStatus is the coarse lifecycle state of a Persistent Ticket Record.
type TicketStatus string

const (
	StatusNew            TicketStatus = "new"
	StatusAwaitingClient TicketStatus = "awaiting_client"
	StatusAwaitingAgent  TicketStatus = "awaiting_agent"
	StatusResolved       TicketStatus = "resolved"
	StatusClosed         TicketStatus = "closed"
)

// Priority is the caller-supplied enumerated priority tier (§9 Open
// Questions: the ambiguous keyword/LLM inference is dropped, a single
// passthrough value remains).
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityNormal Priority = "Normal"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

// Context is the per-webhook-call Context Record (§3). It is created once
// per request and mutated in place as the orchestrator's state machine
// advances.
type Context struct {
	Subject      string
	TextBody     string
	FromRaw      string
	FromAddr     string
	ToAddr       string
	HeadersBlob  string
	MessageID    string
	SPF          string
	DKIM         string
	HasAttachments   bool
	AttachmentCount  int
	ReceivedAt       time.Time
	EnvelopeFrom     string // from the decoded `envelope` JSON field, used by the Loop Guard
	SenderIP         string
	Priority         Priority

	TicketID string
	Path     Path

	ProcessingStatus string
	CorrelationID    string
}

// ConversationEntry is the canonical unit of threading (§3, §4.8, §4.9).
type ConversationEntry struct {
	SenderEmail    string `json:"sender_email"`
	SenderName     string `json:"sender_name"`
	SenderDatetime string `json:"sender_datetime"` // DD/MM/YYYY HH:MM TZ
	Content        string `json:"content"`
	Order          int    `json:"order"`
}

// TicketRecord is the Persistent Ticket Record (§3), one per ticket_id.
type TicketRecord struct {
	ID        string // store-internal record id, distinct from TicketID
	TicketID  string
	Status    TicketStatus
	CreatedAt time.Time
	UpdatedAt time.Time

	Subject    string
	Body       string
	FromAddr   string

	SenderFirst string
	SenderLast  string
	OrgName     string

	InitialEntry ConversationEntry
	History      []ConversationEntry

	RawHeaders string

	AckSent bool

	SPF             string
	DKIM            string
	HasAttachments  bool
	AttachmentCount int
}
