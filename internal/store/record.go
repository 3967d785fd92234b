package store

import (
	"regexp"
	"strconv"
	"time"

	gojson "github.com/goccy/go-json"

	"github.com/junksamiad/argan-call-log/internal/model"
)

var trailingSeqRe = regexp.MustCompile(`-(\d{4})$`)

func trailingSequence(ticketID string) (uint32, bool) {
	m := trailingSeqRe.FindStringSubmatch(ticketID)
	if m == nil {
		return 0, false
	}
	n, err := strconv.ParseUint(m[1], 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func fieldsFromRecord(rec *model.TicketRecord) fields {
	initialEntryJSON, _ := gojson.Marshal(rec.InitialEntry)
	historyJSON, _ := gojson.Marshal(rec.History)

	return fields{
		"ticket_id":        rec.TicketID,
		"status":           string(rec.Status),
		"created_at":       rec.CreatedAt.Format(time.RFC3339),
		"updated_at":       rec.UpdatedAt.Format(time.RFC3339),
		"subject":          rec.Subject,
		"body":             rec.Body,
		"from_addr":        rec.FromAddr,
		"sender_first":     rec.SenderFirst,
		"sender_last":      rec.SenderLast,
		"org_name":         rec.OrgName,
		"initial_entry":    string(initialEntryJSON),
		"history":          string(historyJSON),
		"raw_headers":      rec.RawHeaders,
		"ack_sent":         rec.AckSent,
		"spf":              rec.SPF,
		"dkim":             rec.DKIM,
		"has_attachments":  rec.HasAttachments,
		"attachment_count": rec.AttachmentCount,
	}
}

func recordFromAirtable(r airtableRecord) *model.TicketRecord {
	rec := &model.TicketRecord{
		ID:              r.ID,
		TicketID:        asString(r.Fields["ticket_id"]),
		Status:          model.TicketStatus(asString(r.Fields["status"])),
		Subject:         asString(r.Fields["subject"]),
		Body:            asString(r.Fields["body"]),
		FromAddr:        asString(r.Fields["from_addr"]),
		SenderFirst:     asString(r.Fields["sender_first"]),
		SenderLast:      asString(r.Fields["sender_last"]),
		OrgName:         asString(r.Fields["org_name"]),
		RawHeaders:      asString(r.Fields["raw_headers"]),
		SPF:             asString(r.Fields["spf"]),
		DKIM:            asString(r.Fields["dkim"]),
		HasAttachments:  asBool(r.Fields["has_attachments"]),
		AttachmentCount: int(asFloat(r.Fields["attachment_count"])),
		AckSent:         asBool(r.Fields["ack_sent"]),
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339, asString(r.Fields["created_at"]))
	rec.UpdatedAt, _ = time.Parse(time.RFC3339, asString(r.Fields["updated_at"]))

	if raw := asString(r.Fields["initial_entry"]); raw != "" {
		_ = gojson.Unmarshal([]byte(raw), &rec.InitialEntry)
	}
	if raw := asString(r.Fields["history"]); raw != "" {
		_ = gojson.Unmarshal([]byte(raw), &rec.History)
	}
	return rec
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v interface{}) float64 {
	f, _ := v.(float64)
	return f
}
