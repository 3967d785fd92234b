// Package config loads the immutable, process-wide configuration record from
// environment variables, following the teacher's _FILE-suffix secret
// convention (config/env.go). There is no runtime-typed configuration
// object and no hot reload: once Load returns, the Config is read-only for
// the life of the process, per §5 "no global mutable configuration at
// steady state".
package config

import (
	"strings"
	"time"
)

// Config is the fully resolved, validated configuration enumerated in §6.
type Config struct {
	// install.*
	InstallPrefix    string
	InstallShortName string
	InstallTimezone  *time.Location

	// outbound.*
	OutboundFromAddr string
	OutboundCCAddr   string

	// llm.*
	LLMEnabled  bool
	LLMDeadline time.Duration
	LLMModel    string
	LLMEndpoint string
	LLMAPIKey   string

	// store.*
	StoreDeadline   time.Duration
	StoreWriteQPS   float64
	StoreBaseURL    string
	StoreAPIKey     string
	StoreTableName  string
	StoreBaseID     string

	// mail.*
	MailDeadline  time.Duration
	MailRetries   int
	MailBaseDelay time.Duration
	MailEndpoint  string
	MailAPIKey    string

	// dedup.*
	DedupTTL       time.Duration
	DedupStatePath string

	// request.*
	RequestDeadline time.Duration

	// ack_template.*
	AckTemplateText  string
	AckTemplateHTML  string
	AckMarkerPhrase  string

	// server
	BindAddr string
	LogLoc   string
}

const (
	defaultAckTemplateText = `{first_name},

Thank you for contacting us. Your enquiry has been logged under reference {ticket_id}.

Original subject: {original_subject}
Priority: {priority}

We will respond as soon as possible. For your records, your original message is quoted below.

----- Original message -----
{original_body}

Regards,
Support Team`

	defaultAckTemplateHTML = `<p>{first_name},</p>
<p>Thank you for contacting us. Your enquiry has been logged under reference <b>{ticket_id}</b>.</p>
<p>Original subject: {original_subject}<br/>Priority: {priority}</p>
<p>We will respond as soon as possible. For your records, your original message is quoted below.</p>
<blockquote>{original_body}</blockquote>
<p>Regards,<br/>Support Team</p>`
)

// Load reads and validates every key enumerated in §6. Missing and invalid
// values are reported as *Error; a failure to read a NAME_FILE secret file
// is returned as the underlying error. Callers (cmd/webhook-gateway) should
// exit(1) on any failure.
func Load() (*Config, error) {
	var c Config
	var err error

	if c.InstallPrefix, err = envString("INSTALL_PREFIX", "ARG"); err != nil {
		return nil, err
	}
	c.InstallPrefix = strings.ToUpper(strings.TrimSpace(c.InstallPrefix))
	if len(c.InstallPrefix) == 0 {
		return nil, InvalidValue("INSTALL_PREFIX", c.InstallPrefix)
	}

	if c.InstallShortName, err = envString("INSTALL_SHORT_NAME", "Support"); err != nil {
		return nil, err
	}

	tzName, err := envString("INSTALL_TIMEZONE", "Europe/London")
	if err != nil {
		return nil, err
	}
	if c.InstallTimezone, err = time.LoadLocation(tzName); err != nil {
		return nil, InvalidValue("INSTALL_TIMEZONE", tzName)
	}

	if c.OutboundFromAddr, err = envStringRequired("OUTBOUND_FROM_ADDR"); err != nil {
		return nil, err
	}
	c.OutboundFromAddr = strings.ToLower(strings.TrimSpace(c.OutboundFromAddr))

	if c.OutboundCCAddr, err = envString("OUTBOUND_CC_ADDR", ""); err != nil {
		return nil, err
	}

	if c.LLMEnabled, err = envBool("LLM_ENABLED", true); err != nil {
		return nil, err
	}
	llmDeadlineMs, err := envInt("LLM_DEADLINE_MS", 30000)
	if err != nil {
		return nil, err
	}
	c.LLMDeadline = time.Duration(llmDeadlineMs) * time.Millisecond
	if c.LLMModel, err = envString("LLM_MODEL", "gpt-4o-mini"); err != nil {
		return nil, err
	}
	if c.LLMEndpoint, err = envString("LLM_ENDPOINT", ""); err != nil {
		return nil, err
	}
	if c.LLMAPIKey, err = envString("LLM_API_KEY", ""); err != nil {
		return nil, err
	}
	if c.LLMEnabled && c.LLMEndpoint == "" {
		return nil, ErrMissingRequired("LLM_ENDPOINT")
	}

	storeDeadlineMs, err := envInt("STORE_DEADLINE_MS", 10000)
	if err != nil {
		return nil, err
	}
	c.StoreDeadline = time.Duration(storeDeadlineMs) * time.Millisecond
	if c.StoreWriteQPS, err = envFloat("STORE_WRITE_QPS", 5.0); err != nil {
		return nil, err
	}
	if c.StoreBaseURL, err = envStringRequired("STORE_BASE_URL"); err != nil {
		return nil, err
	}
	if c.StoreAPIKey, err = envStringRequired("STORE_API_KEY"); err != nil {
		return nil, err
	}
	if c.StoreBaseID, err = envStringRequired("STORE_BASE_ID"); err != nil {
		return nil, err
	}
	if c.StoreTableName, err = envString("STORE_TABLE_NAME", "Tickets"); err != nil {
		return nil, err
	}

	mailDeadlineMs, err := envInt("MAIL_DEADLINE_MS", 15000)
	if err != nil {
		return nil, err
	}
	c.MailDeadline = time.Duration(mailDeadlineMs) * time.Millisecond
	if c.MailRetries, err = envInt("MAIL_RETRIES", 3); err != nil {
		return nil, err
	}
	mailBaseDelayMs, err := envInt("MAIL_BASE_DELAY_MS", 2000)
	if err != nil {
		return nil, err
	}
	c.MailBaseDelay = time.Duration(mailBaseDelayMs) * time.Millisecond
	if c.MailEndpoint, err = envStringRequired("MAIL_ENDPOINT"); err != nil {
		return nil, err
	}
	if c.MailAPIKey, err = envStringRequired("MAIL_API_KEY"); err != nil {
		return nil, err
	}

	dedupTTLHours, err := envInt("DEDUP_TTL_HOURS", 168)
	if err != nil {
		return nil, err
	}
	c.DedupTTL = time.Duration(dedupTTLHours) * time.Hour
	if c.DedupStatePath, err = envString("DEDUP_STATE_PATH", ""); err != nil {
		return nil, err
	}

	requestDeadlineMs, err := envInt("REQUEST_DEADLINE_MS", 120000)
	if err != nil {
		return nil, err
	}
	c.RequestDeadline = time.Duration(requestDeadlineMs) * time.Millisecond

	if c.AckTemplateText, err = envString("ACK_TEMPLATE_TEXT", defaultAckTemplateText); err != nil {
		return nil, err
	}
	if c.AckTemplateHTML, err = envString("ACK_TEMPLATE_HTML", defaultAckTemplateHTML); err != nil {
		return nil, err
	}
	if c.AckMarkerPhrase, err = envString("ACK_MARKER_PHRASE", "Call Logged"); err != nil {
		return nil, err
	}

	if c.BindAddr, err = envString("SERVER_BIND", ":8080"); err != nil {
		return nil, err
	}
	if c.LogLoc, err = envString("LOG_PATH", ""); err != nil {
		return nil, err
	}

	return &c, nil
}
