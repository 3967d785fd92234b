// Package log provides the leveled, structured logger used throughout the
// service. It is a trimmed adaptation of the ingest logger found in the
// gravwell ingesters: a small level type, one or more io.Writer sinks, and
// key/value fields carried as rfc5424 structured-data parameters so every
// line can be grepped or shipped to a syslog collector without a format
// change.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/crewjam/rfc5424"
)

type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	CRITICAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	}
	return "UNKNOWN"
}

// KV builds a structured-data field. Non-string values are rendered with
// fmt's default verb.
func KV(name string, value interface{}) rfc5424.SDParam {
	if s, ok := value.(string); ok {
		return rfc5424.SDParam{Name: name, Value: s}
	}
	return rfc5424.SDParam{Name: name, Value: fmt.Sprintf("%v", value)}
}

func KVErr(err error) rfc5424.SDParam {
	if err == nil {
		return KV("error", "")
	}
	return KV("error", err.Error())
}

// Logger is a minimal leveled logger writing to one or more writers.
// Safe for concurrent use.
type Logger struct {
	mtx  sync.Mutex
	wtrs []io.Writer
	lvl  Level
	name string
}

// New creates a Logger writing to wtr at INFO level.
func New(wtr io.Writer) *Logger {
	return &Logger{wtrs: []io.Writer{wtr}, lvl: INFO}
}

// NewDiscard creates a Logger that drops everything; useful in tests.
func NewDiscard() *Logger {
	return New(io.Discard)
}

func (l *Logger) AddWriter(w io.Writer) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.wtrs = append(l.wtrs, w)
}

func (l *Logger) SetLevel(lvl Level) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.lvl = lvl
}

func (l *Logger) SetName(name string) {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	l.name = name
}

func (l *Logger) enabled(lvl Level) bool {
	l.mtx.Lock()
	defer l.mtx.Unlock()
	return lvl >= l.lvl
}

func (l *Logger) output(lvl Level, msg string, sds ...rfc5424.SDParam) {
	if !l.enabled(lvl) {
		return
	}
	var sb strings.Builder
	sb.WriteString(time.Now().UTC().Format(time.RFC3339Nano))
	sb.WriteByte(' ')
	sb.WriteString(lvl.String())
	if l.name != "" {
		sb.WriteByte(' ')
		sb.WriteString(l.name)
	}
	sb.WriteString(" msg=")
	sb.WriteString(strconvQuote(msg))
	for _, sd := range sds {
		sb.WriteByte(' ')
		sb.WriteString(sd.Name)
		sb.WriteByte('=')
		sb.WriteString(strconvQuote(sd.Value))
	}
	sb.WriteByte('\n')
	line := sb.String()

	l.mtx.Lock()
	defer l.mtx.Unlock()
	for _, w := range l.wtrs {
		io.WriteString(w, line)
	}
}

func strconvQuote(s string) string {
	if !strings.ContainsAny(s, " \t\"=") {
		return s
	}
	return fmt.Sprintf("%q", s)
}

func (l *Logger) Debug(msg string, sds ...rfc5424.SDParam)    { l.output(DEBUG, msg, sds...) }
func (l *Logger) Info(msg string, sds ...rfc5424.SDParam)     { l.output(INFO, msg, sds...) }
func (l *Logger) Warn(msg string, sds ...rfc5424.SDParam)     { l.output(WARN, msg, sds...) }
func (l *Logger) Error(msg string, sds ...rfc5424.SDParam)    { l.output(ERROR, msg, sds...) }
func (l *Logger) Critical(msg string, sds ...rfc5424.SDParam) { l.output(CRITICAL, msg, sds...) }

// Fatal logs at CRITICAL and terminates the process. Only used from main.
func (l *Logger) Fatal(msg string, sds ...rfc5424.SDParam) {
	l.output(CRITICAL, msg, sds...)
	os.Exit(1)
}

// KVLogger carries a base set of structured fields appended to every line,
// useful for attaching a correlation_id/ticket_id for the lifetime of one
// webhook request.
type KVLogger struct {
	*Logger
	sds []rfc5424.SDParam
}

func (l *Logger) With(sds ...rfc5424.SDParam) *KVLogger {
	return &KVLogger{Logger: l, sds: sds}
}

func (kv *KVLogger) With(sds ...rfc5424.SDParam) *KVLogger {
	merged := make([]rfc5424.SDParam, 0, len(kv.sds)+len(sds))
	merged = append(merged, kv.sds...)
	merged = append(merged, sds...)
	return &KVLogger{Logger: kv.Logger, sds: merged}
}

func (kv *KVLogger) Debug(msg string, sds ...rfc5424.SDParam) {
	kv.Logger.output(DEBUG, msg, append(append([]rfc5424.SDParam{}, kv.sds...), sds...)...)
}

func (kv *KVLogger) Info(msg string, sds ...rfc5424.SDParam) {
	kv.Logger.output(INFO, msg, append(append([]rfc5424.SDParam{}, kv.sds...), sds...)...)
}

func (kv *KVLogger) Warn(msg string, sds ...rfc5424.SDParam) {
	kv.Logger.output(WARN, msg, append(append([]rfc5424.SDParam{}, kv.sds...), sds...)...)
}

func (kv *KVLogger) Error(msg string, sds ...rfc5424.SDParam) {
	kv.Logger.output(ERROR, msg, append(append([]rfc5424.SDParam{}, kv.sds...), sds...)...)
}
