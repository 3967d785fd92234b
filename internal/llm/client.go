// Package llm provides the single chat-completion abstraction every
// LLM-backed component (C5, C7, C8, C9) calls through: a schema-constrained
// request/response contract with circuit breaking and JSON-schema
// validation of the result before it is trusted. Modeled on the teacher's
// habit of one small HTTP client per external collaborator (cf.
// O365Ingester's Graph API client), generalized to a chat-completion shape.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sony/gobreaker"

	"github.com/junksamiad/argan-call-log/internal/resilience"
)

// ErrUnavailable is returned when the circuit breaker is open or the
// request otherwise cannot be attempted.
var ErrUnavailable = errors.New("llm: client unavailable")

// ErrSchemaInvalid is returned when the model's response does not validate
// against the supplied response schema.
var ErrSchemaInvalid = errors.New("llm: response failed schema validation")

// Client is the shared chat-completion caller. One Client is constructed at
// startup and shared by every component that needs LLM access.
type Client struct {
	endpoint string
	apiKey   string
	model    string
	httpc    *http.Client
	breaker  *gobreaker.CircuitBreaker
}

// New builds a Client bound to endpoint/apiKey/model. deadline is applied
// per-call as the HTTP client timeout ceiling; callers additionally pass a
// context for cancellation.
func New(endpoint, apiKey, model string, deadline time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		apiKey:   apiKey,
		model:    model,
		httpc:    &http.Client{Timeout: deadline},
		breaker:  resilience.NewBreaker("llm"),
	}
}

type request struct {
	Model          string          `json:"model"`
	SystemPrompt   string          `json:"system_prompt"`
	UserPrompt     string          `json:"user_prompt"`
	ResponseSchema interface{}     `json:"response_schema,omitempty"`
}

type response struct {
	Output gojson.RawMessage `json:"output"`
}

// Call invokes the chat-completion endpoint with a schema-constrained
// request and validates the raw JSON result against schemaDoc (a compiled
// JSON Schema) before decoding it into out. schemaDoc may be nil to skip
// validation.
func (c *Client) Call(ctx context.Context, systemPrompt, userPrompt string, schemaDoc *jsonschema.Schema, schemaJSON interface{}, out interface{}) error {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doCall(ctx, systemPrompt, userPrompt, schemaJSON)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return ErrUnavailable
		}
		return err
	}

	raw := result.(gojson.RawMessage)

	if schemaDoc != nil {
		var v interface{}
		if err := gojson.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
		}
		if err := schemaDoc.Validate(toValidatable(v)); err != nil {
			return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
		}
	}

	if err := gojson.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaInvalid, err)
	}
	return nil
}

func (c *Client) doCall(ctx context.Context, systemPrompt, userPrompt string, schemaJSON interface{}) (interface{}, error) {
	reqBody, err := gojson.Marshal(request{
		Model:          c.model,
		SystemPrompt:   systemPrompt,
		UserPrompt:     userPrompt,
		ResponseSchema: schemaJSON,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpc.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("llm: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var r response
	if err := gojson.Unmarshal(body, &r); err != nil {
		return nil, err
	}
	return r.Output, nil
}

// toValidatable returns v unchanged: a Go interface{} tree as produced by
// goccy/go-json's Unmarshal into interface{} is already the shape
// jsonschema.Validate accepts.
func toValidatable(v interface{}) interface{} {
	return v
}

// Ping performs the lightweight LLM reachability check run once at startup
// (§6 exit code 3 path, surfaced by GET /health): a bare HEAD request that
// confirms the endpoint accepts a connection, bypassing the breaker and
// schema machinery since a completion is not required to succeed, only to
// be reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint, nil)
	if err != nil {
		return err
	}
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return nil
}

// CompileSchema compiles a JSON schema document, given as raw JSON bytes,
// for repeated use by a component.
func CompileSchema(name string, schemaJSON []byte) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return compiler.Compile(name)
}

// MustCompileSchema marshals a Go literal response_schema (as passed to
// Call's schemaJSON argument) and compiles it once at package-init time,
// following the regexp.MustCompile idiom for static, dev-verified input:
// a malformed schema is a programming error, not a runtime condition.
// Components use the result as Call's schemaDoc argument so a response
// missing a required field fails validation instead of unmarshaling into a
// trusted zero value.
func MustCompileSchema(name string, schemaDoc interface{}) *jsonschema.Schema {
	raw, err := gojson.Marshal(schemaDoc)
	if err != nil {
		panic(fmt.Sprintf("llm: schema %s: %v", name, err))
	}
	schema, err := CompileSchema(name, raw)
	if err != nil {
		panic(fmt.Sprintf("llm: schema %s: %v", name, err))
	}
	return schema
}
