// Package analysis implements the cellgraph collaborators on top of an
// llm.Client. Replies are requested as JSON, decoded strictly and cached by
// prompt hash.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/ravi-parthasarathy/cellgraph/pkg/cellgraph"
	"github.com/ravi-parthasarathy/cellgraph/pkg/llm"
)

const (
	defaultCacheSize = 1024
	defaultMaxTokens = 4096
)

// ResponseError reports a model reply that does not have the expected shape.
type ResponseError struct {
	Op     string
	Reason string
	Text   string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("%s: unusable model response: %s", e.Op, e.Reason)
}

// Service is an Analyzer, Suggester and Generator backed by one model.
type Service struct {
	client    llm.Client
	cache     *lru.Cache[uint64, []byte]
	cacheSize int
	maxTokens int
	logger    *slog.Logger
}

var (
	_ cellgraph.Analyzer  = (*Service)(nil)
	_ cellgraph.Suggester = (*Service)(nil)
	_ cellgraph.Generator = (*Service)(nil)
)

// Option configures a Service.
type Option func(*Service)

// WithCacheSize sets the number of cached replies. Zero disables caching.
func WithCacheSize(n int) Option { return func(s *Service) { s.cacheSize = n } }

// WithMaxTokens caps the reply length.
func WithMaxTokens(n int) Option { return func(s *Service) { s.maxTokens = n } }

// WithLogger sets the logger for cache and request events.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// New returns a Service that sends its prompts to client.
func New(client llm.Client, opts ...Option) (*Service, error) {
	if client == nil {
		return nil, errors.New("analysis: nil client")
	}
	s := &Service{client: client, cacheSize: defaultCacheSize, maxTokens: defaultMaxTokens, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	if s.cacheSize > 0 {
		cache, err := lru.New[uint64, []byte](s.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("analysis: cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

// ask sends payload under system and decodes the reply into out. Only
// replies that decode are cached.
func (s *Service) ask(ctx context.Context, op, system string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: encode prompt: %w", op, err)
	}
	key, err := promptKey([]byte(op), []byte(system), body)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if s.cache != nil {
		if text, ok := s.cache.Get(key); ok {
			s.logger.Debug("analysis cache hit", "op", op)
			return decodeStrict(op, text, out)
		}
	}

	resp, err := s.client.Complete(ctx, llm.GenerateRequest{
		System:    system,
		Messages:  []llm.Message{llm.TextMessage(llm.RoleUser, string(body))},
		MaxTokens: s.maxTokens,
		JSON:      true,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.logger.Debug("analysis reply", "op", op, "input_tokens", resp.Usage.InputTokens, "output_tokens", resp.Usage.OutputTokens)

	text := []byte(stripFence(resp.Text()))
	if err := decodeStrict(op, text, out); err != nil {
		return err
	}
	if s.cache != nil {
		s.cache.Add(key, text)
	}
	return nil
}

// stripFence removes a surrounding markdown code fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.ContainsAny(s[:nl], "{[") {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// decodeStrict decodes exactly one JSON value with no unknown fields.
func decodeStrict(op string, text []byte, out any) error {
	if len(bytes.TrimSpace(text)) == 0 {
		return &ResponseError{Op: op, Reason: "empty reply"}
	}
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return &ResponseError{Op: op, Reason: err.Error(), Text: string(text)}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &ResponseError{Op: op, Reason: "trailing data after JSON value", Text: string(text)}
	}
	return nil
}
