package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"github.com/mactrac-proxy/internal/domain"
	"github.com/mactrac-proxy/internal/infrastructure/openai"
)

// NoURL is recorded when a payload carries no source url.
const NoURL = "<no-url>"

// ErrInvalidUpstreamBody means the upstream answered 2xx with a body that is not JSON.
// It is not an upstream status failure and surfaces as an internal error.
var ErrInvalidUpstreamBody = errors.New("upstream returned a non-JSON body")

// Upstream performs a single completion call.
type Upstream interface {
	Complete(ctx context.Context, payload []byte) (*openai.Response, error)
}

// Observer is notified with the source url of every forwarded request.
// Recent returns what it currently holds, oldest first.
type Observer interface {
	Record(url string)
	Recent() []string
}

type Service interface {
	Complete(ctx context.Context, raw []byte) (*openai.Response, error)
}

type ServiceDeps struct {
	Upstream     Upstream
	Observer     Observer // optional
	DefaultModel string
	Logger       *slog.Logger
}

type service struct {
	upstream     Upstream
	observer     Observer
	defaultModel string
	log          *slog.Logger
}

func NewService(d ServiceDeps) Service {
	s := &service{
		upstream:     d.Upstream,
		observer:     d.Observer,
		defaultModel: d.DefaultModel,
		log:          d.Logger,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s
}

// Complete validates and normalizes raw, then forwards it upstream once.
// Upstream failures surface as *openai.StatusError or wrap openai.ErrNetwork.
func (s *service) Complete(ctx context.Context, raw []byte) (*openai.Response, error) {
	incoming, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}
	payload, err := Normalize(incoming, s.defaultModel)
	if err != nil {
		return nil, err
	}
	if !hasMessages(payload) {
		return nil, domain.ErrNoMessages
	}

	url := sourceURL(incoming, payload)
	if s.observer != nil {
		s.observer.Record(url)
		if s.log.Enabled(ctx, slog.LevelDebug) {
			recent := s.observer.Recent()
			s.log.DebugContext(ctx, "recent source urls", "count", len(recent), "urls", recent)
		}
	}

	s.log.InfoContext(ctx, "proxying completion",
		"model", payload["model"],
		"messages", messageCount(payload),
		"keys", keys(payload),
		"url", url,
	)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload: %w", err)
	}

	resp, err := s.upstream.Complete(ctx, body)
	if err != nil {
		var se *openai.StatusError
		if errors.As(err, &se) {
			s.log.WarnContext(ctx, "upstream rejected completion", "status", se.Status)
		} else {
			s.log.ErrorContext(ctx, "upstream call failed", "err", err)
		}
		return nil, err
	}
	s.log.InfoContext(ctx, "upstream responded", "status", resp.Status)

	if !json.Valid(resp.Body) {
		return nil, ErrInvalidUpstreamBody
	}
	return resp, nil
}

// decodeObject parses raw as a JSON object, keeping numbers exact.
func decodeObject(raw []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty request body: %w", domain.ErrBadRequest)
		}
		return nil, fmt.Errorf("invalid JSON body: %w", domain.ErrBadRequest)
	}
	obj, ok := v.(map[string]any)
	if !ok || obj == nil {
		return nil, fmt.Errorf("request body must be a JSON object: %w", domain.ErrBadRequest)
	}
	return obj, nil
}

func sourceURL(incoming, payload map[string]any) string {
	for _, m := range []map[string]any{incoming, payload} {
		if u, ok := m["url"].(string); ok && u != "" {
			return u
		}
	}
	return NoURL
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
