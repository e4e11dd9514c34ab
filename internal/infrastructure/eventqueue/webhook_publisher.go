package eventqueue

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/rackside/pool-league/internal/domain/match"
	"github.com/rackside/pool-league/internal/platform/logging"
	"github.com/rackside/pool-league/internal/platform/resilience"
)

const (
	headerEventType = "X-Pool-League-Event"
	headerDedupID   = "X-Pool-League-Dedup-Id"

	eventTypeMatchFinalized = "match.finalized"
)

type WebhookPublisherConfig struct {
	TargetURL string
	AuthToken string
	Timeout   time.Duration
	Breaker   resilience.CircuitBreakerConfig
}

// WebhookPublisher delivers finalize events to an external HTTP endpoint.
// Failures are absorbed by the caller's reconciliation path, so the breaker
// only protects the endpoint from hammering while it is down.
type WebhookPublisher struct {
	client    *http.Client
	targetURL string
	authToken string
	breaker   *resilience.CircuitBreaker
	logger    *logging.Logger
}

func NewWebhookPublisher(cfg WebhookPublisherConfig, logger *logging.Logger) (*WebhookPublisher, error) {
	targetURL, err := validateHTTPURL(cfg.TargetURL)
	if err != nil {
		return nil, errors.Wrap(err, "invalid webhook target url")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}

	breakerCfg := resilience.NormalizeCircuitBreakerConfig(cfg.Breaker)
	var breaker *resilience.CircuitBreaker
	if breakerCfg.Enabled {
		breaker = resilience.NewCircuitBreaker(breakerCfg.FailureThreshold, breakerCfg.OpenTimeout, breakerCfg.HalfOpenMaxReq)
	}

	return &WebhookPublisher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		targetURL: targetURL,
		authToken: strings.TrimSpace(cfg.AuthToken),
		breaker:   breaker,
		logger:    logger,
	}, nil
}

func (p *WebhookPublisher) ApplyMatchFinalized(ctx context.Context, event match.FinalizedEvent) error {
	if p.breaker != nil {
		if err := p.breaker.Allow(); err != nil {
			return errors.Wrapf(err, "webhook delivery skipped dedup_id=%s", event.DedupKey())
		}
	}

	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	if err := sonic.ConfigDefault.NewEncoder(buf).Encode(event); err != nil {
		return errors.Wrap(err, "marshal finalize event")
	}

	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(
			attribute.String("webhook.target_url", p.targetURL),
			attribute.String("webhook.event_type", eventTypeMatchFinalized),
			attribute.String("webhook.dedup_id", event.DedupKey()),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.targetURL, bytes.NewReader(buf.Bytes()))
	if err != nil {
		return errors.Wrap(err, "create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerEventType, eventTypeMatchFinalized)
	req.Header.Set(headerDedupID, event.DedupKey())
	if p.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.authToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		p.recordFailure()
		return errors.Wrapf(err, "post finalize event dedup_id=%s", event.DedupKey())
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode/100 != 2 {
		p.recordFailure()
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Newf(
			"post finalize event status=%d dedup_id=%s body=%s",
			resp.StatusCode,
			event.DedupKey(),
			strings.TrimSpace(string(raw)),
		)
	}

	if p.breaker != nil {
		p.breaker.RecordSuccess()
	}
	p.logger.InfoContext(ctx, "finalize event delivered",
		"match_id", event.MatchID,
		"discipline", event.Discipline,
		"dedup_id", event.DedupKey(),
	)

	return nil
}

func (p *WebhookPublisher) recordFailure() {
	if p.breaker != nil {
		p.breaker.RecordFailure()
	}
}

func validateHTTPURL(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", errors.New("value is empty")
	}

	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", errors.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.Newf("%q uses unsupported scheme=%q; expected http or https", candidate, parsed.Scheme)
	}
	if strings.TrimSpace(parsed.Host) == "" {
		return "", errors.Newf("%q has empty host", candidate)
	}

	return candidate, nil
}
