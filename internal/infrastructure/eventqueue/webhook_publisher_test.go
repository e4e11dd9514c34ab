package eventqueue

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/require"

	"github.com/rackside/pool-league/internal/domain/match"
	"github.com/rackside/pool-league/internal/platform/logging"
	"github.com/rackside/pool-league/internal/platform/resilience"
)

func testEvent() match.FinalizedEvent {
	return match.FinalizedEvent{
		MatchID:    "match-1",
		LeagueID:   "league-1",
		Discipline: match.DisciplineNineBall,
		WinnerID:   "player-1",
		LoserID:    "player-2",
	}
}

func TestWebhookPublisher_DeliversEvent(t *testing.T) {
	var gotEventType, gotDedupID, gotAuth string
	var gotBody []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotEventType = r.Header.Get(headerEventType)
		gotDedupID = r.Header.Get(headerDedupID)
		gotAuth = r.Header.Get("Authorization")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	publisher, err := NewWebhookPublisher(WebhookPublisherConfig{
		TargetURL: server.URL,
		AuthToken: "secret",
	}, logging.NewNop())
	require.NoError(t, err)

	event := testEvent()
	require.NoError(t, publisher.ApplyMatchFinalized(context.Background(), event))

	require.Equal(t, eventTypeMatchFinalized, gotEventType)
	require.Equal(t, "match-1:9-ball", gotDedupID)
	require.Equal(t, "Bearer secret", gotAuth)

	var decoded match.FinalizedEvent
	require.NoError(t, sonic.Unmarshal(gotBody, &decoded))
	require.Equal(t, event.MatchID, decoded.MatchID)
	require.Equal(t, event.Discipline, decoded.Discipline)
	require.Equal(t, event.WinnerID, decoded.WinnerID)
}

func TestWebhookPublisher_FailuresOpenBreaker(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	publisher, err := NewWebhookPublisher(WebhookPublisherConfig{
		TargetURL: server.URL,
		Breaker: resilience.CircuitBreakerConfig{
			Enabled:          true,
			FailureThreshold: 2,
			OpenTimeout:      time.Minute,
			HalfOpenMaxReq:   1,
		},
	}, logging.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.Error(t, publisher.ApplyMatchFinalized(ctx, testEvent()))
	require.Error(t, publisher.ApplyMatchFinalized(ctx, testEvent()))

	err = publisher.ApplyMatchFinalized(ctx, testEvent())
	require.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestNewWebhookPublisher_RejectsBadURL(t *testing.T) {
	_, err := NewWebhookPublisher(WebhookPublisherConfig{TargetURL: "ftp://queue.local"}, logging.NewNop())
	require.Error(t, err)

	_, err = NewWebhookPublisher(WebhookPublisherConfig{TargetURL: "   "}, logging.NewNop())
	require.Error(t, err)
}
