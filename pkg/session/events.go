package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/octave-edge/orp-client/pkg/orp"
)

// notifyChannel is the Redis channel decoded notifications are fanned
// out to.
const notifyChannel = "orp:notify"

// Notifier receives a one-line summary of every decoded notification
// packet a session processes. It exists so independent test harnesses
// and dashboards can observe traffic on a session they don't own,
// without the pipeline taking a hard dependency on any one bus
// implementation.
type Notifier interface {
	Notify(summary string)
}

// RedisNotifier publishes summaries to a Redis channel over go-redis.
// Safe for use from a single session's Pump goroutine.
type RedisNotifier struct {
	client *redis.Client
	ctx    context.Context
}

// NewRedisNotifier wraps an already-connected go-redis client. The
// caller owns the client's lifecycle (Close it when done); the
// Session never closes it.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client, ctx: context.Background()}
}

// Notify publishes summary to notifyChannel. Publish errors are
// swallowed: event fan-out is additive observability, never load-
// bearing for the pipeline's own correctness.
func (r *RedisNotifier) Notify(summary string) {
	r.client.Publish(r.ctx, notifyChannel, summary)
}

// notify builds a one-line summary for notification-shaped decoded
// messages (HANDLER_CALL, SENSOR_CALL, FILE_CONTROL) and forwards it
// to the session's Notifier, if any.
func (s *Session) notify(msg orp.Message) {
	if s.notifier == nil {
		return
	}
	switch msg.Type {
	case orp.HandlerCallNtfy:
		s.notifier.Notify(fmt.Sprintf("handler_call path=%s time=%.6f", msg.Path, msg.Timestamp))
	case orp.SensorCallNtfy:
		s.notifier.Notify(fmt.Sprintf("sensor_call path=%s", msg.Path))
	case orp.FileControlNtfy:
		s.notifier.Notify(fmt.Sprintf("file_control event=%s", msg.Event))
	}
}
