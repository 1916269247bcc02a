package photo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"facestudio/internal/domain"
	"facestudio/internal/infra"
)

// Event describes one task state change.
type Event struct {
	BatchID            string            `json:"batch_id"`
	TaskID             string            `json:"task_id"`
	TemplateID         int64             `json:"template_id"`
	Status             domain.TaskStatus `json:"status"`
	Progress           int               `json:"progress"`
	ResultURLs         []string          `json:"result_urls,omitempty"`
	ErrorMessage       string            `json:"error_message,omitempty"`
	TemplateDowngraded bool              `json:"template_downgraded,omitempty"`
	At                 time.Time         `json:"at"`
}

// Notifier forwards task events to whatever delivers them to clients.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Publisher is the part of *redis.Client the notifier uses.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// ChannelPrefix prefixes the per-batch pub/sub channel.
const ChannelPrefix = "photo:batch:"

// RedisNotifier publishes events as JSON on photo:batch:<batch_id>.
type RedisNotifier struct {
	pub Publisher
}

func NewRedisNotifier(pub Publisher) *RedisNotifier {
	return &RedisNotifier{pub: pub}
}

func (n *RedisNotifier) Notify(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("photo: encode event: %w", err)
	}
	if err := n.pub.Publish(ctx, ChannelPrefix+event.BatchID, payload).Err(); err != nil {
		return fmt.Errorf("photo: publish event: %w", err)
	}
	return nil
}

// LogNotifier writes events to the log; used when Redis is not configured.
type LogNotifier struct {
	Logger *infra.Logger
}

func (n LogNotifier) Notify(_ context.Context, event Event) error {
	if n.Logger == nil {
		return nil
	}
	n.Logger.Info().
		Str("batch_id", event.BatchID).
		Str("task_id", event.TaskID).
		Str("status", string(event.Status)).
		Int("progress", event.Progress).
		Msg("photo task event")
	return nil
}
