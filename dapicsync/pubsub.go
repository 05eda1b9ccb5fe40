package dapicsync

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/bsm/redislock"
	"github.com/gin-gonic/gin"
	"github.com/grupovitrine/painel_backend/config"
	"github.com/grupovitrine/painel_backend/models"
)

// ScheduledSyncPayload is the message body for scheduled syncs published by
// Cloud Scheduler through Pub/Sub.
type ScheduledSyncPayload struct {
	Scope string `json:"scope"`
}

const (
	ScheduledScopeCurrentMonth = "current_month"
	ScheduledScopeFullHistory  = "full_history"
)

func ValidScheduledScope(scope string) bool {
	return scope == ScheduledScopeCurrentMonth || scope == ScheduledScopeFullHistory
}

type pubSubPushEnvelope struct {
	Message struct {
		Data      []byte `json:"data"`
		MessageId string `json:"messageId"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

func PublishScheduledSync(ctx context.Context, scope string) error {
	topicName := strings.TrimSpace(os.Getenv("DAPIC_SYNC_TOPIC"))
	if topicName == "" {
		topicName = "dapic-sync"
	}

	client, err := config.GetClient(ctx)
	if err != nil {
		return err
	}

	topic := client.Topic(topicName)
	if envBoolDefault("DAPIC_SYNC_CREATE_TOPIC", false) {
		topic, err = config.CreateTopicIfNotExists(client, topicName)
		if err != nil {
			return err
		}
	}

	data, _ := json.Marshal(ScheduledSyncPayload{Scope: scope})
	res := topic.Publish(ctx, &pubsub.Message{Data: data})
	_, err = res.Get(ctx)
	return err
}

// PubSubPushHandler receives scheduled-sync pushes. It always acknowledges
// with 204 so a bad message is not redelivered forever; a distributed lock
// keeps multiple service instances from running the same scheduled sync.
func PubSubPushHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !envBoolDefault("ENABLE_DAPIC_PUBSUB_PUSH_ENDPOINT", true) {
			c.Status(204)
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.Status(204)
			return
		}

		var envelope pubSubPushEnvelope
		if err := json.Unmarshal(body, &envelope); err != nil {
			c.Status(204)
			return
		}

		var payload ScheduledSyncPayload
		if err := json.Unmarshal(envelope.Message.Data, &payload); err != nil {
			c.Status(204)
			return
		}

		runScheduledSync(c.Request.Context(), svc, payload.Scope)
		c.Status(204)
	}
}

func runScheduledSync(ctx context.Context, svc *Service, scope string) {
	locker := config.GetRedisLock()
	if locker != nil {
		lock, err := locker.Obtain(ctx, "dapicsync:scheduled:"+scope, 30*time.Minute, nil)
		if err == nil {
			defer lock.Release(context.Background())
		} else if err == redislock.ErrNotObtained {
			return
		}
	}

	switch scope {
	case ScheduledScopeFullHistory:
		svc.SyncFullHistory(ctx, models.SyncTriggeredScheduled)
	default:
		svc.SyncCurrentMonth(ctx, models.SyncTriggeredScheduled)
	}
}

func envIntDefault(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

func envBoolDefault(key string, def bool) bool {
	val := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch val {
	case "true", "1", "yes", "y", "on":
		return true
	case "false", "0", "no", "n", "off":
		return false
	default:
		return def
	}
}
