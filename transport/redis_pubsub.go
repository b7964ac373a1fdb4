package transport

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/chhz0/superv/core"
	"github.com/chhz0/superv/types"
)

// Event names carried on the wire.
const (
	EventTaskAssigned  = "taskAssigned"
	EventTaskCompleted = "taskCompleted"
	EventTaskFailed    = "taskFailed"
	EventWorkerOnline  = "workerOnline"
	EventWorkerOffline = "workerOffline"
)

var EventChannel = "superv_events"

// Envelope is the published form of a lifecycle event.
type Envelope struct {
	Event    string            `json:"event"`
	NodeID   string            `json:"nodeId"`
	Task     *types.Task       `json:"task,omitempty"`
	Worker   *types.Worker     `json:"worker,omitempty"`
	Result   *types.TaskResult `json:"result,omitempty"`
	WorkerID string            `json:"workerId,omitempty"`
	Error    string            `json:"error,omitempty"`
	At       time.Time         `json:"at"`
}

// RedisPubSub mirrors orchestrator lifecycle events onto a redis
// channel so dashboards and sibling supervisors can watch the fleet.
// It implements core.Events.
type RedisPubSub struct {
	core.NopEvents

	client *redis.Client
	nodeID string
	logger *log.Logger
}

func NewRedisPubSub(addr, password string, db int) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisPubSub{
		client: client,
		nodeID: uuid.New().String(),
		logger: log.New(log.Writer(), "[transport] ", log.LstdFlags),
	}, nil
}

func (t *RedisPubSub) publish(env Envelope) {
	env.NodeID = t.nodeID
	env.At = time.Now()

	data, err := json.Marshal(env)
	if err != nil {
		t.logger.Printf("marshal %s event: %v", env.Event, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := t.client.Publish(ctx, EventChannel, data).Err(); err != nil {
		t.logger.Printf("publish %s event: %v", env.Event, err)
	}
}

func (t *RedisPubSub) OnTaskAssigned(task *types.Task, workerID string) {
	t.publish(Envelope{Event: EventTaskAssigned, Task: task, WorkerID: workerID})
}

func (t *RedisPubSub) OnTaskCompleted(res *types.TaskResult) {
	t.publish(Envelope{Event: EventTaskCompleted, Result: res, WorkerID: res.WorkerID})
}

func (t *RedisPubSub) OnTaskFailed(task *types.Task, errMsg string) {
	t.publish(Envelope{Event: EventTaskFailed, Task: task, Error: errMsg})
}

func (t *RedisPubSub) OnWorkerOnline(w *types.Worker) {
	t.publish(Envelope{Event: EventWorkerOnline, Worker: w, WorkerID: w.ID})
}

func (t *RedisPubSub) OnWorkerOffline(w *types.Worker) {
	t.publish(Envelope{Event: EventWorkerOffline, Worker: w, WorkerID: w.ID})
}

// Subscribe streams raw event payloads published on the channel until
// the context is done.
func (t *RedisPubSub) Subscribe(ctx context.Context) (<-chan []byte, error) {
	pubsub := t.client.Subscribe(ctx, EventChannel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	out := make(chan []byte, 100)
	go func() {
		defer close(out)
		defer pubsub.Close()
		for {
			select {
			case msg, ok := <-pubsub.Channel():
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (t *RedisPubSub) Close() error {
	return t.client.Close()
}
