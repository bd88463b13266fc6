// Package queue carries prompt lifecycle events from the API process to
// the worker over asynq. A nil *Client drops events, so the API keeps
// working when Redis is down.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/promptvault/promptvault/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) EnqueuePromptEvent(payload PromptEventPayload) error {
	if c == nil {
		return nil
	}
	return c.enqueue(TypePromptEvent, payload, asynq.MaxRetry(3), asynq.Timeout(30*time.Second))
}

func (c *Client) enqueue(taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	if _, err := c.client.Enqueue(task, opts...); err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	return nil
}
