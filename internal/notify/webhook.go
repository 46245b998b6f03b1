package notify

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Webhook posts events as JSON to a configured URL in the background,
// retrying transient failures.
type Webhook struct {
	httpClient *resty.Client
	url        string
	logger     *zap.Logger
	wg         sync.WaitGroup
}

// NewWebhook builds a webhook publisher. Delivery uses its own timeout so a
// request context that ends with the HTTP call does not cancel it.
func NewWebhook(url string, timeout time.Duration, logger *zap.Logger) *Webhook {
	if logger == nil {
		logger = zap.NewNop()
	}

	restyClient := resty.New()
	restyClient.
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout).
		SetRetryCount(3).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError || r.StatusCode() == http.StatusTooManyRequests
		})

	return &Webhook{
		httpClient: restyClient,
		url:        url,
		logger:     logger,
	}
}

func (w *Webhook) Publish(_ context.Context, evt Event) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		if err := w.send(context.Background(), evt); err != nil {
			w.logger.Warn("webhook delivery failed",
				zap.String("event", evt.Type),
				zap.String("entity_id", evt.EntityID),
				zap.Error(err))
		}
	}()
}

func (w *Webhook) send(ctx context.Context, evt Event) error {
	resp, err := w.httpClient.R().
		SetContext(ctx).
		SetBody(evt).
		Post(w.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode())
	}
	return nil
}

// Close waits for in-flight deliveries.
func (w *Webhook) Close() {
	w.wg.Wait()
}
