// Package sink forwards indexed events to external systems. Sinks hang off
// Monitor.OnAny and receive every decoded record in log order; what happens
// past that point is best-effort delivery with the sink's own retry policy.
package sink

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/agentledger/agentledger/internal/ledger/model"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subscription declares one webhook receiver. An empty Kinds list matches
// every event kind.
type Subscription struct {
	URL    string       `mapstructure:"url"`
	Secret string       `mapstructure:"secret"`
	Kinds  []model.Kind `mapstructure:"kinds"`
}

func (s Subscription) wants(kind model.Kind) bool {
	if len(s.Kinds) == 0 {
		return true
	}
	for _, k := range s.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// delivery is the JSON body posted to a receiver.
type delivery struct {
	DeliveryID string       `json:"delivery_id"`
	Kind       model.Kind   `json:"kind"`
	Record     model.Record `json:"record"`
}

// Webhook posts indexed events to config-declared receivers, one signed JSON
// POST per event per subscription.
type Webhook struct {
	subs       []Subscription
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWebhook creates a webhook sink over the given subscriptions.
func NewWebhook(subs []Subscription, logger *zap.Logger) *Webhook {
	return &Webhook{
		subs:       subs,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// Deliver fans the record out to every subscription that wants its kind.
// It is shaped to sit behind Monitor.OnAny; deliveries run in their own
// goroutines so a slow receiver never stalls the poll loop.
func (w *Webhook) Deliver(rec model.Record, _ model.Event) {
	for _, sub := range w.subs {
		if !sub.wants(rec.Kind) {
			continue
		}
		go w.deliver(sub, rec)
	}
}

// deliver sends one event to one receiver with retries.
func (w *Webhook) deliver(sub Subscription, rec model.Record) {
	body, err := json.Marshal(delivery{
		DeliveryID: uuid.New().String(),
		Kind:       rec.Kind,
		Record:     rec,
	})
	if err != nil {
		w.logger.Error("webhook: marshal delivery", zap.Error(err))
		return
	}

	signature := signPayload(body, sub.Secret)

	// Retry with exponential backoff: 1s, 5s, 25s.
	delays := []time.Duration{0, 1 * time.Second, 5 * time.Second, 25 * time.Second}

	for attempt := 1; attempt <= 3; attempt++ {
		if attempt > 1 {
			time.Sleep(delays[attempt])
		}

		success, statusCode, errMsg := w.doDelivery(sub.URL, body, signature)
		if success {
			w.logger.Debug("webhook: delivered",
				zap.String("url", sub.URL),
				zap.Uint64("position", rec.Position),
				zap.Int("status", statusCode),
			)
			return
		}

		w.logger.Warn("webhook: delivery failed",
			zap.String("url", sub.URL),
			zap.Uint64("position", rec.Position),
			zap.Int("attempt", attempt),
			zap.String("error", errMsg),
		)
	}
}

// doDelivery performs a single HTTP POST delivery.
func (w *Webhook) doDelivery(url string, body []byte, signature string) (bool, int, string) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, 0, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Ledger-Signature", signature)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return false, 0, err.Error()
	}
	defer resp.Body.Close()
	io.ReadAll(io.LimitReader(resp.Body, 1024)) //nolint:errcheck

	success := resp.StatusCode >= 200 && resp.StatusCode < 300
	errMsg := ""
	if !success {
		errMsg = fmt.Sprintf("HTTP %d", resp.StatusCode)
	}
	return success, resp.StatusCode, errMsg
}

// signPayload computes an HMAC-SHA256 signature over the delivery body.
func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
