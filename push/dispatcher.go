package push

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrDisabled indicates the dispatcher has no relay endpoint configured.
var ErrDisabled = errors.New("push dispatch disabled")

// DefaultTimeout bounds a single relay request. Push delivery sits on the
// send path as a goroutine, so the bound stays short.
const DefaultTimeout = 5 * time.Second

// payload is the relay's request body.
type payload struct {
	UserID string            `json:"userId"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// Dispatcher posts notification payloads to an HTTP relay endpoint.
type Dispatcher struct {
	endpoint string
	client   *http.Client
}

// NewDispatcher creates a dispatcher for the given relay endpoint. An empty
// endpoint yields a disabled dispatcher whose Send reports ErrDisabled.
func NewDispatcher(endpoint string) *Dispatcher {
	return &Dispatcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: DefaultTimeout},
	}
}

// Enabled reports whether a relay endpoint is configured.
func (d *Dispatcher) Enabled() bool {
	return d.endpoint != ""
}

// Send posts one notification to the relay. Callers treat any returned
// error as advisory: a lost push never fails the operation that caused it.
func (d *Dispatcher) Send(ctx context.Context, userID, title, body string, data map[string]string) error {
	if !d.Enabled() {
		return ErrDisabled
	}

	raw, err := json.Marshal(payload{
		UserID: userID,
		Title:  title,
		Body:   body,
		Data:   data,
	})
	if err != nil {
		return fmt.Errorf("encode push payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("push relay request: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		logrus.WithFields(logrus.Fields{
			"function": "Send",
			"user_id":  userID,
			"status":   resp.StatusCode,
		}).Warn("Push relay rejected notification")
		return fmt.Errorf("push relay status %d", resp.StatusCode)
	}
	return nil
}
