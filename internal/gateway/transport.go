package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vytor/drillbot/internal/logger"
)

// Transport delivers plain text to one address on one channel.
type Transport interface {
	Name() string
	SendText(ctx context.Context, address, text string) error
}

// LogTransport writes messages to the log instead of sending them.
type LogTransport struct{}

func (LogTransport) Name() string { return "log" }

func (LogTransport) SendText(ctx context.Context, address, text string) error {
	logger.FromContext(ctx).WithPrefix("log_transport").WithField("to", address).Info("%s", text)
	return nil
}

// HTTPTransport posts every message as JSON to a callback URL.
type HTTPTransport struct {
	url        string
	channel    string
	httpClient *http.Client
}

func NewHTTPTransport(url, channel string) *HTTPTransport {
	return &HTTPTransport{
		url:        url,
		channel:    channel,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type callbackMessage struct {
	Channel string `json:"channel"`
	To      string `json:"to"`
	Text    string `json:"text"`
}

func (t *HTTPTransport) Name() string { return "http:" + t.channel }

func (t *HTTPTransport) SendText(ctx context.Context, address, text string) error {
	log := logger.FromContext(ctx).WithPrefix("http_transport").WithField("to", address)

	body, err := json.Marshal(callbackMessage{Channel: t.channel, To: address, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(body))
	if err != nil {
		log.Error("failed to create request: %v", err)
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		log.Error("callback request failed: %v", err)
		return err
	}
	defer resp.Body.Close()

	log.Debug("callback response received in %v, status=%d", time.Since(start), resp.StatusCode)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("callback status %d: %s", resp.StatusCode, string(msg))
	}
	return nil
}
