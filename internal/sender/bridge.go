package sender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

// BridgeClient calls the WhatsApp bridge over HTTP. Every call goes through a
// circuit breaker that opens after five consecutive transport failures.
type BridgeClient struct {
	baseURL string
	http    *http.Client
	cb      *gobreaker.CircuitBreaker
	log     logrus.FieldLogger
}

func NewBridgeClient(baseURL string, timeout time.Duration, log logrus.FieldLogger) *BridgeClient {
	c := &BridgeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		log:     log,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "whatsapp-bridge",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			}).Warn("Circuit breaker state changed")
		},
	})
	return c
}

type sendRequest struct {
	Number  string `json:"number"`
	Message string `json:"message"`
}

type sendResponse struct {
	Success   bool   `json:"success"`
	MessageID string `json:"messageId"`
	Error     string `json:"error"`
}

func (c *BridgeClient) Deliver(ctx context.Context, phone, text string) (Result, error) {
	var resp sendResponse
	if err := c.call(ctx, http.MethodPost, "/send", sendRequest{Number: phone, Message: text}, &resp); err != nil {
		return Result{}, err
	}
	if !resp.Success {
		reason := resp.Error
		if reason == "" {
			reason = "rejected by bridge"
		}
		return Result{Accepted: false, Error: reason}, nil
	}
	return Result{Accepted: true, ProviderMessageID: resp.MessageID}, nil
}

func (c *BridgeClient) CheckExists(ctx context.Context, phone string) (bool, error) {
	var resp struct {
		Exists bool `json:"exists"`
	}
	if err := c.call(ctx, http.MethodGet, "/check/"+url.PathEscape(phone), nil, &resp); err != nil {
		return false, err
	}
	return resp.Exists, nil
}

func (c *BridgeClient) MarkRead(ctx context.Context, phone string) error {
	var resp struct {
		Success bool `json:"success"`
	}
	if err := c.call(ctx, http.MethodPost, "/mark-read", map[string]string{"number": phone}, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("bridge refused mark-read for %s", phone)
	}
	return nil
}

// call treats network errors and 5xx answers as breaker failures. Other
// statuses are decoded because the bridge reports rejections in the body.
func (c *BridgeClient) call(ctx context.Context, method, path string, body, out interface{}) error {
	_, err := c.cb.Execute(func() (interface{}, error) {
		var reader *bytes.Reader
		if body != nil {
			buf, err := json.Marshal(body)
			if err != nil {
				return nil, errors.Wrap(err, "encode bridge request")
			}
			reader = bytes.NewReader(buf)
		} else {
			reader = bytes.NewReader(nil)
		}

		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return nil, errors.Wrap(err, "build bridge request")
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")

		res, err := c.http.Do(req)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", method, path)
		}
		defer res.Body.Close()

		if res.StatusCode >= http.StatusInternalServerError {
			return nil, fmt.Errorf("%s %s: bridge returned %d", method, path, res.StatusCode)
		}
		if err := json.NewDecoder(res.Body).Decode(out); err != nil {
			return nil, errors.Wrapf(err, "decode %s response", path)
		}
		return nil, nil
	})
	return err
}

var _ MessageSender = (*BridgeClient)(nil)
