// Package upstream owns the shared HTTP client used to reach LLM APIs:
// one pooled transport, long streaming timeouts, and retry on transient
// transport failures.
package upstream

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	totalTimeout   = 900 * time.Second
	connectTimeout = 60 * time.Second
	keepAlive      = 30 * time.Second

	maxIdleConns        = 100
	maxIdleConnsPerHost = 30
	idleConnTimeout     = 30 * time.Second

	retryAttempts  = 3
	retryBaseDelay = time.Second
)

// Client wraps one pooled http.Client shared by every proxied request.
type Client struct {
	http *http.Client

	// retryDelay is the first back-off interval; tests shorten it.
	retryDelay time.Duration
}

// NewClient builds the shared client. Timeouts suit long-lived streaming
// responses: generous total budget, tighter connect budget.
func NewClient() *Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connectTimeout,
			KeepAlive: keepAlive,
		}).DialContext,
		MaxIdleConns:        maxIdleConns,
		MaxIdleConnsPerHost: maxIdleConnsPerHost,
		IdleConnTimeout:     idleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	return &Client{
		http: &http.Client{
			Timeout:   totalTimeout,
			Transport: transport,
		},
		retryDelay: retryBaseDelay,
	}
}

// Do sends one request with ctx, headers and body as given, without retry.
func (c *Client) Do(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for key, values := range header {
		req.Header[key] = values
	}
	return c.http.Do(req)
}

// DoWithRetry sends the request, retrying transport-level failures up to
// three attempts with exponential back-off starting at one second. HTTP
// error statuses are never retried: the response is returned for the caller
// to forward verbatim.
func (c *Client) DoWithRetry(ctx context.Context, method, url string, header http.Header, body []byte) (*http.Response, error) {
	var lastErr error
	delay := c.retryDelay

	for attempt := 1; attempt <= retryAttempts; attempt++ {
		resp, err := c.Do(ctx, method, url, header, body)
		if err == nil {
			if resp.StatusCode >= 400 {
				log.WithFields(log.Fields{
					"url":    url,
					"status": resp.StatusCode,
				}).Warn("upstream returned error status")
			}
			return resp, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == retryAttempts {
			break
		}

		log.WithFields(log.Fields{
			"url":     url,
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Warn("upstream request failed, retrying")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		delay *= 2
	}
	return nil, lastErr
}

// CloseIdle releases pooled connections, for shutdown.
func (c *Client) CloseIdle() {
	c.http.CloseIdleConnections()
}
