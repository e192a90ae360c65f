// Package srs talks to the external SRS streaming server's HTTP API for
// WebRTC ingest negotiation. It never touches the queue store.
package srs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/expertlive/backend/pkg/apperr"
	"github.com/expertlive/backend/pkg/metrics"
)

const (
	probeTimeout   = 5 * time.Second
	publishTimeout = 10 * time.Second
)

// Client is the media negotiation bridge to SRS.
type Client struct {
	baseURL string // e.g. http://srs-host:1985
	domain  string // domain embedded in webrtc:// stream URLs
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates an SRS API client.
func NewClient(baseURL, domain string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		domain:  domain,
		http:    &http.Client{Timeout: publishTimeout},
		logger:  logger,
	}
}

// publishRequest is the body of POST /rtc/v1/publish/.
type publishRequest struct {
	SDP       string `json:"sdp"`
	StreamURL string `json:"streamurl"`
}

// publishResponse is the SRS negotiation answer.
type publishResponse struct {
	Code int    `json:"code"`
	SDP  string `json:"sdp"`
}

// StreamURL returns the webrtc:// target for a stream key.
func (c *Client) StreamURL(streamKey string) string {
	return fmt.Sprintf("webrtc://%s/live/%s", c.domain, streamKey)
}

// Publish forwards a spectator's SDP offer to SRS and returns its answer
// verbatim. A reachability probe runs first so "upstream down" and
// "negotiation rejected" are distinguishable in logs; both surface to the
// caller as an upstream error.
func (c *Client) Publish(ctx context.Context, streamKey, offer string) (string, error) {
	if err := c.probe(ctx); err != nil {
		return "", err
	}

	streamURL := c.StreamURL(streamKey)
	body, err := json.Marshal(publishRequest{SDP: offer, StreamURL: streamURL})
	if err != nil {
		return "", fmt.Errorf("marshal publish request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.baseURL+"/rtc/v1/publish/", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build publish request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug("forwarding SDP offer to SRS", zap.String("stream_url", streamURL))
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("publish", "error").Inc()
		return "", apperr.Upstream("srs_unreachable", "streaming server request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("publish", "error").Inc()
		return "", apperr.Upstream("srs_unreachable", "read streaming server response", err)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues("publish", "rejected").Inc()
		c.logger.Error("SRS rejected publish",
			zap.Int("status", resp.StatusCode),
			zap.String("stream_url", streamURL),
			zap.ByteString("body", raw),
		)
		return "", apperr.Upstream("srs_rejected",
			fmt.Sprintf("streaming server responded with status %d", resp.StatusCode), nil)
	}

	var out publishResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.SDP == "" {
		metrics.UpstreamRequests.WithLabelValues("publish", "invalid").Inc()
		c.logger.Error("invalid SRS answer", zap.ByteString("body", raw))
		return "", apperr.Upstream("srs_invalid_answer", "no SDP in streaming server answer", err)
	}

	metrics.UpstreamRequests.WithLabelValues("publish", "ok").Inc()
	return out.SDP, nil
}

// probe checks the SRS API is reachable before attempting negotiation.
func (c *Client) probe(ctx context.Context) error {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, c.baseURL+"/api/v1/version", nil)
	if err != nil {
		return fmt.Errorf("build probe request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamRequests.WithLabelValues("probe", "error").Inc()
		c.logger.Error("SRS API unreachable", zap.String("base_url", c.baseURL), zap.Error(err))
		return apperr.Upstream("srs_unreachable", "streaming server is unreachable", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequests.WithLabelValues("probe", "rejected").Inc()
		c.logger.Error("SRS API probe failed", zap.Int("status", resp.StatusCode))
		return apperr.Upstream("srs_unreachable",
			fmt.Sprintf("streaming server API returned status %d", resp.StatusCode), nil)
	}
	metrics.UpstreamRequests.WithLabelValues("probe", "ok").Inc()
	return nil
}
