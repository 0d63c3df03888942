// Package apiclient talks to the rendezvous API on behalf of the navigator
// agent: it forwards fixes, reads positions back and follows the room feed.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"backend-rendezvous/internal/aggregator"
	"backend-rendezvous/internal/position"
	"backend-rendezvous/internal/sampler"
)

// Identity is the device identity issued by /auth/login.
type Identity struct {
	Token  string
	UserID string
}

// StatusError is a non-2xx API response.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("api status %d: %s", e.Code, e.Message)
}

type Client struct {
	baseURL  string
	identity Identity
	http     *http.Client
	logger   *zap.SugaredLogger
	// seqBase keeps sequence numbers of a restarted agent above the ones
	// it wrote before.
	seqBase int64
}

func New(baseURL string, identity Identity, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		identity: identity,
		http:     &http.Client{Timeout: 15 * time.Second},
		logger:   logger,
		seqBase:  time.Now().UnixNano(),
	}
}

// UpdatePosition implements sampler.Forwarder. A write rejected as stale
// lost to a newer one and is not an error.
func (c *Client) UpdatePosition(ctx context.Context, s sampler.Sample) error {
	lat, lon, alt := s.Latitude, s.Longitude, s.Altitude
	req := position.UpdateRequest{Latitude: &lat, Longitude: &lon, Altitude: &alt, Seq: c.seqBase + s.Seq}
	err := c.do(ctx, http.MethodPut, "/positions/me", req, nil)
	if isStatus(err, http.StatusConflict) {
		c.logger.Debugw("stale position write dropped", "seq", s.Seq)
		return nil
	}
	return err
}

// UpdateDistance implements metrics.DistanceWriter.
func (c *Client) UpdateDistance(ctx context.Context, distance float64, seq int64) error {
	req := position.DistanceRequest{Distance: &distance, Seq: c.seqBase + seq}
	err := c.do(ctx, http.MethodPut, "/positions/me/distance", req, nil)
	if isStatus(err, http.StatusConflict) {
		return nil
	}
	return err
}

// Self implements aggregator.Source.
func (c *Client) Self(ctx context.Context) (*aggregator.Position, error) {
	return c.read(ctx, "/positions/me")
}

// Host implements aggregator.Source. A participant outside any room has no
// host and reads nil.
func (c *Client) Host(ctx context.Context) (*aggregator.Position, error) {
	return c.read(ctx, "/positions/host")
}

func (c *Client) read(ctx context.Context, path string) (*aggregator.Position, error) {
	var rec position.Record
	if err := c.do(ctx, http.MethodGet, path, nil, &rec); err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &aggregator.Position{
		UserID:    rec.UserID,
		Latitude:  rec.Latitude,
		Longitude: rec.Longitude,
		Altitude:  rec.Altitude,
		Seq:       rec.Seq,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.identity.Token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func isStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}
