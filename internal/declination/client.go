// Package declination looks up the magnetic declination for a location from
// the NOAA geomagnetic calculator.
package declination

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const DefaultURL = "https://www.ngdc.noaa.gov/geomag-web/calculators/calculateDeclination"

var (
	ErrNotJSON            = errors.New("declination service did not return json")
	ErrMissingDeclination = errors.New("declination missing from response")
)

type Client struct {
	BaseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	return &Client{
		BaseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type response struct {
	Declination *float64 `json:"declination"`
	Result      []struct {
		Declination *float64 `json:"declination"`
	} `json:"result"`
}

// Lookup returns the declination in degrees, east positive.
func (c *Client) Lookup(ctx context.Context, lat, lon float64) (float64, error) {
	q := url.Values{}
	q.Set("lat1", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon1", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("resultFormat", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("declination lookup failed: %d %s", resp.StatusCode, string(body))
	}
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil || mediaType != "application/json" {
		return 0, ErrNotJSON
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return 0, fmt.Errorf("decode declination: %w", err)
	}
	if len(out.Result) > 0 && out.Result[0].Declination != nil {
		return *out.Result[0].Declination, nil
	}
	if out.Declination != nil {
		return *out.Declination, nil
	}
	return 0, ErrMissingDeclination
}
