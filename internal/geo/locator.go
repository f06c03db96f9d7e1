package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/orionai/orion/internal/ai"
)

// Locator resolves a client IP to coordinates through the ip-api.com
// JSON endpoint. Lookups happen lazily and never block a dispatch; a
// maps request without a resolved fix simply goes out without one.
type Locator struct {
	BaseURL string
	Client  *http.Client
}

func NewLocator(baseURL string) *Locator {
	if baseURL == "" {
		baseURL = "http://ip-api.com"
	}
	return &Locator{
		BaseURL: baseURL,
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

type ipAPIResp struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (l *Locator) Lookup(ctx context.Context, ip string) (*ai.LatLng, error) {
	if l.Client == nil {
		return nil, errors.New("geo: http client is nil")
	}

	url := fmt.Sprintf("%s/json/%s?fields=status,message,lat,lon", strings.TrimRight(l.BaseURL, "/"), ip)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := l.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("geo: status %d", resp.StatusCode)
	}

	var decoded ipAPIResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Status != "success" {
		msg := decoded.Message
		if msg == "" {
			msg = "lookup failed"
		}
		return nil, fmt.Errorf("geo: %s", msg)
	}
	return &ai.LatLng{Latitude: decoded.Lat, Longitude: decoded.Lon}, nil
}
