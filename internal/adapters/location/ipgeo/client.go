package ipgeo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pet-skin-triage/internal/platform/httpclient"
	"pet-skin-triage/internal/ports/location"
)

var (
	ErrUpstream = errors.New("ipgeo upstream error")
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Client implementa location.PositionProvider con geolocalización por IP.
// Precisión de ciudad: sirve como proveedor best-effort cuando el cliente no
// empuja la posición del dispositivo. Options.HighAccuracy/MaxCacheAge no
// aplican a un servicio por IP; el timeout lo acota el ctx del caller.
type Client struct {
	http *httpclient.Client
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, location.ErrUnavailable
	}
	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}
	return &Client{http: hc}, nil
}

type lookupResponse struct {
	Status  string  `json:"status"` // "success" | "fail"
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
}

func (c *Client) CurrentPosition(ctx context.Context, _ location.Options) (location.Coordinates, error) {
	if c == nil || c.http == nil {
		return location.Coordinates{}, location.ErrUnavailable
	}

	var out lookupResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, "/json", nil, nil, &out); err != nil {
		return location.Coordinates{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	if out.Status != "success" {
		if strings.Contains(strings.ToLower(out.Message), "denied") {
			return location.Coordinates{}, location.ErrPermissionDenied
		}
		return location.Coordinates{}, fmt.Errorf("%w: %s", ErrUpstream, out.Message)
	}

	return location.Coordinates{Lat: out.Lat, Lng: out.Lon}, nil
}
