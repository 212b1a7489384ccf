package placeapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"pet-skin-triage/internal/platform/httpclient"
	"pet-skin-triage/internal/ports/places"
)

var (
	ErrNotConfigured = errors.New("placeapi client not configured")
	ErrUpstream      = errors.New("placeapi upstream error")
)

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client implementa places.Searcher contra un place-search HTTP:
// - GET /v1/places/nearby?lat=..&lng=..&radius=..&category=..
// - GET /v1/places/{id}?fields=a,b,c
type Client struct {
	http   *httpclient.Client
	apiKey string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}

	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, cfg.Timeout)
	if err != nil {
		return nil, err
	}

	return &Client{
		http:   hc,
		apiKey: strings.TrimSpace(cfg.APIKey),
	}, nil
}

type placeDTO struct {
	ID   string  `json:"id"`
	Name string  `json:"name"`
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
}

type nearbyResponse struct {
	Places []placeDTO `json:"places"`
}

func (c *Client) NearbySearch(ctx context.Context, center places.LatLng, radiusMeters int, category string) ([]places.PlaceRef, error) {
	if c == nil || c.http == nil {
		return nil, ErrNotConfigured
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(center.Lat, 'f', -1, 64))
	q.Set("lng", strconv.FormatFloat(center.Lng, 'f', -1, 64))
	q.Set("radius", strconv.Itoa(radiusMeters))
	q.Set("category", category)

	var out nearbyResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, "/v1/places/nearby?"+q.Encode(), c.headers(), nil, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	refs := make([]places.PlaceRef, 0, len(out.Places))
	for _, p := range out.Places {
		refs = append(refs, places.PlaceRef{ID: p.ID, Name: p.Name, Lat: p.Lat, Lng: p.Lng})
	}
	return refs, nil
}

type detailsDTO struct {
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	Phone       string   `json:"phone"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	OpenNow     bool     `json:"open_now"`
	Hours       []string `json:"hours"`
}

func (c *Client) Details(ctx context.Context, ref places.PlaceRef, fields []string) (places.Details, error) {
	if c == nil || c.http == nil {
		return places.Details{}, ErrNotConfigured
	}
	if strings.TrimSpace(ref.ID) == "" {
		return places.Details{}, places.ErrNotFound
	}

	path := "/v1/places/" + url.PathEscape(ref.ID)
	if len(fields) > 0 {
		path += "?fields=" + url.QueryEscape(strings.Join(fields, ","))
	}

	var out detailsDTO
	if err := c.http.DoJSON(ctx, http.MethodGet, path, c.headers(), nil, &out); err != nil {
		var httpErr *httpclient.HTTPError
		if errors.As(err, &httpErr) && httpErr.StatusCode == http.StatusNotFound {
			return places.Details{}, places.ErrNotFound
		}
		return places.Details{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	return places.Details{
		Name:        out.Name,
		Address:     out.Address,
		Phone:       out.Phone,
		Rating:      out.Rating,
		ReviewCount: out.ReviewCount,
		OpenNow:     out.OpenNow,
		Hours:       out.Hours,
	}, nil
}

func (c *Client) headers() map[string]string {
	if c.apiKey == "" {
		return nil
	}
	return map[string]string{"X-Api-Key": c.apiKey}
}
