package dermapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"pet-skin-triage/internal/platform/httpclient"
	"pet-skin-triage/internal/ports/classifier"
)

var (
	ErrNotConfigured = errors.New("dermapi client not configured")
	ErrUpstream      = errors.New("dermapi upstream error")
)

// Contrato del clasificador:
// - POST multipart con dos partes binarias + fields individuales
// - 200 => JSON {disease_name, predict_class, confidence, description}
// - 422 => status distinguido "content rejected" (la imagen no muestra un animal)
const (
	classifyPath = "/v1/diagnoses"

	fieldOriginal   = "image"
	fieldNormalized = "croppedImage"
)

type Config struct {
	BaseURL string
	APIKey  string

	// Opcional: header de la API key. Default "X-Api-Key".
	APIKeyHeader string
	Timeout      time.Duration
}

// Client implementa classifier.Classifier contra el backend de diagnóstico.
type Client struct {
	http         *httpclient.Client
	apiKey       string
	apiKeyHeader string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, ErrNotConfigured
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		// Las submissions cargan dos imágenes; timeout más holgado que el default.
		timeout = 30 * time.Second
	}

	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, timeout)
	if err != nil {
		return nil, err
	}

	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}

	return &Client{
		http:         hc,
		apiKey:       strings.TrimSpace(cfg.APIKey),
		apiKeyHeader: h,
	}, nil
}

func (c *Client) Classify(ctx context.Context, sub classifier.Submission) (classifier.Outcome, error) {
	if c == nil || c.http == nil {
		return classifier.Outcome{}, ErrNotConfigured
	}

	headers := map[string]string{}
	if c.apiKey != "" {
		headers[c.apiKeyHeader] = c.apiKey
	}

	status, body, err := c.http.DoMultipart(ctx, classifyPath, headers,
		[]httpclient.FilePart{
			{Field: fieldOriginal, Filename: "original.jpg", Data: sub.OriginalImage},
			{Field: fieldNormalized, Filename: "normalized.jpg", Data: sub.NormalizedImage},
		},
		sub.Fields,
	)
	if err != nil {
		return classifier.Outcome{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	switch {
	case status == http.StatusUnprocessableEntity:
		// Outcome de primera clase, no error.
		return classifier.Outcome{Status: classifier.StatusRejected}, nil
	case status < 200 || status >= 300:
		return classifier.Outcome{}, fmt.Errorf("%w: status=%d", ErrUpstream, status)
	}

	// Payload parcial es válido: los defaults los aplica el gateway.
	var payload classifier.Payload
	if len(body) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return classifier.Outcome{}, fmt.Errorf("%w: invalid json: %v", ErrUpstream, err)
		}
	}

	return classifier.Outcome{Status: classifier.StatusOK, Payload: payload}, nil
}
