package geo

import (
	"context"
	"errors"
	"time"

	"pet-skin-triage/internal/platform/logger"
	"pet-skin-triage/internal/platform/metrics"
	"pet-skin-triage/internal/ports/location"
)

const (
	// ResolveTimeout acota la espera por una posición. Obligatorio:
	// Resolve nunca bloquea más allá de esto.
	ResolveTimeout = 10 * time.Second

	// Coordenada fija de fallback cuando no hay posición
	// (Seoul City Hall).
	FallbackLat = 37.5665
	FallbackLng = 126.9780
)

// Resolver consigue una posición best-effort vía el provider, con espera
// acotada. Nunca falla: cualquier problema degrada al fallback documentado.
type Resolver struct {
	provider location.PositionProvider
	timeout  time.Duration
	log      logger.Logger
	metrics  *metrics.Metrics
}

func NewResolver(provider location.PositionProvider, log logger.Logger, m *metrics.Metrics) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		provider: provider,
		timeout:  ResolveTimeout,
		log:      log,
		metrics:  m,
	}
}

// Resolve devuelve la posición del usuario o el fallback.
// Pide alta precisión y cero reuso de cache. El timeout se aplica aunque el
// provider ignore el ctx (select contra un channel propio).
func (r *Resolver) Resolve(ctx context.Context) Position {
	if r.provider == nil {
		// Plataforma sin capacidad de geolocalización.
		return r.fallback(location.ErrUnavailable)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	type result struct {
		coords location.Coordinates
		err    error
	}

	ch := make(chan result, 1)
	go func() {
		coords, err := r.provider.CurrentPosition(ctx, location.Options{
			HighAccuracy: true,
			Timeout:      r.timeout,
			MaxCacheAge:  0,
		})
		ch <- result{coords: coords, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return r.fallback(res.err)
		}
		r.log.Debug("position resolved", map[string]any{
			"lat": res.coords.Lat,
			"lng": res.coords.Lng,
		})
		return Position{Lat: res.coords.Lat, Lng: res.coords.Lng}
	case <-ctx.Done():
		return r.fallback(ctx.Err())
	}
}

func (r *Resolver) fallback(cause error) Position {
	r.metrics.IncGeoFallback()

	fields := map[string]any{"lat": FallbackLat, "lng": FallbackLng}
	if cause != nil {
		fields["cause"] = cause.Error()
	}

	// PermissionDenied no es fatal: se degrada con aviso visible (el caller
	// expone IsFallback para que la UI lo muestre).
	if errors.Is(cause, location.ErrPermissionDenied) {
		r.log.Info("position permission denied, using fallback", fields)
	} else {
		r.log.Warn("position unavailable, using fallback", fields)
	}

	return Position{Lat: FallbackLat, Lng: FallbackLng, IsFallback: true}
}
