package location

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrPermissionDenied: el usuario (o la plataforma) negó el acceso a la posición.
	ErrPermissionDenied = errors.New("position permission denied")
	// ErrUnavailable: la plataforma no tiene capacidad de geolocalización.
	ErrUnavailable = errors.New("position unavailable")
)

// Options espeja las opciones del proveedor de posición del dispositivo.
type Options struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxCacheAge  time.Duration // 0 = nunca reusar una posición cacheada
}

type Coordinates struct {
	Lat float64
	Lng float64
}

// PositionProvider entrega la posición actual o un error.
// El caller es responsable de acotar la espera vía ctx/Options.Timeout.
type PositionProvider interface {
	CurrentPosition(ctx context.Context, opts Options) (Coordinates, error)
}
