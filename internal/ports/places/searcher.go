package places

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("place not found")
)

type LatLng struct {
	Lat float64
	Lng float64
}

// PlaceRef es el hit mínimo que devuelve la búsqueda gruesa.
// Name puede venir vacío; el detalle llega con Details().
type PlaceRef struct {
	ID   string
	Name string
	Lat  float64
	Lng  float64
}

// Details es el resultado del fetch de enriquecimiento por candidato.
type Details struct {
	Name        string
	Address     string
	Phone       string
	Rating      float64
	ReviewCount int
	OpenNow     bool
	Hours       []string
}

// Searcher expone la capacidad de place-search externa:
// búsqueda por cercanía + detalle por referencia.
type Searcher interface {
	NearbySearch(ctx context.Context, center LatLng, radiusMeters int, category string) ([]PlaceRef, error)
	Details(ctx context.Context, ref PlaceRef, fields []string) (Details, error)
}
