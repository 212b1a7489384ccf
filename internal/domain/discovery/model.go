package discovery

import "pet-skin-triage/internal/ports/places"

// Placeholder values para candidatos cuyo enrichment falló.
// El candidato degradado sigue contando para el top-3.
const (
	PlaceholderAddress = "address unavailable"
	PlaceholderPhone   = ""
)

// Candidate es el hit crudo de la búsqueda gruesa, antes de enriquecer.
type Candidate struct {
	PlaceID string
	Name    string
	Lat     float64
	Lng     float64
}

// EnrichedProvider es un Candidate + el detalle por-candidato.
// Cualquier campo puede ser placeholder si el fetch de ese candidato falló.
type EnrichedProvider struct {
	Candidate

	Address     string
	Phone       string
	Rating      float64
	ReviewCount int
	OpenNow     bool
	Hours       []string

	// Enriched=false marca un candidato degradado a placeholders.
	Enriched bool
}

// RankedProvider es un EnrichedProvider con su distancia a la posición
// resuelta. Miembro de una lista ordenada ascendente, máximo 3 entradas.
type RankedProvider struct {
	EnrichedProvider
	DistanceKm float64
}

func candidateFromRef(ref places.PlaceRef) Candidate {
	return Candidate{
		PlaceID: ref.ID,
		Name:    ref.Name,
		Lat:     ref.Lat,
		Lng:     ref.Lng,
	}
}

func placeholderProvider(c Candidate) EnrichedProvider {
	return EnrichedProvider{
		Candidate: c,
		Address:   PlaceholderAddress,
		Phone:     PlaceholderPhone,
	}
}
