package discovery

import (
	"math"
	"sort"

	"pet-skin-triage/internal/domain/geo"
)

const earthRadiusKm = 6371.0

// HaversineKm: distancia de círculo máximo entre dos puntos lat/lng.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := toRadians(lat2 - lat1)
	dLng := toRadians(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRadians(lat1))*math.Cos(toRadians(lat2))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// rank calcula distancias desde pos, ordena ascendente (sort estable: los
// empates conservan el orden de descubrimiento) y trunca a max.
func rank(pos geo.Position, providers []EnrichedProvider, max int) []RankedProvider {
	out := make([]RankedProvider, 0, len(providers))
	for _, p := range providers {
		out = append(out, RankedProvider{
			EnrichedProvider: p,
			DistanceKm:       HaversineKm(pos.Lat, pos.Lng, p.Lat, p.Lng),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceKm < out[j].DistanceKm
	})

	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
