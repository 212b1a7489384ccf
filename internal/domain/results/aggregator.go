package results

import (
	"errors"
	"fmt"
	"strings"

	"pet-skin-triage/internal/domain/diagnosis"
	"pet-skin-triage/internal/domain/discovery"
)

var (
	ErrNoPhone = errors.New("provider has no phone number")
)

// Summary junta un diagnóstico completado con la lista rankeada vigente,
// lista para compartir/actuar (llamar, navegar, exportar).
type Summary struct {
	Diagnosis diagnosis.Result
	Providers []discovery.RankedProvider
}

func Combine(d diagnosis.Result, providers []discovery.RankedProvider) Summary {
	ps := make([]discovery.RankedProvider, len(providers))
	copy(ps, providers)
	return Summary{Diagnosis: d, Providers: ps}
}

// DialURL arma el deep-link de llamada para un provider.
// Providers degradados a placeholder pueden no tener teléfono.
func DialURL(p discovery.RankedProvider) (string, error) {
	phone := strings.TrimSpace(p.Phone)
	if phone == "" {
		return "", ErrNoPhone
	}
	// Normalización mínima: solo dígitos y + sobreviven.
	var b strings.Builder
	for _, r := range phone {
		if (r >= '0' && r <= '9') || r == '+' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "", ErrNoPhone
	}
	return "tel:" + b.String(), nil
}

// NavigateURL arma el hand-off a mapas/navegación hacia el provider.
func NavigateURL(p discovery.RankedProvider) string {
	return fmt.Sprintf("https://www.google.com/maps/dir/?api=1&destination=%f,%f", p.Lat, p.Lng)
}
