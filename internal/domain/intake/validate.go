package intake

import (
	"fmt"
	"strings"
)

// ValidationError bloquea el avance de paso; se muestra inline y es
// totalmente recuperable corrigiendo el campo.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// validateProfile es el predicado de avance de collecting_profile:
// nombre, fecha de nacimiento, raza resuelta y peso no vacío.
func validateProfile(r Record) error {
	if strings.TrimSpace(r.PetName) == "" {
		return &ValidationError{Field: "petName", Reason: "is required"}
	}
	if r.BirthDate == nil {
		return &ValidationError{Field: "birthDate", Reason: "is required"}
	}
	if !knownBreed(strings.TrimSpace(r.Breed)) {
		return &ValidationError{Field: "breed", Reason: "must be a resolved breed value"}
	}
	if strings.TrimSpace(r.Weight) == "" {
		return &ValidationError{Field: "weight", Reason: "is required"}
	}
	return nil
}

// validateSymptoms es el predicado de avance de collecting_symptoms.
func validateSymptoms(r Record) error {
	if r.PruritusLevel < 0 || r.PruritusLevel > PruritusMax {
		return &ValidationError{Field: "pruritus", Reason: fmt.Sprintf("must be between 0 and %d", PruritusMax)}
	}
	seen := map[string]bool{}
	for _, a := range r.AffectedAreas {
		if !knownArea(a) {
			return &ValidationError{Field: "affectedAreas", Reason: "contains unknown area: " + a}
		}
		if seen[a] {
			return &ValidationError{Field: "affectedAreas", Reason: "contains duplicate area: " + a}
		}
		seen[a] = true
	}
	return nil
}
