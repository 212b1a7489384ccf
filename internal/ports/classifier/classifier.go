package classifier

import "context"

// Status distingue los outcomes del clasificador remoto.
// Rejected NO es un error: es la respuesta distinguida cuando la imagen
// no muestra un animal (p.ej. una persona).
type Status int

const (
	StatusOK Status = iota
	StatusRejected
)

// Submission es el request tal como lo espera el backend: dos partes
// binarias + fields de formulario individuales.
type Submission struct {
	OriginalImage   []byte
	NormalizedImage []byte
	Fields          map[string]string
}

// Payload es la respuesta JSON del clasificador. Confidence viene en 0..1
// y puede faltar; por eso puntero.
type Payload struct {
	DiseaseName  string   `json:"disease_name"`
	PredictClass string   `json:"predict_class"`
	Confidence   *float64 `json:"confidence"`
	Description  string   `json:"description"`
}

type Outcome struct {
	Status  Status
	Payload Payload
}

// Classifier despacha una submission una sola vez (sin auto-retry).
// Errores de red/5xx se devuelven como error; Rejected llega como Outcome.
type Classifier interface {
	Classify(ctx context.Context, sub Submission) (Outcome, error)
}
