package diagnosis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"pet-skin-triage/internal/platform/logger"
	"pet-skin-triage/internal/platform/metrics"
	"pet-skin-triage/internal/ports/classifier"
)

var (
	ErrInvalidInput = errors.New("invalid submission input")
	// ErrTransient: fallo de red / backend. Se surfacea al caller con
	// affordance de retry; el gateway nunca reintenta solo.
	ErrTransient = errors.New("submission failed")
)

// Gateway empaqueta el intake + imágenes en una submission multipart y mapea
// la respuesta del clasificador a un Outcome interno.
type Gateway struct {
	cls     classifier.Classifier
	log     logger.Logger
	metrics *metrics.Metrics
}

func NewGateway(cls classifier.Classifier, log logger.Logger, m *metrics.Metrics) *Gateway {
	if log == nil {
		log = logger.Nop()
	}
	return &Gateway{cls: cls, log: log, metrics: m}
}

type SubmitInput struct {
	OriginalImage   []byte
	NormalizedImage []byte
	Fields          IntakeFields
	Locale          string
}

// Submit despacha una sola vez. Tres salidas posibles:
// - Outcome diagnosed (con Result defaulteado campo a campo)
// - Outcome rejected (imagen juzgada no-animal)
// - error (transitorio; el caller decide el retry)
func (g *Gateway) Submit(ctx context.Context, in SubmitInput) (Outcome, error) {
	if g.cls == nil {
		return Outcome{}, fmt.Errorf("%w: no classifier configured", ErrTransient)
	}
	if len(in.OriginalImage) == 0 || len(in.NormalizedImage) == 0 {
		return Outcome{}, fmt.Errorf("%w: both images required", ErrInvalidInput)
	}

	areas, err := json.Marshal(in.Fields.AffectedAreas)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: marshal affected areas: %v", ErrInvalidInput, err)
	}

	sub := classifier.Submission{
		OriginalImage:   in.OriginalImage,
		NormalizedImage: in.NormalizedImage,
		// Fields individuales, nunca un blob serializado único.
		Fields: map[string]string{
			"petName":       in.Fields.PetName,
			"petBirthDate":  in.Fields.PetBirthDate,
			"petBreed":      in.Fields.PetBreed,
			"weight":        in.Fields.Weight,
			"pruritus":      strconv.Itoa(in.Fields.Pruritus),
			"alopecia":      strconv.FormatBool(in.Fields.Alopecia),
			"odor":          strconv.FormatBool(in.Fields.Odor),
			"affectedAreas": string(areas),
			"locale":        in.Locale,
		},
	}

	out, err := g.cls.Classify(ctx, sub)
	if err != nil {
		g.metrics.ObserveSubmission("error")
		g.log.Warn("classifier dispatch failed", map[string]any{"err": err.Error()})
		return Outcome{}, fmt.Errorf("%w: %v", ErrTransient, err)
	}

	if out.Status == classifier.StatusRejected {
		g.metrics.ObserveSubmission("rejected")
		g.log.Info("submission rejected by classifier", nil)
		return Outcome{Kind: OutcomeRejected}, nil
	}

	g.metrics.ObserveSubmission("ok")
	return Outcome{
		Kind:   OutcomeDiagnosed,
		Result: mapResult(out.Payload),
	}, nil
}

// mapResult tolera payloads parcialmente poblados: campo ausente => default
// válido, nunca panic.
func mapResult(p classifier.Payload) Result {
	confidence := 0.0
	if p.Confidence != nil {
		confidence = *p.Confidence * 100
	}
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 100 {
		confidence = 100
	}

	return Result{
		ConditionName:       p.DiseaseName,
		PredictedClassLabel: p.PredictClass,
		ConfidencePercent:   confidence,
		Description:         p.Description,
	}
}
