package discovery

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"pet-skin-triage/internal/ports/places"
)

// detailFields son los campos que pedimos por candidato en el enrichment.
var detailFields = []string{"name", "address", "phone", "open_now", "rating", "review_count", "hours"}

// enrichAll hace fan-out concurrente de Details por candidato y join
// all-complete: el batch termina cuando TODOS los fetches resolvieron,
// nunca al primero. Un fallo degrada SOLO ese candidato a placeholders;
// jamás aborta el batch (por eso los workers no devuelven error).
func (e *Engine) enrichAll(ctx context.Context, refs []places.PlaceRef) []EnrichedProvider {
	start := time.Now()

	out := make([]EnrichedProvider, len(refs))

	g, ctx := errgroup.WithContext(ctx)
	for i, ref := range refs {
		g.Go(func() error {
			det, err := e.searcher.Details(ctx, ref, detailFields)
			if err != nil {
				e.metrics.IncEnrichmentFailure()
				e.log.Warn("enrichment failed, degrading to placeholder", map[string]any{
					"place_id": ref.ID,
					"err":      err.Error(),
				})
				out[i] = placeholderProvider(candidateFromRef(ref))
				return nil
			}

			c := candidateFromRef(ref)
			if det.Name != "" {
				c.Name = det.Name
			}
			out[i] = EnrichedProvider{
				Candidate:   c,
				Address:     det.Address,
				Phone:       det.Phone,
				Rating:      det.Rating,
				ReviewCount: det.ReviewCount,
				OpenNow:     det.OpenNow,
				Hours:       det.Hours,
				Enriched:    true,
			}
			return nil
		})
	}
	_ = g.Wait()

	e.metrics.ObserveEnrichmentBatch(time.Since(start))
	return out
}
