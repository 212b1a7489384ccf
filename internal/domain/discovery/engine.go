package discovery

import (
	"context"
	"sync"

	"pet-skin-triage/internal/domain/geo"
	"pet-skin-triage/internal/platform/logger"
	"pet-skin-triage/internal/platform/metrics"
	"pet-skin-triage/internal/ports/places"
)

// Phase es el estado del motor de descubrimiento.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseSearching Phase = "searching"
	PhaseEnriching Phase = "enriching"
	PhaseRanked    Phase = "ranked"
)

const (
	// Radio fijo de la búsqueda gruesa.
	SearchRadiusMeters = 5000
	// Categoría que se pide al place-search.
	SearchCategory = "veterinary_care"
	// Máximo de hits crudos a enriquecer (acota el fan-out).
	MaxCandidates = 10
	// Tamaño máximo de la lista final.
	MaxRanked = 3
)

// Snapshot es la vista publicada del motor. Ranked vacío con Phase=ranked es
// un estado terminal válido ("no providers found"), distinto de Err != nil.
type Snapshot struct {
	Phase    Phase
	Position geo.Position
	Ranked   []RankedProvider
	Err      error

	// gen marca la generación que produjo el snapshot; notify la usa para
	// descartar entregas de generaciones superseded que lleguen tarde.
	gen uint64
}

// Engine corre el descubrimiento en dos fases (búsqueda gruesa + enrichment)
// y rankea por distancia. Cada Position nueva abre una generación que
// supersede a la anterior: resultados de una generación vieja que lleguen
// tarde se descartan (latest-wins). Las listas de candidatos/ranked son
// privadas de cada generación.
type Engine struct {
	searcher places.Searcher
	log      logger.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	gen      uint64
	phase    Phase
	position geo.Position
	ranked   []RankedProvider
	err      error

	subs    map[int]func(Snapshot)
	nextSub int

	// notifyMu serializa la entrega a observers y guarda lastNotified, la
	// generación más alta ya entregada. Sin esto, dos notify concurrentes
	// podrían entregar snapshots de generaciones distintas fuera de orden.
	notifyMu     sync.Mutex
	lastNotified uint64
}

func NewEngine(searcher places.Searcher, log logger.Logger, m *metrics.Metrics) *Engine {
	if log == nil {
		log = logger.Nop()
	}
	return &Engine{
		searcher: searcher,
		log:      log,
		metrics:  m,
		phase:    PhaseIdle,
		subs:     map[int]func(Snapshot){},
	}
}

// Subscribe registra un observer con lifecycle explícito: el func devuelto
// lo desregistra. Los observers se invocan fuera del lock en cada cambio.
func (e *Engine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	e.mu.Lock()
	id := e.nextSub
	e.nextSub++
	e.subs[id] = fn
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		delete(e.subs, id)
		e.mu.Unlock()
	}
}

// Snapshot devuelve la vista actual.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() Snapshot {
	ranked := make([]RankedProvider, len(e.ranked))
	copy(ranked, e.ranked)
	return Snapshot{
		Phase:    e.phase,
		Position: e.position,
		Ranked:   ranked,
		Err:      e.err,
		gen:      e.gen,
	}
}

// Resolve arranca una búsqueda para pos, supersediendo cualquier búsqueda en
// vuelo. No bloquea: el trabajo corre en background y se publica vía
// Subscribe/Snapshot.
func (e *Engine) Resolve(ctx context.Context, pos geo.Position) {
	e.mu.Lock()
	e.gen++
	gen := e.gen
	e.phase = PhaseSearching
	e.position = pos
	e.ranked = nil
	e.err = nil
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.metrics.IncDiscoverySearch()
	e.notify(snap)

	go e.run(ctx, gen, pos)
}

func (e *Engine) run(ctx context.Context, gen uint64, pos geo.Position) {
	refs, err := e.searcher.NearbySearch(ctx, places.LatLng{Lat: pos.Lat, Lng: pos.Lng}, SearchRadiusMeters, SearchCategory)
	if err != nil {
		// Fallo transitorio de la búsqueda gruesa: vuelve a idle con err
		// visible; el caller decide reintentar (nunca auto-retry).
		e.commit(gen, func() {
			e.phase = PhaseIdle
			e.err = err
		})
		return
	}

	if len(refs) > MaxCandidates {
		refs = refs[:MaxCandidates]
	}

	// Cero hits: estado terminal válido, no error.
	if len(refs) == 0 {
		e.commit(gen, func() {
			e.phase = PhaseRanked
			e.ranked = []RankedProvider{}
		})
		return
	}

	if !e.commit(gen, func() { e.phase = PhaseEnriching }) {
		return
	}

	enriched := e.enrichAll(ctx, refs)

	e.commit(gen, func() {
		e.phase = PhaseRanked
		e.ranked = rank(pos, enriched, MaxRanked)
	})
}

// commit aplica la mutación solo si gen sigue siendo la generación vigente;
// si no, descarta (resultado stale de una búsqueda superseded). Devuelve si
// se aplicó.
func (e *Engine) commit(gen uint64, apply func()) bool {
	e.mu.Lock()
	if gen != e.gen {
		e.mu.Unlock()
		e.metrics.IncDiscoverySuperseded()
		e.log.Debug("discarding stale search results", map[string]any{"gen": gen})
		return false
	}
	apply()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.notify(snap)
	return true
}

// notify entrega snap a los observers. La entrega es monótona por generación:
// un snapshot de una generación anterior a la última entregada se descarta,
// para que un Resolve nuevo nunca quede pisado por el commit tardío de una
// búsqueda superseded. Los observers corren bajo notifyMu, así que no deben
// llamar a Resolve de forma síncrona desde el callback.
func (e *Engine) notify(snap Snapshot) {
	e.mu.Lock()
	fns := make([]func(Snapshot), 0, len(e.subs))
	for _, fn := range e.subs {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	e.notifyMu.Lock()
	defer e.notifyMu.Unlock()
	if snap.gen < e.lastNotified {
		e.log.Debug("dropping out-of-order snapshot", map[string]any{"gen": snap.gen})
		return
	}
	e.lastNotified = snap.gen

	for _, fn := range fns {
		fn(snap)
	}
}
