package intake

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pet-skin-triage/internal/domain/capture"
	"pet-skin-triage/internal/domain/diagnosis"
	"pet-skin-triage/internal/domain/discovery"
	"pet-skin-triage/internal/domain/geo"
	"pet-skin-triage/internal/platform/logger"
)

var (
	ErrNotFound = errors.New("session not found")
	// ErrNoImage: submit sin imagen normalizada adjunta.
	ErrNoImage = errors.New("no image attached")
)

// Service orquesta el wizard: secuencia la captura, la submission y el
// descubrimiento de providers, y es dueño exclusivo del Record y las
// imágenes de cada sesión activa.
type Service struct {
	repo       Repository
	normalizer *capture.Normalizer
	gateway    *diagnosis.Gateway
	resolver   *geo.Resolver
	newEngine  func() *discovery.Engine
	log        logger.Logger
	now        func() time.Time

	// mu guarda engines y pushed, y serializa el orden posición empujada vs
	// resolución background: quien toma el lock después ve la marca del otro.
	mu      sync.Mutex
	engines map[string]*discovery.Engine
	pushed  map[string]bool
}

func NewService(
	repo Repository,
	normalizer *capture.Normalizer,
	gateway *diagnosis.Gateway,
	resolver *geo.Resolver,
	newEngine func() *discovery.Engine,
	log logger.Logger,
) *Service {
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		repo:       repo,
		normalizer: normalizer,
		gateway:    gateway,
		resolver:   resolver,
		newEngine:  newEngine,
		log:        log,
		now:        time.Now,
		engines:    map[string]*discovery.Engine{},
		pushed:     map[string]bool{},
	}
}

// Start abre una sesión nueva en collecting_profile con Record fresco.
func (s *Service) Start(ctx context.Context, locale string) (Session, error) {
	now := s.now()
	sess := Session{
		ID:        uuid.NewString(),
		State:     StateCollectingProfile,
		Locale:    strings.TrimSpace(locale),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

func (s *Service) Get(ctx context.Context, id string) (Session, error) {
	return s.repo.GetByID(ctx, id)
}

type ProfileInput struct {
	PetName   string
	BirthDate *time.Time
	Breed     string
	Weight    string
}

// SubmitProfile muta el Record in place y avanza si el predicado pasa.
func (s *Service) SubmitProfile(ctx context.Context, id string, in ProfileInput) (Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Session{}, err
	}

	sess.Record.PetName = strings.TrimSpace(in.PetName)
	sess.Record.BirthDate = in.BirthDate
	sess.Record.Breed = strings.TrimSpace(in.Breed)
	sess.Record.Weight = strings.TrimSpace(in.Weight)

	if err := validateProfile(sess.Record); err != nil {
		return Session{}, err
	}

	next, err := Transition(sess.State, EventProfileSubmitted)
	if err != nil {
		return Session{}, err
	}
	sess.State = next

	return s.save(ctx, sess)
}

type SymptomsInput struct {
	PruritusLevel int
	OdorPresent   bool
	HairLoss      bool
	AffectedAreas []string
}

// SubmitSymptoms avanza al paso de captura. Al entrar en awaiting_image se
// dispara en paralelo la resolución de posición + descubrimiento (no bloquea
// el wizard; corre mientras el usuario trabaja la foto).
func (s *Service) SubmitSymptoms(ctx context.Context, id string, in SymptomsInput) (Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Session{}, err
	}

	sess.Record.PruritusLevel = in.PruritusLevel
	sess.Record.OdorPresent = in.OdorPresent
	sess.Record.HairLoss = in.HairLoss
	sess.Record.AffectedAreas = append([]string(nil), in.AffectedAreas...)

	if err := validateSymptoms(sess.Record); err != nil {
		return Session{}, err
	}

	next, err := Transition(sess.State, EventSymptomsSubmitted)
	if err != nil {
		return Session{}, err
	}
	sess.State = next

	saved, err := s.save(ctx, sess)
	if err != nil {
		return Session{}, err
	}

	go s.resolveAndSearch(sess.ID)

	return saved, nil
}

type PhotoInput struct {
	Raw  []byte
	Crop capture.CropRegion
	View capture.Viewport
}

// AttachPhoto normaliza la foto con el recorte elegido. Un ErrEncode bloquea
// el avance hasta que llegue una imagen nueva.
func (s *Service) AttachPhoto(ctx context.Context, id string, in PhotoInput) (Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	if sess.State != StateAwaitingImage {
		return Session{}, ErrInvalidTransition
	}

	captured := capture.CapturedImage{RawBytes: in.Raw, Crop: in.Crop, View: in.View}
	normalized, err := s.normalizer.Normalize(captured)
	if err != nil {
		return Session{}, err
	}

	sess.Captured = &captured
	sess.Normalized = &normalized

	return s.save(ctx, sess)
}

// Submit congela el Record, despacha al clasificador y mapea el outcome:
// - diagnosed: uploading -> showing_diagnosis, guarda el resultado
// - rejected: uploading -> awaiting_image, Record intacto, imagen descartada
// - error transitorio: uploading -> awaiting_image, imagen retenida para retry
func (s *Service) Submit(ctx context.Context, id string) (Session, diagnosis.Outcome, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Session{}, diagnosis.Outcome{}, err
	}
	if sess.Captured == nil || sess.Normalized == nil {
		return Session{}, diagnosis.Outcome{}, ErrNoImage
	}

	next, err := Transition(sess.State, EventSubmissionStarted)
	if err != nil {
		return Session{}, diagnosis.Outcome{}, err
	}
	sess.State = next
	if sess, err = s.save(ctx, sess); err != nil {
		return Session{}, diagnosis.Outcome{}, err
	}

	birthDate := ""
	if sess.Record.BirthDate != nil {
		birthDate = sess.Record.BirthDate.Format("2006-01-02")
	}

	outcome, submitErr := s.gateway.Submit(ctx, diagnosis.SubmitInput{
		OriginalImage:   sess.Captured.RawBytes,
		NormalizedImage: sess.Normalized.EncodedBytes,
		Fields: diagnosis.IntakeFields{
			PetName:       sess.Record.PetName,
			PetBirthDate:  birthDate,
			PetBreed:      sess.Record.Breed,
			Weight:        sess.Record.Weight,
			Pruritus:      sess.Record.PruritusLevel,
			Alopecia:      sess.Record.HairLoss,
			Odor:          sess.Record.OdorPresent,
			AffectedAreas: sess.Record.AffectedAreas,
		},
		Locale: sess.Locale,
	})

	if submitErr != nil {
		sess.State, _ = Transition(sess.State, EventSubmissionFailed)
		if sess, err = s.save(ctx, sess); err != nil {
			return Session{}, diagnosis.Outcome{}, err
		}
		return sess, diagnosis.Outcome{}, submitErr
	}

	switch outcome.Kind {
	case diagnosis.OutcomeRejected:
		sess.State, _ = Transition(sess.State, EventContentRejected)
		sess.Captured = nil
		sess.Normalized = nil
		sess.LastOutcome = string(diagnosis.OutcomeRejected)
	default:
		sess.State, _ = Transition(sess.State, EventDiagnosisReceived)
		result := outcome.Result
		sess.Diagnosis = &result
		sess.LastOutcome = string(diagnosis.OutcomeDiagnosed)
	}

	if sess, err = s.save(ctx, sess); err != nil {
		return Session{}, diagnosis.Outcome{}, err
	}
	return sess, outcome, nil
}

// Back retrocede un paso (prohibido desde uploading).
func (s *Service) Back(ctx context.Context, id string) (Session, error) {
	return s.apply(ctx, id, EventWentBack)
}

// Complete cierra el wizard tras ver el diagnóstico.
func (s *Service) Complete(ctx context.Context, id string) (Session, error) {
	return s.apply(ctx, id, EventCompleted)
}

// Restart: complete -> collecting_profile con Record fresco (reset explícito,
// nada del estado viejo se acumula). El engine de la sesión se descarta.
func (s *Service) Restart(ctx context.Context, id string) (Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Session{}, err
	}

	next, err := Transition(sess.State, EventRestarted)
	if err != nil {
		return Session{}, err
	}

	sess.State = next
	sess.Record = Record{}
	sess.Captured = nil
	sess.Normalized = nil
	sess.Position = nil
	sess.Diagnosis = nil
	sess.LastOutcome = ""

	s.dropEngine(id)

	return s.save(ctx, sess)
}

// UpdatePosition recibe coordenadas empujadas por el cliente (posición de
// dispositivo). Supersede cualquier búsqueda en vuelo y marca la sesión para
// que una resolución background que termine después se descarte: la posición
// del dispositivo gana siempre (latest-wins).
func (s *Service) UpdatePosition(ctx context.Context, id string, lat, lng float64) (Session, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return Session{}, err
	}

	pos := geo.Position{Lat: lat, Lng: lng}

	s.mu.Lock()
	s.pushed[id] = true
	s.engineForLocked(id).Resolve(context.Background(), pos)
	err := s.repo.SavePosition(ctx, id, pos, s.now())
	s.mu.Unlock()
	if err != nil {
		return Session{}, err
	}

	return s.repo.GetByID(ctx, id)
}

// Providers devuelve el snapshot vigente del motor de descubrimiento.
func (s *Service) Providers(ctx context.Context, id string) (discovery.Snapshot, error) {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return discovery.Snapshot{}, err
	}
	return s.engineFor(id).Snapshot(), nil
}

func (s *Service) apply(ctx context.Context, id string, ev Event) (Session, error) {
	sess, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Session{}, err
	}
	next, err := Transition(sess.State, ev)
	if err != nil {
		return Session{}, err
	}
	sess.State = next
	return s.save(ctx, sess)
}

func (s *Service) save(ctx context.Context, sess Session) (Session, error) {
	sess.UpdatedAt = s.now()
	if err := s.repo.Update(ctx, sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// resolveAndSearch corre en background: posición best-effort + descubrimiento.
// Nunca bloquea el wizard; el resolver acota su propia espera. Es solo el
// default cuando el cliente no empujó posición de dispositivo: si durante la
// espera llegó una, el resultado llega tarde y se descarta ENTERO (ni engine
// ni persistencia), para no pisar la posición del usuario con una stale.
func (s *Service) resolveAndSearch(id string) {
	ctx := context.Background()

	pos := s.resolver.Resolve(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pushed[id] {
		s.log.Debug("dropping background position, client already pushed one", map[string]any{"session": id})
		return
	}
	s.engineForLocked(id).Resolve(ctx, pos)

	// Persistencia best-effort, solo de la posición: no reescribe el resto de
	// la fila (una foto adjuntada en paralelo no debe perderse).
	if err := s.repo.SavePosition(ctx, id, pos, s.now()); err != nil && !errors.Is(err, ErrNotFound) {
		s.log.Warn("could not persist resolved position", map[string]any{"session": id, "err": err.Error()})
	}
}

func (s *Service) engineFor(id string) *discovery.Engine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engineForLocked(id)
}

// engineForLocked requiere s.mu tomado.
func (s *Service) engineForLocked(id string) *discovery.Engine {
	if e, ok := s.engines[id]; ok {
		return e
	}
	e := s.newEngine()
	s.engines[id] = e
	return e
}

func (s *Service) dropEngine(id string) {
	s.mu.Lock()
	delete(s.engines, id)
	delete(s.pushed, id)
	s.mu.Unlock()
}
