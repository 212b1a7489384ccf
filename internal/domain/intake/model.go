package intake

import (
	"time"

	"pet-skin-triage/internal/domain/capture"
	"pet-skin-triage/internal/domain/diagnosis"
	"pet-skin-triage/internal/domain/geo"
)

// Breed define los valores resueltos de raza que acepta el perfil.
type Breed string

const (
	BreedLabrador        Breed = "labrador"
	BreedGoldenRetriever Breed = "golden_retriever"
	BreedGermanShepherd  Breed = "german_shepherd"
	BreedBulldog         Breed = "bulldog"
	BreedPoodle          Breed = "poodle"
	BreedChihuahua       Breed = "chihuahua"
	BreedBeagle          Breed = "beagle"
	BreedMaltese         Breed = "maltese"
	BreedShihTzu         Breed = "shih_tzu"
	BreedMixed           Breed = "mixed"
	BreedOther           Breed = "other"
)

func knownBreed(b string) bool {
	switch Breed(b) {
	case BreedLabrador, BreedGoldenRetriever, BreedGermanShepherd, BreedBulldog,
		BreedPoodle, BreedChihuahua, BreedBeagle, BreedMaltese, BreedShihTzu,
		BreedMixed, BreedOther:
		return true
	default:
		return false
	}
}

// AffectedArea son las zonas del cuerpo seleccionables en el paso de síntomas.
type AffectedArea string

const (
	AreaHead  AffectedArea = "head"
	AreaEars  AffectedArea = "ears"
	AreaBack  AffectedArea = "back"
	AreaBelly AffectedArea = "belly"
	AreaLegs  AffectedArea = "legs"
	AreaPaws  AffectedArea = "paws"
	AreaTail  AffectedArea = "tail"
)

func knownArea(a string) bool {
	switch AffectedArea(a) {
	case AreaHead, AreaEars, AreaBack, AreaBelly, AreaLegs, AreaPaws, AreaTail:
		return true
	default:
		return false
	}
}

// PruritusMax acota el nivel de picazón (0 = sin picazón).
const PruritusMax = 10

// Record son los datos estructurados de perfil + síntomas recolectados antes
// de la captura. Exactamente uno por sesión activa; se muta in place por paso
// y se congela cuando arranca la submission.
type Record struct {
	PetName   string
	BirthDate *time.Time
	Breed     string
	Weight    string

	PruritusLevel int
	OdorPresent   bool
	HairLoss      bool
	AffectedAreas []string
}

// Session es el estado de trabajo de un wizard activo. La state machine es
// dueña exclusiva del Record y de las imágenes; nadie más los muta.
type Session struct {
	ID     string
	State  State
	Locale string

	Record Record

	Captured   *capture.CapturedImage
	Normalized *capture.NormalizedImage

	Position  *geo.Position
	Diagnosis *diagnosis.Result

	// LastOutcome refleja el resultado del último submit ("diagnosed",
	// "rejected") para que la UI lo muestre tras la transición.
	LastOutcome string

	CreatedAt time.Time
	UpdatedAt time.Time
}
