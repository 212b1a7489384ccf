package diagnosis

// Result es el diagnóstico mapeado desde una respuesta exitosa del
// clasificador. Una respuesta de rechazo NO produce Result.
type Result struct {
	ConditionName       string
	PredictedClassLabel string
	ConfidencePercent   float64 // siempre en [0,100]
	Description         string
}

type OutcomeKind string

const (
	OutcomeDiagnosed OutcomeKind = "diagnosed"
	// OutcomeRejected: el clasificador juzgó que la imagen no muestra un
	// animal. Outcome de primera clase, no error.
	OutcomeRejected OutcomeKind = "rejected"
)

type Outcome struct {
	Kind   OutcomeKind
	Result Result // solo válido con Kind=diagnosed
}

// IntakeFields son los datos del intake tal como viajan al clasificador,
// como fields individuales (el backend los lee por separado).
type IntakeFields struct {
	PetName       string
	PetBirthDate  string // YYYY-MM-DD
	PetBreed      string
	Weight        string
	Pruritus      int
	Alopecia      bool
	Odor          bool
	AffectedAreas []string
}
