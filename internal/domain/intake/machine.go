package intake

import (
	"errors"
	"fmt"
)

// State es el paso actual del wizard.
type State string

const (
	StateCollectingProfile  State = "collecting_profile"
	StateCollectingSymptoms State = "collecting_symptoms"
	StateAwaitingImage      State = "awaiting_image"
	StateUploading          State = "uploading"
	StateShowingDiagnosis   State = "showing_diagnosis"
	StateComplete           State = "complete"
)

// Event es lo que le pasó al wizard. La validación de datos ocurre antes de
// emitir el evento; el reducer solo decide transiciones.
type Event string

const (
	EventProfileSubmitted  Event = "profile_submitted"
	EventSymptomsSubmitted Event = "symptoms_submitted"
	EventSubmissionStarted Event = "submission_started"
	EventDiagnosisReceived Event = "diagnosis_received"
	EventContentRejected   Event = "content_rejected"
	EventSubmissionFailed  Event = "submission_failed"
	EventCompleted         Event = "completed"
	EventWentBack          Event = "went_back"
	EventRestarted         Event = "restarted"
)

var ErrInvalidTransition = errors.New("invalid transition")

// Transition es el reducer puro del wizard: (estado, evento) -> estado.
// Reglas:
//   - avance gateado por el predicado de validación de cada paso (en el service)
//   - retroceso permitido siempre, excepto desde uploading (submission en vuelo
//     no cancelable)
//   - rechazo de contenido rutea uploading -> awaiting_image sin tocar el Record
//   - complete vuelve a collecting_profile con Record fresco (reset explícito)
func Transition(s State, ev Event) (State, error) {
	switch s {
	case StateCollectingProfile:
		if ev == EventProfileSubmitted {
			return StateCollectingSymptoms, nil
		}

	case StateCollectingSymptoms:
		switch ev {
		case EventSymptomsSubmitted:
			return StateAwaitingImage, nil
		case EventWentBack:
			return StateCollectingProfile, nil
		}

	case StateAwaitingImage:
		switch ev {
		case EventSubmissionStarted:
			return StateUploading, nil
		case EventWentBack:
			return StateCollectingSymptoms, nil
		}

	case StateUploading:
		switch ev {
		case EventDiagnosisReceived:
			return StateShowingDiagnosis, nil
		case EventContentRejected, EventSubmissionFailed:
			return StateAwaitingImage, nil
		}

	case StateShowingDiagnosis:
		switch ev {
		case EventCompleted:
			return StateComplete, nil
		case EventWentBack:
			return StateAwaitingImage, nil
		}

	case StateComplete:
		switch ev {
		case EventRestarted:
			return StateCollectingProfile, nil
		case EventWentBack:
			return StateShowingDiagnosis, nil
		}
	}

	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, s)
}
