package intake

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"pet-skin-triage/internal/domain/capture"
	"pet-skin-triage/internal/domain/diagnosis"
	"pet-skin-triage/internal/domain/discovery"
	"pet-skin-triage/internal/domain/results"
)

// maxPhotoBytes acota el upload de la foto original.
const maxPhotoBytes = 10 << 20

func RegisterRoutes(r chi.Router, svc *Service, exporter *results.Exporter) {
	r.Route("/sessions", func(sr chi.Router) {
		sr.Post("/", startSessionHandler(svc))
		sr.Get("/{sessionID}", getSessionHandler(svc))

		sr.Post("/{sessionID}/profile", submitProfileHandler(svc))
		sr.Post("/{sessionID}/symptoms", submitSymptomsHandler(svc))
		sr.Post("/{sessionID}/photo", attachPhotoHandler(svc))
		sr.Post("/{sessionID}/submit", submitHandler(svc))

		sr.Post("/{sessionID}/back", eventHandler(svc.Back))
		sr.Post("/{sessionID}/complete", eventHandler(svc.Complete))
		sr.Post("/{sessionID}/restart", eventHandler(svc.Restart))

		sr.Post("/{sessionID}/position", updatePositionHandler(svc))
		sr.Get("/{sessionID}/providers", providersHandler(svc))

		sr.Get("/{sessionID}/result", resultHandler(svc))
		sr.Get("/{sessionID}/result/export", exportHandler(svc, exporter))
	})
}

type sessionResponse struct {
	ID          string             `json:"id"`
	State       string             `json:"state"`
	Locale      string             `json:"locale,omitempty"`
	Record      recordResponse     `json:"record"`
	HasImage    bool               `json:"has_image"`
	Position    *positionResponse  `json:"position,omitempty"`
	Diagnosis   *diagnosisResponse `json:"diagnosis,omitempty"`
	LastOutcome string             `json:"last_outcome,omitempty"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

type recordResponse struct {
	PetName       string     `json:"pet_name"`
	BirthDate     *time.Time `json:"birth_date,omitempty"`
	Breed         string     `json:"breed"`
	Weight        string     `json:"weight"`
	PruritusLevel int        `json:"pruritus_level"`
	OdorPresent   bool       `json:"odor_present"`
	HairLoss      bool       `json:"hair_loss"`
	AffectedAreas []string   `json:"affected_areas"`
}

type positionResponse struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	IsFallback bool    `json:"is_fallback"`
}

type diagnosisResponse struct {
	ConditionName       string  `json:"condition_name"`
	PredictedClassLabel string  `json:"predicted_class_label,omitempty"`
	ConfidencePercent   float64 `json:"confidence_percent"`
	Description         string  `json:"description"`
}

type providerResponse struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Address     string   `json:"address"`
	DistanceKm  float64  `json:"distance_km"`
	Rating      float64  `json:"rating"`
	ReviewCount int      `json:"review_count"`
	Phone       string   `json:"phone"`
	IsOpen      bool     `json:"is_open"`
	Specialties []string `json:"specialties"`
}

type providersResponse struct {
	Phase     string             `json:"phase"`
	Providers []providerResponse `json:"providers"`
	Error     string             `json:"error,omitempty"`
}

func startSessionHandler(svc *Service) http.HandlerFunc {
	type startRequest struct {
		Locale string `json:"locale"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req startRequest
		// Body opcional: sin body => locale default.
		if r.Body != nil {
			_ = json.NewDecoder(io.LimitReader(r.Body, 1<<12)).Decode(&req)
		}

		sess, err := svc.Start(r.Context(), req.Locale)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusCreated, toSessionResponse(sess))
	}
}

func getSessionHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func submitProfileHandler(svc *Service) http.HandlerFunc {
	type profileRequest struct {
		PetName   string `json:"pet_name"`
		BirthDate string `json:"birth_date"` // YYYY-MM-DD
		Breed     string `json:"breed"`
		Weight    string `json:"weight"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req profileRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		var bd *time.Time
		if strings.TrimSpace(req.BirthDate) != "" {
			t, err := time.Parse("2006-01-02", req.BirthDate)
			if err != nil {
				http.Error(w, "birth_date must be YYYY-MM-DD", http.StatusBadRequest)
				return
			}
			bd = &t
		}

		sess, err := svc.SubmitProfile(r.Context(), chi.URLParam(r, "sessionID"), ProfileInput{
			PetName:   req.PetName,
			BirthDate: bd,
			Breed:     req.Breed,
			Weight:    req.Weight,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func submitSymptomsHandler(svc *Service) http.HandlerFunc {
	type symptomsRequest struct {
		PruritusLevel int      `json:"pruritus_level"`
		OdorPresent   bool     `json:"odor_present"`
		HairLoss      bool     `json:"hair_loss"`
		AffectedAreas []string `json:"affected_areas"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req symptomsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}

		sess, err := svc.SubmitSymptoms(r.Context(), chi.URLParam(r, "sessionID"), SymptomsInput{
			PruritusLevel: req.PruritusLevel,
			OdorPresent:   req.OdorPresent,
			HairLoss:      req.HairLoss,
			AffectedAreas: req.AffectedAreas,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

// attachPhotoHandler recibe multipart: file "photo" + el recorte cuadrado en
// coordenadas mostradas (crop_x, crop_y, crop_size) + viewport
// (view_width, view_height).
func attachPhotoHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
			http.Error(w, "invalid multipart body", http.StatusBadRequest)
			return
		}

		file, _, err := r.FormFile("photo")
		if err != nil {
			http.Error(w, "photo file is required", http.StatusBadRequest)
			return
		}
		defer file.Close()

		// Se lee un byte más que el límite para distinguir "justo en el
		// límite" de "excedido" en vez de truncar en silencio.
		raw, err := io.ReadAll(io.LimitReader(file, maxPhotoBytes+1))
		if err != nil {
			http.Error(w, "could not read photo", http.StatusBadRequest)
			return
		}
		if len(raw) > maxPhotoBytes {
			http.Error(w, "photo exceeds the 10MB limit", http.StatusRequestEntityTooLarge)
			return
		}

		crop, view, ok := parseCropForm(r)
		if !ok {
			http.Error(w, "crop_x, crop_y, crop_size, view_width and view_height are required numbers", http.StatusBadRequest)
			return
		}

		sess, err := svc.AttachPhoto(r.Context(), chi.URLParam(r, "sessionID"), PhotoInput{
			Raw:  raw,
			Crop: crop,
			View: view,
		})
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func submitHandler(svc *Service) http.HandlerFunc {
	type submitResponse struct {
		Outcome string          `json:"outcome"`
		Session sessionResponse `json:"session"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sess, outcome, err := svc.Submit(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, submitResponse{
			Outcome: string(outcome.Kind),
			Session: toSessionResponse(sess),
		})
	}
}

func eventHandler(apply func(ctx context.Context, id string) (Session, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := apply(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func updatePositionHandler(svc *Service) http.HandlerFunc {
	type positionRequest struct {
		Lat *float64 `json:"lat"`
		Lng *float64 `json:"lng"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req positionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Lat == nil || req.Lng == nil {
			http.Error(w, "lat and lng are required", http.StatusBadRequest)
			return
		}

		sess, err := svc.UpdatePosition(r.Context(), chi.URLParam(r, "sessionID"), *req.Lat, *req.Lng)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toSessionResponse(sess))
	}
}

func providersHandler(svc *Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := svc.Providers(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, toProvidersResponse(snap))
	}
}

func resultHandler(svc *Service) http.HandlerFunc {
	type resultResponse struct {
		Diagnosis diagnosisResponse  `json:"diagnosis"`
		Providers []providerResponse `json:"providers"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if sess.Diagnosis == nil {
			http.Error(w, "no diagnosis yet", http.StatusConflict)
			return
		}

		snap, err := svc.Providers(r.Context(), sess.ID)
		if err != nil {
			writeError(w, err)
			return
		}

		summary := results.Combine(*sess.Diagnosis, snap.Ranked)
		writeJSON(w, http.StatusOK, resultResponse{
			Diagnosis: toDiagnosisResponse(summary.Diagnosis),
			Providers: toProviderResponses(summary.Providers),
		})
	}
}

func exportHandler(svc *Service, exporter *results.Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := svc.Get(r.Context(), chi.URLParam(r, "sessionID"))
		if err != nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		if sess.Diagnosis == nil {
			http.Error(w, "no diagnosis yet", http.StatusConflict)
			return
		}

		snap, err := svc.Providers(r.Context(), sess.ID)
		if err != nil {
			writeError(w, err)
			return
		}

		png, err := exporter.ExportPNG(results.Combine(*sess.Diagnosis, snap.Ranked))
		if err != nil {
			http.Error(w, "could not render result", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(png)
	}
}

func parseCropForm(r *http.Request) (capture.CropRegion, capture.Viewport, bool) {
	vals := make([]float64, 0, 5)
	for _, key := range []string{"crop_x", "crop_y", "crop_size", "view_width", "view_height"} {
		f, err := strconv.ParseFloat(strings.TrimSpace(r.FormValue(key)), 64)
		if err != nil {
			return capture.CropRegion{}, capture.Viewport{}, false
		}
		vals = append(vals, f)
	}
	return capture.CropRegion{X: vals[0], Y: vals[1], Size: vals[2]},
		capture.Viewport{Width: vals[3], Height: vals[4]},
		true
}

func toSessionResponse(s Session) sessionResponse {
	resp := sessionResponse{
		ID:     s.ID,
		State:  string(s.State),
		Locale: s.Locale,
		Record: recordResponse{
			PetName:       s.Record.PetName,
			BirthDate:     s.Record.BirthDate,
			Breed:         s.Record.Breed,
			Weight:        s.Record.Weight,
			PruritusLevel: s.Record.PruritusLevel,
			OdorPresent:   s.Record.OdorPresent,
			HairLoss:      s.Record.HairLoss,
			AffectedAreas: s.Record.AffectedAreas,
		},
		HasImage:    s.Normalized != nil,
		LastOutcome: s.LastOutcome,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	if resp.Record.AffectedAreas == nil {
		resp.Record.AffectedAreas = []string{}
	}
	if s.Position != nil {
		resp.Position = &positionResponse{Lat: s.Position.Lat, Lng: s.Position.Lng, IsFallback: s.Position.IsFallback}
	}
	if s.Diagnosis != nil {
		d := toDiagnosisResponse(*s.Diagnosis)
		resp.Diagnosis = &d
	}
	return resp
}

func toDiagnosisResponse(d diagnosis.Result) diagnosisResponse {
	return diagnosisResponse{
		ConditionName:       d.ConditionName,
		PredictedClassLabel: d.PredictedClassLabel,
		ConfidencePercent:   d.ConfidencePercent,
		Description:         d.Description,
	}
}

func toProvidersResponse(snap discovery.Snapshot) providersResponse {
	resp := providersResponse{
		Phase:     string(snap.Phase),
		Providers: toProviderResponses(snap.Ranked),
	}
	if snap.Err != nil {
		resp.Error = snap.Err.Error()
	}
	return resp
}

func toProviderResponses(ranked []discovery.RankedProvider) []providerResponse {
	out := make([]providerResponse, 0, len(ranked))
	for _, p := range ranked {
		out = append(out, providerResponse{
			ID:          p.PlaceID,
			Name:        p.Name,
			Address:     p.Address,
			DistanceKm:  p.DistanceKm,
			Rating:      p.Rating,
			ReviewCount: p.ReviewCount,
			Phone:       p.Phone,
			IsOpen:      p.OpenNow,
			Specialties: []string{"veterinary care"},
		})
	}
	return out
}

// writeError mapea la taxonomía de errores del wizard a HTTP:
// - ValidationError / imagen inválida => 422 (bloquea avance, recuperable)
// - transición inválida => 409
// - error transitorio de submission => 502 con flag de retry
// - sesión inexistente => 404
func writeError(w http.ResponseWriter, err error) {
	var vErr *ValidationError
	if errors.As(err, &vErr) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": vErr.Reason,
			"field": vErr.Field,
		})
		return
	}

	switch {
	case errors.Is(err, capture.ErrEncode), errors.Is(err, capture.ErrInvalidInput), errors.Is(err, ErrNoImage):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error()})
	case errors.Is(err, ErrInvalidTransition):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case errors.Is(err, diagnosis.ErrTransient):
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "retryable": true})
	case errors.Is(err, ErrNotFound):
		http.Error(w, "session not found", http.StatusNotFound)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
