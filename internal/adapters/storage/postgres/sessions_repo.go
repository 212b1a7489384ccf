package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"pet-skin-triage/internal/domain/capture"
	"pet-skin-triage/internal/domain/diagnosis"
	"pet-skin-triage/internal/domain/geo"
	"pet-skin-triage/internal/domain/intake"
)

// SessionsRepo persiste las sesiones del wizard. Las imágenes viajan como
// bytea: la sesión tiene que poder pasar datos entre etapas del pipeline
// aunque el proceso cambie; los rankings de providers NO se persisten (viven
// en el engine por generación).
type SessionsRepo struct {
	db *sql.DB
}

func NewSessionsRepo(db *sql.DB) *SessionsRepo {
	return &SessionsRepo{db: db}
}

func (r *SessionsRepo) Create(ctx context.Context, s intake.Session) error {
	areas, err := json.Marshal(s.Record.AffectedAreas)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO intake_sessions (
			id, state, locale,
			pet_name, birth_date, breed, weight,
			pruritus_level, odor_present, hair_loss, affected_areas,
			created_at, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`,
		s.ID,
		string(s.State),
		s.Locale,
		s.Record.PetName,
		s.Record.BirthDate,
		s.Record.Breed,
		s.Record.Weight,
		s.Record.PruritusLevel,
		s.Record.OdorPresent,
		s.Record.HairLoss,
		string(areas),
		s.CreatedAt,
		s.UpdatedAt,
	)
	return err
}

func (r *SessionsRepo) GetByID(ctx context.Context, id string) (intake.Session, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return intake.Session{}, intake.ErrNotFound
	}

	row := r.db.QueryRowContext(ctx, `
		SELECT
			id, state, locale,
			pet_name, birth_date, breed, weight,
			pruritus_level, odor_present, hair_loss, affected_areas,
			raw_image, crop_x, crop_y, crop_size, view_width, view_height,
			normalized_image,
			position_lat, position_lng, position_fallback,
			condition_name, predicted_class, confidence_percent, description,
			last_outcome,
			created_at, updated_at
		FROM intake_sessions
		WHERE id = $1
	`, id)

	var (
		s         intake.Session
		state     string
		areas     string
		rawImage  []byte
		cropX     sql.NullFloat64
		cropY     sql.NullFloat64
		cropSize  sql.NullFloat64
		viewW     sql.NullFloat64
		viewH     sql.NullFloat64
		normImage []byte
		posLat    sql.NullFloat64
		posLng    sql.NullFloat64
		posFb     sql.NullBool
		condName  sql.NullString
		predClass sql.NullString
		confPct   sql.NullFloat64
		descr     sql.NullString
	)

	err := row.Scan(
		&s.ID, &state, &s.Locale,
		&s.Record.PetName, &s.Record.BirthDate, &s.Record.Breed, &s.Record.Weight,
		&s.Record.PruritusLevel, &s.Record.OdorPresent, &s.Record.HairLoss, &areas,
		&rawImage, &cropX, &cropY, &cropSize, &viewW, &viewH,
		&normImage,
		&posLat, &posLng, &posFb,
		&condName, &predClass, &confPct, &descr,
		&s.LastOutcome,
		&s.CreatedAt, &s.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return intake.Session{}, intake.ErrNotFound
	}
	if err != nil {
		return intake.Session{}, err
	}

	s.State = intake.State(state)

	if areas != "" {
		if err := json.Unmarshal([]byte(areas), &s.Record.AffectedAreas); err != nil {
			return intake.Session{}, err
		}
	}

	if len(rawImage) > 0 && cropSize.Valid {
		s.Captured = &capture.CapturedImage{
			RawBytes: rawImage,
			Crop:     capture.CropRegion{X: cropX.Float64, Y: cropY.Float64, Size: cropSize.Float64},
			View:     capture.Viewport{Width: viewW.Float64, Height: viewH.Float64},
		}
	}
	if len(normImage) > 0 {
		s.Normalized = &capture.NormalizedImage{
			PixelWidth:   capture.TargetSize,
			PixelHeight:  capture.TargetSize,
			EncodedBytes: normImage,
		}
	}
	if posLat.Valid && posLng.Valid {
		s.Position = &geo.Position{Lat: posLat.Float64, Lng: posLng.Float64, IsFallback: posFb.Bool}
	}
	if condName.Valid {
		s.Diagnosis = &diagnosis.Result{
			ConditionName:       condName.String,
			PredictedClassLabel: predClass.String,
			ConfidencePercent:   confPct.Float64,
			Description:         descr.String,
		}
	}

	return s, nil
}

func (r *SessionsRepo) Update(ctx context.Context, s intake.Session) error {
	areas, err := json.Marshal(s.Record.AffectedAreas)
	if err != nil {
		return err
	}

	var (
		rawImage  []byte
		cropX     sql.NullFloat64
		cropY     sql.NullFloat64
		cropSize  sql.NullFloat64
		viewW     sql.NullFloat64
		viewH     sql.NullFloat64
		normImage []byte
		posLat    sql.NullFloat64
		posLng    sql.NullFloat64
		posFb     sql.NullBool
		condName  sql.NullString
		predClass sql.NullString
		confPct   sql.NullFloat64
		descr     sql.NullString
	)

	if s.Captured != nil {
		rawImage = s.Captured.RawBytes
		cropX = sql.NullFloat64{Float64: s.Captured.Crop.X, Valid: true}
		cropY = sql.NullFloat64{Float64: s.Captured.Crop.Y, Valid: true}
		cropSize = sql.NullFloat64{Float64: s.Captured.Crop.Size, Valid: true}
		viewW = sql.NullFloat64{Float64: s.Captured.View.Width, Valid: true}
		viewH = sql.NullFloat64{Float64: s.Captured.View.Height, Valid: true}
	}
	if s.Normalized != nil {
		normImage = s.Normalized.EncodedBytes
	}
	if s.Position != nil {
		posLat = sql.NullFloat64{Float64: s.Position.Lat, Valid: true}
		posLng = sql.NullFloat64{Float64: s.Position.Lng, Valid: true}
		posFb = sql.NullBool{Bool: s.Position.IsFallback, Valid: true}
	}
	if s.Diagnosis != nil {
		condName = sql.NullString{String: s.Diagnosis.ConditionName, Valid: true}
		predClass = sql.NullString{String: s.Diagnosis.PredictedClassLabel, Valid: true}
		confPct = sql.NullFloat64{Float64: s.Diagnosis.ConfidencePercent, Valid: true}
		descr = sql.NullString{String: s.Diagnosis.Description, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE intake_sessions SET
			state = $2, locale = $3,
			pet_name = $4, birth_date = $5, breed = $6, weight = $7,
			pruritus_level = $8, odor_present = $9, hair_loss = $10, affected_areas = $11,
			raw_image = $12, crop_x = $13, crop_y = $14, crop_size = $15,
			view_width = $16, view_height = $17,
			normalized_image = $18,
			position_lat = $19, position_lng = $20, position_fallback = $21,
			condition_name = $22, predicted_class = $23, confidence_percent = $24, description = $25,
			last_outcome = $26,
			updated_at = $27
		WHERE id = $1
	`,
		s.ID,
		string(s.State),
		s.Locale,
		s.Record.PetName,
		s.Record.BirthDate,
		s.Record.Breed,
		s.Record.Weight,
		s.Record.PruritusLevel,
		s.Record.OdorPresent,
		s.Record.HairLoss,
		string(areas),
		rawImage,
		cropX, cropY, cropSize,
		viewW, viewH,
		normImage,
		posLat, posLng, posFb,
		condName, predClass, confPct, descr,
		s.LastOutcome,
		s.UpdatedAt,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return intake.ErrNotFound
	}
	return nil
}

// SavePosition toca solo las columnas de posición: los writers concurrentes
// de posición no deben reescribir la fila completa.
func (r *SessionsRepo) SavePosition(ctx context.Context, id string, pos geo.Position, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE intake_sessions SET
			position_lat = $2, position_lng = $3, position_fallback = $4,
			updated_at = $5
		WHERE id = $1
	`, id, pos.Lat, pos.Lng, pos.IsFallback, at)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return intake.ErrNotFound
	}
	return nil
}
