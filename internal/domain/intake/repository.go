package intake

import (
	"context"
	"time"

	"pet-skin-triage/internal/domain/geo"
)

type Repository interface {
	Create(ctx context.Context, s Session) error
	GetByID(ctx context.Context, id string) (Session, error)
	Update(ctx context.Context, s Session) error

	// SavePosition escribe SOLO la posición de la sesión. Existe para que los
	// writers concurrentes de posición (push del cliente, resolución
	// background) no reescriban la fila completa y pisen cambios en paralelo.
	SavePosition(ctx context.Context, id string, pos geo.Position, at time.Time) error
}
