package geo

// Position es la posición resuelta del usuario.
// IsFallback=true marca una resolución negada / sin capacidad / con timeout.
type Position struct {
	Lat        float64
	Lng        float64
	IsFallback bool
}
