package capture

// CropRegion es el recorte cuadrado elegido por el usuario, expresado en
// coordenadas de la imagen *mostrada* (no en pixels naturales).
type CropRegion struct {
	X    float64
	Y    float64
	Size float64 // lado del cuadrado
}

// Viewport es el tamaño con el que la imagen se mostró en pantalla.
// Sirve para mapear el recorte a pixels naturales.
type Viewport struct {
	Width  float64
	Height float64
}

// CapturedImage es la foto cruda + el recorte elegido.
type CapturedImage struct {
	RawBytes []byte
	Crop     CropRegion
	View     Viewport
}

// NormalizedImage siempre mide exactamente Target×Target,
// sin importar resolución de origen ni tamaño del recorte en pantalla.
type NormalizedImage struct {
	PixelWidth   int
	PixelHeight  int
	EncodedBytes []byte
}
