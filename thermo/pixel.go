package thermo

// Pixel is a single frame cell: a column/row location plus the recorded
// temperature. The empty sentinel, returned by EmptyPixel, has negative
// coordinates; the zero value is a real pixel at (0, 0).
type Pixel struct {
	X           int
	Y           int
	Temperature float64
}

// NewPixel creates a pixel at the given column/row with the recorded
// temperature (deg C, though any linear scale works).
func NewPixel(x, y int, temperature float64) Pixel {
	return Pixel{
		X:           x,
		Y:           y,
		Temperature: temperature,
	}
}

// EmptyPixel returns the sentinel pixel. Empty pixels sit outside the frame
// and are never adjacent to anything.
func EmptyPixel() Pixel {
	return Pixel{
		X:           -1,
		Y:           -1,
		Temperature: -1,
	}
}

// Set overwrites the pixel's location and temperature.
func (p *Pixel) Set(x, y int, temperature float64) {
	p.X = x
	p.Y = y
	p.Temperature = temperature
}

// IsEmpty reports whether the pixel is the sentinel. Negative coordinates
// mean the pixel holds no frame data.
func (p Pixel) IsEmpty() bool {
	return p.X < 0 || p.Y < 0
}

// IsAdjacent reports whether other lies in one of the 8 surrounding cells.
// Diagonals count. A pixel is never adjacent to itself or to an empty pixel.
func (p Pixel) IsAdjacent(other Pixel) bool {
	if p.IsEmpty() || other.IsEmpty() {
		return false
	}
	if p.X == other.X && p.Y == other.Y {
		return false
	}
	return absInt(p.X-other.X) <= 1 && absInt(p.Y-other.Y) <= 1
}
