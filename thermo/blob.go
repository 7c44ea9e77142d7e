package thermo

// Blob is an online aggregate of connected foreground pixels. It stores no
// pixel list; each added pixel is absorbed into the running statistics
// (count, bounding box, centroid, mean temperature). A blob with zero
// pixels is inactive.
type Blob struct {
	NumPixels          int
	Min                Coord
	Max                Coord
	Centroid           Point
	Width              int
	Height             int
	AspectRatio        float64
	AverageTemperature float64

	totalX   float64
	totalY   float64
	assigned bool
}

// Clear resets the blob to empty and inactive. The assigned flag is cleared
// too.
func (b *Blob) Clear() {
	*b = Blob{}
}

// AddPixel absorbs a pixel into the blob, updating the running mean
// temperature, bounds and centroid. Nothing prevents the same pixel from
// being added twice; segmentation guarantees it never is.
func (b *Blob) AddPixel(pixel Pixel) {
	b.NumPixels++
	n := float64(b.NumPixels)
	b.AverageTemperature = (b.AverageTemperature*(n-1) + pixel.Temperature) / n
	b.addBounds(pixel.X, pixel.Y)
	b.addCentroid(float64(pixel.X), float64(pixel.Y))
}

// Copy overwrites the blob with another blob's state, running sums included.
func (b *Blob) Copy(other Blob) {
	*b = other
}

// Size returns the number of pixels absorbed so far.
func (b *Blob) Size() int {
	return b.NumPixels
}

// IsActive reports whether the blob holds at least one pixel.
func (b *Blob) IsActive() bool {
	return b.NumPixels > 0
}

// SetAssigned marks the blob as claimed by a track during association.
func (b *Blob) SetAssigned() {
	b.assigned = true
}

// ClearAssigned releases the blob for association again.
func (b *Blob) ClearAssigned() {
	b.assigned = false
}

// IsAssigned reports whether a track has claimed this blob. Unassigned
// active blobs left after association seed new tracks.
func (b *Blob) IsAssigned() bool {
	return b.assigned
}

// addBounds grows the bounding box to cover the new pixel and refreshes
// width, height and aspect ratio. The first pixel pins min = max, so the
// height of an active blob is always at least 1.
func (b *Blob) addBounds(x, y int) {
	if b.NumPixels == 1 {
		b.Min = Coord{X: x, Y: y}
		b.Max = Coord{X: x, Y: y}
	} else {
		if x > b.Max.X {
			b.Max.X = x
		}
		if x < b.Min.X {
			b.Min.X = x
		}
		if y > b.Max.Y {
			b.Max.Y = y
		}
		if y < b.Min.Y {
			b.Min.Y = y
		}
	}

	b.Width = b.Max.X - b.Min.X + 1
	b.Height = b.Max.Y - b.Min.Y + 1
	b.AspectRatio = float64(b.Width) / float64(b.Height)
}

func (b *Blob) addCentroid(x, y float64) {
	b.totalX += x
	b.totalY += y
	b.Centroid.X = b.totalX / float64(b.NumPixels)
	b.Centroid.Y = b.totalY / float64(b.NumPixels)
}
