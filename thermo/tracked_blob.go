package thermo

import (
	"math"

	kalman_filter "github.com/LdDl/kalman-filter"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Dissimilarity penalty weights. The ratios between them matter, not the
// absolute scale: position and area differences are cheap, temperature and
// shape differences are expensive.
const (
	PositionPenalty    = 2.0
	AreaPenalty        = 2.0
	TemperaturePenalty = 10.0
	AspectRatioPenalty = 10.0
)

// TrackedBlob carries a blob across frames. It holds the latest blob
// snapshot, the predicted position of the next observation, and the net
// travel accumulated since tracking began. When the tracker runs with
// Kalman prediction the per-track filter replaces the constant-velocity
// extrapolation for the predicted position.
type TrackedBlob struct {
	blob              Blob
	id                uuid.UUID
	predictedPosition Point
	travel            Point
	hasUpdated        bool
	predictor         *kalman_filter.Kalman2D
}

// Clear wipes the track. The embedded blob becomes inactive, travel and
// identity are lost, and the predicted position returns to the sentinel.
func (tb *TrackedBlob) Clear() {
	tb.blob.Clear()
	tb.id = uuid.Nil
	tb.predictedPosition = Point{X: -1, Y: -1}
	tb.travel = Point{}
	tb.hasUpdated = false
	tb.predictor = nil
}

// Set starts tracking a blob. Any previous tracking state is discarded and
// a fresh identity is assigned. The predicted position stays at the
// sentinel: a first observation has no prior motion to extrapolate from.
func (tb *TrackedBlob) Set(blob Blob) {
	tb.Clear()
	tb.blob.Copy(blob)
	tb.id = uuid.New()
	tb.hasUpdated = true
}

// UpdateBlob folds a matched observation into the track. The centroid
// delta since the previous observation extends the travel vector and, in
// the default configuration, extrapolates the next predicted position.
// With a Kalman predictor attached the observation feeds the filter
// instead and the prediction is produced by PredictNextPosition on the
// next frame.
func (tb *TrackedBlob) UpdateBlob(blob Blob) error {
	movement := Point{
		X: blob.Centroid.X - tb.blob.Centroid.X,
		Y: blob.Centroid.Y - tb.blob.Centroid.Y,
	}

	if tb.predictor == nil {
		tb.predictedPosition = Point{
			X: blob.Centroid.X + movement.X,
			Y: blob.Centroid.Y + movement.Y,
		}
	} else {
		if err := tb.predictor.Update(blob.Centroid.X, blob.Centroid.Y); err != nil {
			return errors.Wrap(err, "Can't update track predictor")
		}
	}

	tb.travel.X += movement.X
	tb.travel.Y += movement.Y
	tb.blob.Copy(blob)
	tb.hasUpdated = true
	return nil
}

// PredictNextPosition advances the Kalman predictor one step and stores
// its state as the predicted position. It does nothing for tracks running
// the default constant-velocity extrapolation, where UpdateBlob already
// maintains the prediction.
func (tb *TrackedBlob) PredictNextPosition() {
	if tb.predictor == nil {
		return
	}
	tb.predictor.Predict()
	stateX, stateY := tb.predictor.GetState()
	tb.predictedPosition.X = stateX
	tb.predictedPosition.Y = stateY
}

// GetTravel returns the signed net travel on the requested axis.
func (tb *TrackedBlob) GetTravel(axis Axis) float64 {
	if axis == AxisX {
		return tb.travel.X
	}
	return tb.travel.Y
}

// GetDistance scores how different a candidate blob is from the track.
// Lower means more alike. Position is measured against the predicted
// position when one exists, otherwise against the last observed centroid.
func (tb *TrackedBlob) GetDistance(other Blob) float64 {
	difference := 0.0

	if tb.predictedPosition.X >= 0 && tb.predictedPosition.Y >= 0 {
		difference += math.Abs(tb.predictedPosition.X-other.Centroid.X) * PositionPenalty
		difference += math.Abs(tb.predictedPosition.Y-other.Centroid.Y) * PositionPenalty
	} else {
		difference += math.Abs(tb.blob.Centroid.X-other.Centroid.X) * PositionPenalty
		difference += math.Abs(tb.blob.Centroid.Y-other.Centroid.Y) * PositionPenalty
	}

	difference += math.Abs(float64(tb.blob.NumPixels-other.NumPixels)) * AreaPenalty
	difference += math.Abs(tb.blob.AverageTemperature-other.AverageTemperature) * TemperaturePenalty
	difference += math.Abs(tb.blob.AspectRatio-other.AspectRatio) * AspectRatioPenalty

	return difference
}

// ResetUpdatedStatus lowers the updated flag. Tracks still lowered at the
// end of a frame are retired.
func (tb *TrackedBlob) ResetUpdatedStatus() {
	tb.hasUpdated = false
}

// HasUpdated reports whether the track matched a blob this frame.
func (tb *TrackedBlob) HasUpdated() bool {
	return tb.hasUpdated
}

// IsActive reports whether the track is following a blob.
func (tb *TrackedBlob) IsActive() bool {
	return tb.blob.IsActive()
}

// Copy overwrites the track with another track's full state, identity and
// predictor included. Used when compacting the track table.
func (tb *TrackedBlob) Copy(other TrackedBlob) {
	*tb = other
}

// GetID returns the track's identifier. It is uuid.Nil for cleared tracks.
func (tb *TrackedBlob) GetID() uuid.UUID {
	return tb.id
}

// SetID overwrites the track's identifier.
func (tb *TrackedBlob) SetID(newID uuid.UUID) {
	tb.id = newID
}

// GetBlob returns the latest observed blob snapshot.
func (tb *TrackedBlob) GetBlob() Blob {
	return tb.blob
}

// GetPredictedPosition returns the predicted next centroid, or the
// (-1, -1) sentinel when no prediction exists yet.
func (tb *TrackedBlob) GetPredictedPosition() Point {
	return tb.predictedPosition
}

// enablePredictor attaches a 2D Kalman filter seeded on the current
// centroid. Called by the tracker right after Set when Kalman prediction
// is switched on.
func (tb *TrackedBlob) enablePredictor(dt float64) {
	ux := 1.0
	uy := 1.0
	stdDevA := 2.0
	stdDevMx := 0.1
	stdDevMy := 0.1
	tb.predictor = kalman_filter.NewKalman2D(dt, ux, uy, stdDevA, stdDevMx, stdDevMy,
		kalman_filter.WithState2D(tb.blob.Centroid.X, tb.blob.Centroid.Y))
}
