package thermo

import (
	"math"

	"github.com/pkg/errors"
)

// Frame geometry and tracking limits. The tracker targets a 16x4
// thermopile array refreshing at 16 Hz; every working buffer is sized
// from these at compile time so frame processing allocates nothing.
const (
	FrameWidth  = 16
	FrameHeight = 4
	MaxBlobs    = 8
	RefreshRate = 16

	DefaultRunningAverageSize     = 80
	DefaultMaxDistanceThreshold   = 200.0
	DefaultMinimumBlobSize        = 4
	DefaultUnchangedFrameDelay    = RefreshRate * 2
	DefaultMinimumTravelThreshold = 5.0
)

// Frame is one snapshot of pixel temperatures, indexed [row][column].
type Frame [FrameHeight][FrameWidth]float64

// ThermalTracker watches a stream of thermal frames for warm objects
// moving through the view and counts the directions they travel in.
//
// Each submitted frame either extends the forming background (bootstrap)
// or runs the full pipeline: foreground segmentation against the
// background model, small-blob filtering, association of the surviving
// blobs with the tracks from previous frames, and retirement of tracks
// that found no match. A retiring track converts its accumulated travel
// into movement counts.
//
// The tracker is single-producer: ProcessFrame must not be entered
// concurrently, and reads must be serialised with it by the caller.
type ThermalTracker struct {
	frame      Frame
	background backgroundModel
	seg        segmenter
	blobs      [MaxBlobs]Blob
	tracks     [MaxBlobs]TrackedBlob
	distances  distanceMatrix
	movements  movementCounters

	maxDistanceThreshold   float64
	minBlobSize            int
	unchangedFrameDelay    int
	minimumTravelThreshold float64
	matching               MatchingAlgorithm
	kalmanEnabled          bool
	kalmanDt               float64
	invertTravel           bool

	numUnchangedFrames int
	numLastBlobs       int
}

// TrackerOption mutates tracker construction.
type TrackerOption func(*ThermalTracker)

// WithMatchingAlgorithm selects how new blobs are assigned to tracks.
// The default is MatchingGreedy.
func WithMatchingAlgorithm(algorithm MatchingAlgorithm) TrackerOption {
	return func(t *ThermalTracker) {
		t.matching = algorithm
	}
}

// WithKalmanPrediction replaces the constant-velocity extrapolation with a
// per-track 2D Kalman filter stepped at dt. Each track creation allocates
// one filter, so this trades the zero-allocation guarantee for smoother
// predictions.
func WithKalmanPrediction(dt float64) TrackerOption {
	return func(t *ThermalTracker) {
		t.kalmanEnabled = true
		t.kalmanDt = dt
	}
}

// WithInvertedTravelDirection flips both travel axes before movements are
// counted, for sensors mounted upside down.
func WithInvertedTravelDirection() TrackerOption {
	return func(t *ThermalTracker) {
		t.invertTravel = true
	}
}

// WithUnchangedFrameDelay sets how many consecutive frames the qualifying
// blob count must stay unchanged before frames with blobs in them start
// folding into the running background.
func WithUnchangedFrameDelay(frames int) TrackerOption {
	return func(t *ThermalTracker) {
		t.unchangedFrameDelay = frames
	}
}

// WithMinimumTravelThreshold sets the net travel (in pixels, per axis) a
// retiring track must exceed to count as directional movement.
func WithMinimumTravelThreshold(threshold float64) TrackerOption {
	return func(t *ThermalTracker) {
		t.minimumTravelThreshold = threshold
	}
}

// NewThermalTracker creates a tracker.
// runningAverageSize is the number of frames folded into the background
// before tracking starts, and the effective window of the running update
// afterwards. maxDistanceThreshold is the dissimilarity above which a
// track and a blob are never the same object. minBlobSize is the smallest
// pixel count a blob may have and still be tracked.
func NewThermalTracker(runningAverageSize int, maxDistanceThreshold float64, minBlobSize int, options ...TrackerOption) *ThermalTracker {
	tracker := &ThermalTracker{
		maxDistanceThreshold:   maxDistanceThreshold,
		minBlobSize:            minBlobSize,
		unchangedFrameDelay:    DefaultUnchangedFrameDelay,
		minimumTravelThreshold: DefaultMinimumTravelThreshold,
		matching:               MatchingGreedy,
		kalmanDt:               1.0,
	}
	tracker.background.reset(runningAverageSize)

	for _, option := range options {
		option(tracker)
	}
	return tracker
}

// NewThermalTrackerDefault creates a tracker with the default window,
// distance threshold and blob size.
func NewThermalTrackerDefault(options ...TrackerOption) *ThermalTracker {
	return NewThermalTracker(DefaultRunningAverageSize, DefaultMaxDistanceThreshold, DefaultMinimumBlobSize, options...)
}

// ProcessFrame submits one frame to the tracker. While the background is
// still bootstrapping the frame only extends it. Afterwards the frame is
// segmented against the background, the resulting blobs are matched to
// the live tracks, unmatched tracks retire into movement counts, and
// quiet frames keep feeding the running background.
//
// The returned error can only originate from the optional Kalman
// predictor; the default pipeline is infallible.
func (t *ThermalTracker) ProcessFrame(frame *Frame) error {
	t.frame = *frame

	if !t.FinishedBuildingBackground() {
		t.background.addBootstrapFrame(&t.frame)
		return nil
	}

	numActive := t.seg.collectForeground(&t.frame, &t.background)
	t.seg.segment(&t.blobs, numActive)
	numBlobs := t.removeSmallBlobs()

	addFrameToAverage := t.shouldExtendBackground(numBlobs)
	t.numLastBlobs = numBlobs

	if err := t.trackBlobs(); err != nil {
		return err
	}

	if addFrameToAverage {
		t.background.addRunningFrame(&t.frame)
	}
	return nil
}

// ProcessFrameData submits a frame supplied as a flat row-major buffer,
// the shape sensor drivers usually read into. The slice must hold exactly
// FrameWidth*FrameHeight values.
func (t *ThermalTracker) ProcessFrameData(data []float64) error {
	if len(data) != FrameWidth*FrameHeight {
		return errors.Errorf("frame data must contain %d values, got %d", FrameWidth*FrameHeight, len(data))
	}

	var frame Frame
	for y := 0; y < FrameHeight; y++ {
		copy(frame[y][:], data[y*FrameWidth:(y+1)*FrameWidth])
	}
	return t.ProcessFrame(&frame)
}

// ResetBackground throws the background model away and restarts the
// bootstrap phase on the next frame.
func (t *ThermalTracker) ResetBackground() {
	t.background.reset(t.background.windowSize)
}

// FinishedBuildingBackground reports whether the bootstrap window has
// filled and tracking is live.
func (t *ThermalTracker) FinishedBuildingBackground() bool {
	return t.background.finished()
}

// GetAverages returns a copy of the per-pixel background mean
// temperatures.
func (t *ThermalTracker) GetAverages() Frame {
	return t.background.mean
}

// GetVariances returns a copy of the per-pixel background dispersions.
// After bootstrap this is the sample standard deviation; the running
// update relaxes it to a mean absolute deviation.
func (t *ThermalTracker) GetVariances() Frame {
	return t.background.dispersion
}

// GetMovements returns the movement counts in the order
// {left, right, up, down, none} and lowers the new-movements flag. The
// counts themselves are preserved across reads.
func (t *ThermalTracker) GetMovements() [NumDirections]int64 {
	return t.movements.read()
}

// ResetMovements zeroes all five movement counters.
func (t *ThermalTracker) ResetMovements() {
	t.movements.reset()
}

// HasNewMovements reports whether any counter has incremented since the
// last GetMovements call.
func (t *ThermalTracker) HasNewMovements() bool {
	return t.movements.changed
}

// GetNumLastBlobs returns the qualifying blob count of the most recently
// processed frame.
func (t *ThermalTracker) GetNumLastBlobs() int {
	return t.numLastBlobs
}

// NumActiveTracks returns how many blobs are currently being tracked.
func (t *ThermalTracker) NumActiveTracks() int {
	numActive := 0
	for i := range t.tracks {
		if t.tracks[i].IsActive() {
			numActive++
		}
	}
	return numActive
}

// shouldExtendBackground decides whether the current frame also feeds the
// running background. Frames with no qualifying blobs always do. Frames
// with a stable blob count start folding in once the count has been
// unchanged for more than the configured delay, so a stalled warm object
// is eventually absorbed without being baked in on first sight.
func (t *ThermalTracker) shouldExtendBackground(numBlobs int) bool {
	if numBlobs == t.numLastBlobs {
		t.numUnchangedFrames++
	} else {
		t.numUnchangedFrames = 0
	}
	return numBlobs == 0 || t.numUnchangedFrames > t.unchangedFrameDelay
}

// removeSmallBlobs clears blobs under the minimum size and compacts the
// survivors to the front of the array, preserving their order. Returns
// the surviving count.
func (t *ThermalTracker) removeSmallBlobs() int {
	free := 0
	for i := range t.blobs {
		if !t.blobs[i].IsActive() {
			continue
		}
		if t.blobs[i].Size() < t.minBlobSize {
			t.blobs[i].Clear()
			continue
		}
		if free < i {
			t.blobs[free].Copy(t.blobs[i])
			t.blobs[i].Clear()
		}
		free++
	}
	return free
}

// trackBlobs runs one association round: match the frame's blobs to the
// live tracks, retire the tracks that went unmatched, then open tracks
// for the blobs nobody claimed.
func (t *ThermalTracker) trackBlobs() error {
	for i := range t.tracks {
		t.tracks[i].ResetUpdatedStatus()
	}
	for i := range t.blobs {
		t.blobs[i].ClearAssigned()
	}

	if t.kalmanEnabled {
		for i := range t.tracks {
			if t.tracks[i].IsActive() {
				t.tracks[i].PredictNextPosition()
			}
		}
	}

	t.distances.generate(&t.tracks, &t.blobs)

	var err error
	switch t.matching {
	case MatchingHungarian:
		err = t.matchHungarian()
	default:
		err = t.matchGreedy()
	}
	if err != nil {
		return err
	}

	t.retireStaleTracks()
	t.addRemainingBlobs()
	return nil
}

// matchGreedy repeatedly updates the globally closest track/blob pair
// under the distance threshold, removing each matched row and column
// from play.
func (t *ThermalTracker) matchGreedy() error {
	for {
		row, col, ok := t.distances.lowest(t.maxDistanceThreshold)
		if !ok {
			return nil
		}
		if err := t.tracks[row].UpdateBlob(t.blobs[col]); err != nil {
			return errors.Wrapf(err, "Can't update track %s", t.tracks[row].GetID())
		}
		t.blobs[col].SetAssigned()
		t.distances.invalidate(row, col)
	}
}

// matchHungarian solves the whole cost matrix at once and applies every
// assignment that clears the distance threshold. Pairs landing on
// sentinel cells (inactive tracks or blobs) are discarded.
func (t *ThermalTracker) matchHungarian() error {
	for _, pair := range t.distances.solveAssignment() {
		row, col := pair[0], pair[1]
		if t.distances[row][col] >= t.maxDistanceThreshold {
			continue
		}
		if err := t.tracks[row].UpdateBlob(t.blobs[col]); err != nil {
			return errors.Wrapf(err, "Can't update track %s", t.tracks[row].GetID())
		}
		t.blobs[col].SetAssigned()
	}
	return nil
}

// retireStaleTracks clears every track that failed to match this frame,
// counting its movements first if it was live, and compacts the updated
// tracks to the front of the table.
func (t *ThermalTracker) retireStaleTracks() {
	free := 0
	for i := range t.tracks {
		if t.tracks[i].HasUpdated() {
			if free < i {
				t.tracks[free].Copy(t.tracks[i])
				t.tracks[i].Clear()
			}
			free++
			continue
		}

		if t.tracks[i].IsActive() {
			t.processBlobMovements(&t.tracks[i])
		}
		t.tracks[i].Clear()
	}
}

// addRemainingBlobs opens a track for every active blob left unassigned
// after matching. When the table is full the surplus blobs are dropped.
func (t *ThermalTracker) addRemainingBlobs() {
	slot := 0
	for i := range t.blobs {
		if !t.blobs[i].IsActive() || t.blobs[i].IsAssigned() {
			continue
		}

		for slot < MaxBlobs && t.tracks[slot].IsActive() {
			slot++
		}
		if slot >= MaxBlobs {
			return
		}

		t.tracks[slot].Set(t.blobs[i])
		if t.kalmanEnabled {
			t.tracks[slot].enablePredictor(t.kalmanDt)
		}
		t.blobs[i].SetAssigned()
	}
}

// processBlobMovements converts a retiring track's net travel into
// movement counts. Each axis whose travel clears the threshold counts
// independently, so a diagonal crossing can increment two directions.
// Travel is in image coordinates: increasing y counts as up.
func (t *ThermalTracker) processBlobMovements(track *TrackedBlob) {
	travelX := track.GetTravel(AxisX)
	travelY := track.GetTravel(AxisY)
	if t.invertTravel {
		travelX = -travelX
		travelY = -travelY
	}

	movementAdded := false

	if math.Abs(travelX) > t.minimumTravelThreshold {
		movementAdded = true
		if travelX < 0 {
			t.movements.add(DirectionLeft)
		} else {
			t.movements.add(DirectionRight)
		}
	}

	if math.Abs(travelY) > t.minimumTravelThreshold {
		movementAdded = true
		if travelY > 0 {
			t.movements.add(DirectionUp)
		} else {
			t.movements.add(DirectionDown)
		}
	}

	if !movementAdded {
		t.movements.add(DirectionNone)
	}
}
