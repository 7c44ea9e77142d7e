package thermo

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setBlock paints a w x h block of pixels at the given top-left corner.
func setBlock(frame *Frame, col, row, w, h int, value float64) {
	for y := row; y < row+h; y++ {
		for x := col; x < col+w; x++ {
			frame[y][x] = value
		}
	}
}

// bootstrapTracker feeds numFrames identical quiet frames so tracking
// goes live with a zero-dispersion background.
func bootstrapTracker(t *testing.T, tracker *ThermalTracker, numFrames int) {
	t.Helper()
	frame := uniformFrame(20.0)
	for i := 0; i < numFrames; i++ {
		require.NoError(t, tracker.ProcessFrame(&frame))
	}
	require.True(t, tracker.FinishedBuildingBackground())
}

func TestTrackerBootstrapOnly(t *testing.T) {
	tracker := NewThermalTracker(4, 200, 4)

	frame := uniformFrame(20.0)
	for i := 0; i < 3; i++ {
		require.NoError(t, tracker.ProcessFrame(&frame))
		assert.False(t, tracker.FinishedBuildingBackground(), "background should not be finished after %d frames", i+1)
	}
	assert.False(t, tracker.HasNewMovements())
	assert.Equal(t, [NumDirections]int64{}, tracker.GetMovements())
}

func TestTrackerQuietFrames(t *testing.T) {
	tracker := NewThermalTracker(4, 200, 4)
	bootstrapTracker(t, tracker, 4)

	variances := tracker.GetVariances()
	for y := 0; y < FrameHeight; y++ {
		for x := 0; x < FrameWidth; x++ {
			assert.InDelta(t, 0.0, variances[y][x], 1e-9)
		}
	}

	// An identical fifth frame has no foreground at all.
	frame := uniformFrame(20.0)
	require.NoError(t, tracker.ProcessFrame(&frame))

	assert.Equal(t, 0, tracker.GetNumLastBlobs())
	assert.Equal(t, 0, tracker.NumActiveTracks())
	assert.False(t, tracker.HasNewMovements())

	averages := tracker.GetAverages()
	assert.InDelta(t, 20.0, averages[2][7], 1e-9)
}

func TestTrackerSingleBlobCrossingRight(t *testing.T) {
	tracker := NewThermalTracker(4, 200, 4)
	bootstrapTracker(t, tracker, 4)

	// A 2x2 warm block entering at column 2 and shifting right by three
	// columns per frame.
	for i, col := range []int{2, 5, 8, 11} {
		frame := uniformFrame(20.0)
		setBlock(&frame, col, 1, 2, 2, 30.0)
		require.NoError(t, tracker.ProcessFrame(&frame))

		assert.Equal(t, 1, tracker.GetNumLastBlobs(), "frame %d should hold one qualifying blob", i)
		assert.Equal(t, 1, tracker.NumActiveTracks(), "the block should stay on a single track across frames")
	}
	assert.False(t, tracker.HasNewMovements(), "no movement may be counted while the track is alive")

	// The block leaves the view; the track retires with +9 columns of
	// travel.
	frame := uniformFrame(20.0)
	require.NoError(t, tracker.ProcessFrame(&frame))

	assert.True(t, tracker.HasNewMovements())
	movements := tracker.GetMovements()
	assert.Equal(t, [NumDirections]int64{DirectionRight: 1}, movements)
	assert.False(t, tracker.HasNewMovements(), "reading the movements lowers the flag")

	// The counters themselves survive the read.
	assert.Equal(t, movements, tracker.GetMovements())
	assert.Equal(t, 0, tracker.NumActiveTracks())
}

func TestTrackerSmallBlobSuppression(t *testing.T) {
	tracker := NewThermalTracker(4, 200, 4)
	bootstrapTracker(t, tracker, 4)

	frame := uniformFrame(20.0)
	frame[2][6] = 30.0
	require.NoError(t, tracker.ProcessFrame(&frame))

	assert.Equal(t, 0, tracker.GetNumLastBlobs(), "a single hot pixel is below the minimum blob size")
	assert.Equal(t, 0, tracker.NumActiveTracks())

	frame = uniformFrame(20.0)
	require.NoError(t, tracker.ProcessFrame(&frame))
	assert.False(t, tracker.HasNewMovements(), "nothing was tracked, so nothing can retire")
}

func TestTrackerTwoSimultaneousBlobs(t *testing.T) {
	// Four rows leave no room for five pixels of vertical travel, so the
	// vertical crossing is asserted with a tighter travel threshold.
	tracker := NewThermalTracker(4, 200, 4, WithMinimumTravelThreshold(1))
	bootstrapTracker(t, tracker, 4)

	// One block marches left along the middle rows while another descends
	// through the rows on the far side.
	leftwardCols := []int{12, 9, 6, 3}
	downwardRows := []int{0, 1, 2, 2}
	for i := range leftwardCols {
		frame := uniformFrame(20.0)
		setBlock(&frame, leftwardCols[i], 1, 2, 2, 30.0)
		setBlock(&frame, 0, downwardRows[i], 2, 2, 30.0)
		require.NoError(t, tracker.ProcessFrame(&frame))

		assert.Equal(t, 2, tracker.GetNumLastBlobs())
		assert.Equal(t, 2, tracker.NumActiveTracks())
	}

	frame := uniformFrame(20.0)
	require.NoError(t, tracker.ProcessFrame(&frame))

	movements := tracker.GetMovements()
	assert.Equal(t, int64(1), movements[DirectionLeft], "the leftward block travelled -9 columns")
	assert.Equal(t, int64(1), movements[DirectionUp], "travel toward larger row indices counts as up")
	assert.Equal(t, int64(0), movements[DirectionRight])
	assert.Equal(t, int64(0), movements[DirectionDown])
	assert.Equal(t, int64(0), movements[DirectionNone])
}

func TestTrackerStationaryObjectAbsorbed(t *testing.T) {
	tracker := NewThermalTracker(4, 200, 4, WithUnchangedFrameDelay(4))
	bootstrapTracker(t, tracker, 4)

	// A warm block parks in the view. Once the blob count has been stable
	// past the delay, frames start folding into the running background and
	// the block fades out of the foreground.
	absorbed := false
	for i := 0; i < 20; i++ {
		frame := uniformFrame(20.0)
		setBlock(&frame, 6, 1, 2, 2, 30.0)
		require.NoError(t, tracker.ProcessFrame(&frame))

		if tracker.GetNumLastBlobs() == 0 {
			absorbed = true
			break
		}
	}
	require.True(t, absorbed, "the stationary block should eventually be absorbed into the background")

	// The track retired without net travel.
	assert.True(t, tracker.HasNewMovements())
	movements := tracker.GetMovements()
	assert.Equal(t, [NumDirections]int64{DirectionNone: 1}, movements)
	assert.Equal(t, 0, tracker.NumActiveTracks())

	averages := tracker.GetAverages()
	assert.Greater(t, averages[1][6], 20.0, "the background mean should have drifted toward the block")
}

func TestTrackerHungarianCrossing(t *testing.T) {
	tracker := NewThermalTracker(4, 200, 4, WithMatchingAlgorithm(MatchingHungarian))
	bootstrapTracker(t, tracker, 4)

	for _, col := range []int{2, 5, 8, 11} {
		frame := uniformFrame(20.0)
		setBlock(&frame, col, 1, 2, 2, 30.0)
		require.NoError(t, tracker.ProcessFrame(&frame))
		assert.Equal(t, 1, tracker.NumActiveTracks())
	}

	frame := uniformFrame(20.0)
	require.NoError(t, tracker.ProcessFrame(&frame))

	assert.Equal(t, [NumDirections]int64{DirectionRight: 1}, tracker.GetMovements())
}

func TestTrackerKalmanCrossing(t *testing.T) {
	tracker := NewThermalTracker(4, 200, 4, WithKalmanPrediction(1.0))
	bootstrapTracker(t, tracker, 4)

	for _, col := range []int{2, 5, 8, 11} {
		frame := uniformFrame(20.0)
		setBlock(&frame, col, 1, 2, 2, 30.0)
		require.NoError(t, tracker.ProcessFrame(&frame))
		assert.Equal(t, 1, tracker.NumActiveTracks())
	}

	frame := uniformFrame(20.0)
	require.NoError(t, tracker.ProcessFrame(&frame))

	// Travel accumulates from the observed centroids, so the Kalman
	// predictor changes matching but not the reported movement.
	assert.Equal(t, [NumDirections]int64{DirectionRight: 1}, tracker.GetMovements())
}

func TestTrackerInvertedTravelDirection(t *testing.T) {
	tracker := NewThermalTracker(4, 200, 4, WithInvertedTravelDirection())
	bootstrapTracker(t, tracker, 4)

	for _, col := range []int{2, 5, 8, 11} {
		frame := uniformFrame(20.0)
		setBlock(&frame, col, 1, 2, 2, 30.0)
		require.NoError(t, tracker.ProcessFrame(&frame))
	}

	frame := uniformFrame(20.0)
	require.NoError(t, tracker.ProcessFrame(&frame))

	assert.Equal(t, [NumDirections]int64{DirectionLeft: 1}, tracker.GetMovements())
}

func TestTrackerResetBackground(t *testing.T) {
	tracker := NewThermalTracker(2, 200, 4)
	bootstrapTracker(t, tracker, 2)

	tracker.ResetBackground()
	assert.False(t, tracker.FinishedBuildingBackground())

	frame := uniformFrame(22.0)
	require.NoError(t, tracker.ProcessFrame(&frame))
	assert.False(t, tracker.FinishedBuildingBackground())
	require.NoError(t, tracker.ProcessFrame(&frame))
	assert.True(t, tracker.FinishedBuildingBackground())

	averages := tracker.GetAverages()
	assert.InDelta(t, 22.0, averages[0][0], 1e-9, "the rebuilt background should reflect the new frames only")
}

func TestTrackerResetMovements(t *testing.T) {
	tracker := NewThermalTracker(4, 200, 4)
	bootstrapTracker(t, tracker, 4)

	for _, col := range []int{2, 5, 8, 11} {
		frame := uniformFrame(20.0)
		setBlock(&frame, col, 1, 2, 2, 30.0)
		require.NoError(t, tracker.ProcessFrame(&frame))
	}
	frame := uniformFrame(20.0)
	require.NoError(t, tracker.ProcessFrame(&frame))
	require.True(t, tracker.HasNewMovements())

	tracker.ResetMovements()
	assert.Equal(t, [NumDirections]int64{}, tracker.GetMovements())
	assert.False(t, tracker.HasNewMovements())
}

func TestProcessFrameData(t *testing.T) {
	tracker := NewThermalTracker(2, 200, 4)

	err := tracker.ProcessFrameData(make([]float64, 10))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frame data")

	data := make([]float64, FrameWidth*FrameHeight)
	for i := range data {
		data[i] = 20.0
	}
	require.NoError(t, tracker.ProcessFrameData(data))
	require.NoError(t, tracker.ProcessFrameData(data))
	assert.True(t, tracker.FinishedBuildingBackground())
}

func TestNewThermalTrackerDefault(t *testing.T) {
	tracker := NewThermalTrackerDefault()

	assert.InDelta(t, DefaultMaxDistanceThreshold, tracker.maxDistanceThreshold, 1e-9)
	assert.Equal(t, DefaultMinimumBlobSize, tracker.minBlobSize)
	assert.Equal(t, DefaultUnchangedFrameDelay, tracker.unchangedFrameDelay)
	assert.InDelta(t, DefaultMinimumTravelThreshold, tracker.minimumTravelThreshold, 1e-9)
	assert.Equal(t, DefaultRunningAverageSize, tracker.background.windowSize)
	assert.Equal(t, MatchingGreedy, tracker.matching)
	assert.False(t, tracker.FinishedBuildingBackground())
}
