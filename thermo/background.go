package thermo

import "math"

type backgroundPhase uint8

const (
	phaseBootstrapping backgroundPhase = iota
	phaseRunning
)

// backgroundModel is the per-pixel estimate of the scene baseline: a mean
// temperature and a dispersion for every frame cell. It moves through two
// phases. While bootstrapping it accumulates an exact running mean and
// squared-deviation sum (Welford) over the first windowSize frames; the
// sum is finalised into a sample standard deviation when the window
// fills. Once running, both statistics become exponentially weighted
// with effective window windowSize, and the dispersion degrades to a
// mean absolute deviation. That trade keeps the state at two floats per
// pixel.
type backgroundModel struct {
	mean       Frame
	dispersion Frame
	numFrames  int
	windowSize int
	phase      backgroundPhase
}

// reset discards all statistics and restarts the bootstrap phase.
func (bg *backgroundModel) reset(windowSize int) {
	bg.mean = Frame{}
	bg.dispersion = Frame{}
	bg.numFrames = 0
	bg.windowSize = windowSize
	bg.phase = phaseBootstrapping
}

// finished reports whether the bootstrap window has filled.
func (bg *backgroundModel) finished() bool {
	return bg.phase == phaseRunning
}

// addBootstrapFrame folds a frame into the forming background. Must only
// be called while bootstrapping. The dispersion buffer holds the Welford
// squared-deviation accumulator until the final frame of the window, at
// which point it is converted to the sample standard deviation and the
// model switches to the running phase.
func (bg *backgroundModel) addBootstrapFrame(frame *Frame) {
	if bg.numFrames == 0 {
		bg.mean = *frame
		bg.dispersion = Frame{}
	} else {
		for y := 0; y < FrameHeight; y++ {
			for x := 0; x < FrameWidth; x++ {
				temp := frame[y][x]
				lastMean := bg.mean[y][x]

				bg.mean[y][x] += (temp - lastMean) / float64(bg.numFrames+1)
				bg.dispersion[y][x] += (temp - bg.mean[y][x]) * (temp - lastMean)
			}
		}
	}

	bg.numFrames++

	if bg.numFrames >= bg.windowSize {
		if bg.numFrames > 1 {
			for y := 0; y < FrameHeight; y++ {
				for x := 0; x < FrameWidth; x++ {
					bg.dispersion[y][x] = math.Sqrt(bg.dispersion[y][x] / float64(bg.numFrames-1))
				}
			}
		}
		bg.phase = phaseRunning
	}
}

// addRunningFrame folds a quiet frame into the established background.
// Both statistics are weighted averages with effective window windowSize,
// so stale scenes are absorbed and old readings age out of significance.
func (bg *backgroundModel) addRunningFrame(frame *Frame) {
	window := float64(bg.windowSize)

	for y := 0; y < FrameHeight; y++ {
		for x := 0; x < FrameWidth; x++ {
			temp := frame[y][x]

			bg.mean[y][x] = (bg.mean[y][x]*(window-1) + temp) / window

			deviation := math.Abs(temp - bg.mean[y][x])
			bg.dispersion[y][x] = (bg.dispersion[y][x]*(window-1) + deviation) / window
		}
	}
}

// isForeground reports whether a temperature at (x, y) sits more than
// three dispersions away from the background mean.
func (bg *backgroundModel) isForeground(x, y int, temperature float64) bool {
	return math.Abs(bg.mean[y][x]-temperature) > bg.dispersion[y][x]*3
}
