package thermo

import (
	"github.com/arthurkushman/go-hungarian"
)

// MatchingAlgorithm is for algorithm type for matching new blobs to tracks
type MatchingAlgorithm uint16

const (
	// MatchingGreedy repeatedly takes the globally lowest cost pair and
	// invalidates its row and column. Deterministic (ties go to the lowest
	// track index, then the lowest blob index) and allocation free.
	MatchingGreedy MatchingAlgorithm = iota
	// MatchingHungarian solves the same cost matrix with the Hungarian
	// algorithm (Kuhn-Munkres) for an optimal assignment.
	MatchingHungarian
)

// distanceSentinel marks matrix cells that can never match: inactive
// pairings and invalidated rows/columns. It sits above any usable
// distance threshold.
const distanceSentinel = 999.0

// distanceMatrix holds the dissimilarity of every track/blob pairing for
// one frame. Rows are tracks, columns are blobs.
type distanceMatrix [MaxBlobs][MaxBlobs]float64

// generate fills the matrix from the active pairings; everything else
// gets the sentinel.
func (m *distanceMatrix) generate(tracks *[MaxBlobs]TrackedBlob, blobs *[MaxBlobs]Blob) {
	for i := range tracks {
		for j := range blobs {
			if tracks[i].IsActive() && blobs[j].IsActive() {
				m[i][j] = tracks[i].GetDistance(blobs[j])
			} else {
				m[i][j] = distanceSentinel
			}
		}
	}
}

// lowest returns the position of the smallest cost strictly under the
// threshold. The row-major scan with a strict comparison resolves ties
// toward the lowest row, then the lowest column. ok is false when no cell
// qualifies.
func (m *distanceMatrix) lowest(threshold float64) (row, col int, ok bool) {
	lowestDistance := distanceSentinel
	row, col = -1, -1

	for i := 0; i < MaxBlobs; i++ {
		for j := 0; j < MaxBlobs; j++ {
			distance := m[i][j]
			if distance < lowestDistance && distance < threshold {
				lowestDistance = distance
				row, col = i, j
			}
		}
	}

	return row, col, row >= 0
}

// invalidate removes a matched pairing from play by writing the sentinel
// across its whole row and column.
func (m *distanceMatrix) invalidate(row, col int) {
	for i := 0; i < MaxBlobs; i++ {
		m[row][i] = distanceSentinel
		m[i][col] = distanceSentinel
	}
}

// solveAssignment runs the Hungarian solver over the matrix and returns
// the chosen (track, blob) index pairs. The matrix is already square, so
// no padding is needed; pairs landing on sentinel cells are filtered by
// the caller against its distance threshold.
func (m *distanceMatrix) solveAssignment() [][2]int {
	cost := make([][]float64, MaxBlobs)
	for i := range cost {
		cost[i] = make([]float64, MaxBlobs)
		copy(cost[i], m[i][:])
	}

	solution := hungarian.SolveMin(cost)

	pairs := make([][2]int, 0, MaxBlobs)
	for row, cols := range solution {
		for col := range cols {
			pairs = append(pairs, [2]int{row, col})
		}
	}
	return pairs
}
