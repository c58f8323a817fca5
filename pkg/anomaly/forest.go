package anomaly

import (
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"github.com/leapstack-labs/leaptrust/pkg/dataset"
)

// IsolationForest isolates points with random axis-aligned splits; points
// isolated in few splits score as anomalous. The forest is seeded, so runs
// are reproducible for a fixed configuration.
type IsolationForest struct {
	Trees         int
	Contamination float64
	Seed          int64
	logger        *slog.Logger
}

func (d *IsolationForest) Method() Method { return MethodIsolationForest }

const maxForestSample = 256

// Detect scores complete numeric rows and flags the top Contamination
// fraction. Flagged rows are attributed to the column with the largest
// per-column z deviation for that row.
func (d *IsolationForest) Detect(ds *dataset.Dataset) (*Report, error) {
	rep := newReport(MethodIsolationForest, ds.Rows())
	cols := numericColumns(ds)
	if len(cols) == 0 {
		rep.finish()
		return rep, nil
	}

	// Rows with a non-null value in every numeric column form the matrix.
	rowIdx, matrix := completeRows(ds, cols)
	n := len(matrix)
	if n < 4 {
		rep.Warnings = append(rep.Warnings, "too few complete numeric rows for isolation forest")
		rep.finish()
		return rep, nil
	}

	sample := n
	if sample > maxForestSample {
		sample = maxForestSample
	}
	rng := rand.New(rand.NewSource(d.Seed))
	maxDepth := int(math.Ceil(math.Log2(float64(sample))))

	depths := make([]float64, n)
	for t := 0; t < d.Trees; t++ {
		tree := buildTree(sampleRows(rng, matrix, sample), rng, 0, maxDepth)
		for i, row := range matrix {
			depths[i] += pathLength(tree, row, 0)
		}
	}

	c := avgPathLength(float64(sample))
	scores := make([]float64, n)
	for i := range depths {
		scores[i] = math.Pow(2, -(depths[i]/float64(d.Trees))/c)
	}

	flagCount := int(math.Round(d.Contamination * float64(n)))
	if flagCount == 0 && d.Contamination > 0 {
		flagCount = 1
	}
	flagged := topScores(scores, flagCount)
	if len(flagged) > 0 {
		attributeRows(rep, cols, matrix, rowIdx, flagged)
	}
	rep.finish()
	return rep, nil
}

// completeRows extracts rows where every numeric column is non-null.
func completeRows(ds *dataset.Dataset, cols []*dataset.Column) ([]int, [][]float64) {
	var rowIdx []int
	var matrix [][]float64
	for i := 0; i < ds.Rows(); i++ {
		row := make([]float64, len(cols))
		ok := true
		for j, c := range cols {
			v := c.Values[i]
			if v == nil {
				ok = false
				break
			}
			f, good := dataset.AsFloat(v)
			if !good {
				ok = false
				break
			}
			row[j] = f
		}
		if ok {
			rowIdx = append(rowIdx, i)
			matrix = append(matrix, row)
		}
	}
	return rowIdx, matrix
}

func sampleRows(rng *rand.Rand, matrix [][]float64, k int) [][]float64 {
	if k >= len(matrix) {
		return matrix
	}
	perm := rng.Perm(len(matrix))[:k]
	out := make([][]float64, k)
	for i, p := range perm {
		out[i] = matrix[p]
	}
	return out
}

type isoNode struct {
	feature  int
	split    float64
	left     *isoNode
	right    *isoNode
	size     int
	external bool
}

func buildTree(rows [][]float64, rng *rand.Rand, depth, maxDepth int) *isoNode {
	if len(rows) <= 1 || depth >= maxDepth {
		return &isoNode{external: true, size: len(rows)}
	}
	nf := len(rows[0])
	feature := rng.Intn(nf)
	lo, hi := rows[0][feature], rows[0][feature]
	for _, r := range rows {
		if r[feature] < lo {
			lo = r[feature]
		}
		if r[feature] > hi {
			hi = r[feature]
		}
	}
	if lo == hi {
		return &isoNode{external: true, size: len(rows)}
	}
	split := lo + rng.Float64()*(hi-lo)
	var left, right [][]float64
	for _, r := range rows {
		if r[feature] < split {
			left = append(left, r)
		} else {
			right = append(right, r)
		}
	}
	return &isoNode{
		feature: feature,
		split:   split,
		left:    buildTree(left, rng, depth+1, maxDepth),
		right:   buildTree(right, rng, depth+1, maxDepth),
	}
}

func pathLength(node *isoNode, row []float64, depth int) float64 {
	if node.external {
		if node.size > 1 {
			return float64(depth) + avgPathLength(float64(node.size))
		}
		return float64(depth)
	}
	if row[node.feature] < node.split {
		return pathLength(node.left, row, depth+1)
	}
	return pathLength(node.right, row, depth+1)
}

// avgPathLength is the expected path length of an unsuccessful BST search,
// the standard normalizer for isolation forests.
func avgPathLength(n float64) float64 {
	if n <= 1 {
		return 0
	}
	h := math.Log(n-1) + 0.5772156649
	return 2*h - 2*(n-1)/n
}

// topScores returns the indices of the k highest scores, ties broken by
// lower index for determinism.
func topScores(scores []float64, k int) []int {
	idx := make([]int, len(scores))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(a, b int) bool {
		if scores[idx[a]] != scores[idx[b]] {
			return scores[idx[a]] > scores[idx[b]]
		}
		return idx[a] < idx[b]
	})
	if k > len(idx) {
		k = len(idx)
	}
	return idx[:k]
}

// attributeRows assigns each flagged matrix row to the column where it
// deviates most, measured in z units over the complete-row matrix.
func attributeRows(rep *Report, cols []*dataset.Column, matrix [][]float64, rowIdx, flagged []int) {
	nf := len(cols)
	means := make([]float64, nf)
	sds := make([]float64, nf)
	for j := 0; j < nf; j++ {
		colVals := make([]float64, len(matrix))
		for i, row := range matrix {
			colVals[i] = row[j]
		}
		means[j], sds[j] = meanStdDev(colVals)
	}
	for _, mi := range flagged {
		best, bestDev := 0, -1.0
		for j := 0; j < nf; j++ {
			var dev float64
			if sds[j] > 0 {
				dev = math.Abs((matrix[mi][j] - means[j]) / sds[j])
			}
			if dev > bestDev {
				best, bestDev = j, dev
			}
		}
		rep.flag(cols[best].Name, []int{rowIdx[mi]})
	}
}
