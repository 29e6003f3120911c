package anomaly

import (
	"math"
	"math/rand"
)

// isolationTree is one randomly grown binary partitioning tree.
type isolationTree struct {
	node *treeNode
}

type treeNode struct {
	left, right *treeNode
	feature     int
	split       float64
	size        int // leaf population, used for path-length correction
}

// buildTree grows a tree over the given sample rows. depth is limited to
// ceil(log2(sample size)) as in the standard formulation; deeper splits do
// not improve isolation of outliers.
func buildTree(rows [][]float64, rng *rand.Rand, maxDepth int) *isolationTree {
	return &isolationTree{node: grow(rows, rng, 0, maxDepth)}
}

func grow(rows [][]float64, rng *rand.Rand, depth, maxDepth int) *treeNode {
	if len(rows) <= 1 || depth >= maxDepth {
		return &treeNode{size: len(rows)}
	}

	nFeatures := len(rows[0])
	// Pick a feature with spread; give up after trying each once.
	order := rng.Perm(nFeatures)
	for _, f := range order {
		lo, hi := rows[0][f], rows[0][f]
		for _, r := range rows[1:] {
			if r[f] < lo {
				lo = r[f]
			}
			if r[f] > hi {
				hi = r[f]
			}
		}
		if hi == lo {
			continue
		}

		split := lo + rng.Float64()*(hi-lo)
		var left, right [][]float64
		for _, r := range rows {
			if r[f] < split {
				left = append(left, r)
			} else {
				right = append(right, r)
			}
		}
		if len(left) == 0 || len(right) == 0 {
			continue
		}
		return &treeNode{
			feature: f,
			split:   split,
			left:    grow(left, rng, depth+1, maxDepth),
			right:   grow(right, rng, depth+1, maxDepth),
		}
	}

	// All candidate features are constant across this sample.
	return &treeNode{size: len(rows)}
}

// pathLength returns the depth at which row is isolated, with the usual
// correction term for unresolved leaves.
func (t *isolationTree) pathLength(row []float64) float64 {
	node := t.node
	depth := 0.0
	for node.left != nil {
		if row[node.feature] < node.split {
			node = node.left
		} else {
			node = node.right
		}
		depth++
	}
	return depth + avgPathLength(node.size)
}

// avgPathLength is c(n), the average path length of an unsuccessful BST
// search over n nodes.
func avgPathLength(n int) float64 {
	if n <= 1 {
		return 0
	}
	if n == 2 {
		return 1
	}
	fn := float64(n)
	return 2*(math.Log(fn-1)+0.5772156649) - 2*(fn-1)/fn
}
