package scoring

import (
	"math/rand"
	"sort"
)

// Node is one node of a regression tree stored in a flat slice. Leaves have
// Left and Right set to -1.
type Node struct {
	Feature   int
	Threshold float64
	Left      int
	Right     int
	Value     float64
}

// Leaf reports whether n has no children.
func (n Node) Leaf() bool { return n.Left < 0 }

// RegressionTree is a CART tree minimising squared error. Samples with
// x[Feature] <= Threshold go left.
type RegressionTree struct {
	Nodes []Node
}

// Predict walks the tree for x.
func (t *RegressionTree) Predict(x []float64) float64 {
	if len(t.Nodes) == 0 {
		return 0
	}
	i := 0
	for {
		n := t.Nodes[i]
		if n.Leaf() {
			return n.Value
		}
		if x[n.Feature] <= n.Threshold {
			i = n.Left
		} else {
			i = n.Right
		}
	}
}

// Depth returns the number of edges on the longest root-to-leaf path.
func (t *RegressionTree) Depth() int {
	if len(t.Nodes) == 0 {
		return 0
	}
	var walk func(i int) int
	walk = func(i int) int {
		n := t.Nodes[i]
		if n.Leaf() {
			return 0
		}
		l, r := walk(n.Left), walk(n.Right)
		if l > r {
			return l + 1
		}
		return r + 1
	}
	return walk(0)
}

type treeParams struct {
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
}

// fitTree grows a tree on the rows of X selected by idx. Rows may repeat
// (bootstrap samples).
func fitTree(X [][]float64, y []float64, idx []int, p treeParams) RegressionTree {
	t := RegressionTree{}
	t.grow(X, y, idx, 0, p)
	return t
}

func (t *RegressionTree) grow(X [][]float64, y []float64, idx []int, depth int, p treeParams) int {
	self := len(t.Nodes)
	t.Nodes = append(t.Nodes, Node{Left: -1, Right: -1, Value: meanAt(y, idx)})
	if (p.maxDepth > 0 && depth >= p.maxDepth) || len(idx) < p.minSamplesSplit || constantAt(y, idx) {
		return self
	}
	feat, thr, ok := bestSplit(X, y, idx, p.minSamplesLeaf)
	if !ok {
		return self
	}
	var left, right []int
	for _, i := range idx {
		if X[i][feat] <= thr {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	l := t.grow(X, y, left, depth+1, p)
	r := t.grow(X, y, right, depth+1, p)
	t.Nodes[self].Feature = feat
	t.Nodes[self].Threshold = thr
	t.Nodes[self].Left = l
	t.Nodes[self].Right = r
	return self
}

// bestSplit scans every feature for the threshold with the largest
// reduction in squared error. Maximising sumL²/nL + sumR²/nR is equivalent
// to minimising the children's total squared error.
func bestSplit(X [][]float64, y []float64, idx []int, minLeaf int) (int, float64, bool) {
	if minLeaf < 1 {
		minLeaf = 1
	}
	n := len(idx)
	var total float64
	for _, i := range idx {
		total += y[i]
	}
	best := total * total / float64(n)
	const eps = 1e-12
	bestFeat, bestThr, found := -1, 0.0, false

	sorted := make([]int, n)
	features := len(X[idx[0]])
	for f := 0; f < features; f++ {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return X[sorted[a]][f] < X[sorted[b]][f] })
		var left float64
		for k := 1; k < n; k++ {
			left += y[sorted[k-1]]
			lo, hi := X[sorted[k-1]][f], X[sorted[k]][f]
			if lo == hi {
				continue
			}
			nl, nr := k, n-k
			if nl < minLeaf || nr < minLeaf {
				continue
			}
			right := total - left
			score := left*left/float64(nl) + right*right/float64(nr)
			if score > best+eps {
				best = score
				bestFeat = f
				bestThr = lo + (hi-lo)/2
				if bestThr == hi {
					bestThr = lo
				}
				found = true
			}
		}
	}
	return bestFeat, bestThr, found
}

func meanAt(y []float64, idx []int) float64 {
	if len(idx) == 0 {
		return 0
	}
	var s float64
	for _, i := range idx {
		s += y[i]
	}
	return s / float64(len(idx))
}

func constantAt(y []float64, idx []int) bool {
	for _, i := range idx[1:] {
		if y[i] != y[idx[0]] {
			return false
		}
	}
	return true
}

func bootstrap(n int, rng *rand.Rand) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = rng.Intn(n)
	}
	return idx
}
