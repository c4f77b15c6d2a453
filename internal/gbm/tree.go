package gbm

// node is a single split or leaf of a regression tree
type node struct {
	leaf      bool
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// regressionTree is a depth-limited CART tree fit on squared error
type regressionTree struct {
	nodes []node
}

func (t *regressionTree) predict(x []float64) float64 {
	i := 0
	for {
		n := t.nodes[i]
		if n.leaf {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

// treeBuilder grows one tree against the current residuals. sorted holds,
// per feature, every sample index ordered by that feature's value.
type treeBuilder struct {
	x              [][]float64
	target         []float64
	sorted         [][]int
	maxDepth       int
	minSamplesLeaf int
	minSplit       int

	owner []int
	tree  *regressionTree
}

func (b *treeBuilder) build(samples []int) *regressionTree {
	b.tree = &regressionTree{}
	b.owner = make([]int, len(b.x))
	for i := range b.owner {
		b.owner[i] = -1
	}
	b.grow(samples, 0)
	return b.tree
}

func (b *treeBuilder) grow(samples []int, depth int) int {
	id := len(b.tree.nodes)
	b.tree.nodes = append(b.tree.nodes, node{})

	var sum float64
	for _, s := range samples {
		sum += b.target[s]
	}
	mean := sum / float64(len(samples))

	if depth >= b.maxDepth || len(samples) < b.minSplit || len(samples) < 2*b.minSamplesLeaf {
		b.tree.nodes[id] = node{leaf: true, value: mean}
		return id
	}

	feature, threshold, ok := b.bestSplit(id, samples, sum)
	if !ok {
		b.tree.nodes[id] = node{leaf: true, value: mean}
		return id
	}

	left := make([]int, 0, len(samples))
	right := make([]int, 0, len(samples))
	for _, s := range samples {
		if b.x[s][feature] <= threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}

	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.nodes[id] = node{feature: feature, threshold: threshold, left: l, right: r, value: mean}
	return id
}

// bestSplit scans every feature for the threshold maximizing the reduction
// in squared error. Ties keep the first feature and lowest threshold.
func (b *treeBuilder) bestSplit(id int, samples []int, total float64) (int, float64, bool) {
	for _, s := range samples {
		b.owner[s] = id
	}
	n := float64(len(samples))
	baseline := total * total / n
	bestGain := 0.0
	bestFeature := -1
	var bestThreshold float64

	ordered := make([]int, 0, len(samples))
	for f := range b.sorted {
		ordered = ordered[:0]
		for _, s := range b.sorted[f] {
			if b.owner[s] == id {
				ordered = append(ordered, s)
			}
		}

		var leftSum float64
		for i := 0; i < len(ordered)-1; i++ {
			leftSum += b.target[ordered[i]]
			nl := i + 1
			nr := len(ordered) - nl
			if nl < b.minSamplesLeaf || nr < b.minSamplesLeaf {
				continue
			}
			lo := b.x[ordered[i]][f]
			hi := b.x[ordered[i+1]][f]
			if hi <= lo {
				continue
			}
			rightSum := total - leftSum
			score := leftSum*leftSum/float64(nl) + rightSum*rightSum/float64(nr)
			gain := score - baseline
			if gain > bestGain+1e-12 {
				bestGain = gain
				bestFeature = f
				bestThreshold = lo + (hi-lo)/2
				if bestThreshold >= hi {
					bestThreshold = lo
				}
			}
		}
	}
	return bestFeature, bestThreshold, bestFeature >= 0
}
