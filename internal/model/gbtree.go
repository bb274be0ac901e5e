package model

import (
	"fmt"
	"math"
)

// Ensemble is a gradient-boosted regression tree ensemble in inference form:
// flattened node arrays exported from the training side. Prediction is the
// base score plus the sum of the leaf values reached in each tree. Immutable
// and safe for concurrent use.
type Ensemble struct {
	trees [][]node
	base  float64
}

type node struct {
	leaf        bool
	value       float64 // leaf output
	featureIdx  int
	threshold   float64
	left, right int32
	defaultLeft bool // branch taken when the feature value is NaN
}

// Predict implements contracts.Regressor.
func (e *Ensemble) Predict(features []float64) float64 {
	sum := e.base
	for _, tree := range e.trees {
		sum += evalTree(tree, features)
	}
	return sum
}

func evalTree(tree []node, features []float64) float64 {
	i := int32(0)
	for {
		n := tree[i]
		if n.leaf {
			return n.value
		}
		v := math.NaN()
		if n.featureIdx >= 0 && n.featureIdx < len(features) {
			v = features[n.featureIdx]
		}
		switch {
		case math.IsNaN(v):
			if n.defaultLeft {
				i = n.left
			} else {
				i = n.right
			}
		case v < n.threshold:
			i = n.left
		default:
			i = n.right
		}
	}
}

// buildEnsemble converts artifact trees into inference form, resolving
// feature names to positions in featureNames.
func buildEnsemble(trees [][]artifactNode, base float64, featureNames []string) (*Ensemble, error) {
	idx := make(map[string]int, len(featureNames))
	for i, name := range featureNames {
		idx[name] = i
	}

	e := &Ensemble{base: base, trees: make([][]node, len(trees))}
	for t, raw := range trees {
		if len(raw) == 0 {
			return nil, fmt.Errorf("tree %d is empty", t)
		}
		out := make([]node, len(raw))
		for i, rn := range raw {
			if rn.Leaf != nil {
				out[i] = node{leaf: true, value: *rn.Leaf}
				continue
			}
			fi, ok := idx[rn.Feature]
			if !ok {
				return nil, fmt.Errorf("tree %d node %d: unknown feature %q", t, i, rn.Feature)
			}
			if rn.Left < 0 || rn.Left >= len(raw) || rn.Right < 0 || rn.Right >= len(raw) {
				return nil, fmt.Errorf("tree %d node %d: child index out of range", t, i)
			}
			out[i] = node{
				featureIdx:  fi,
				threshold:   rn.Threshold,
				left:        int32(rn.Left),
				right:       int32(rn.Right),
				defaultLeft: rn.DefaultLeft,
			}
		}
		e.trees[t] = out
	}
	return e, nil
}
