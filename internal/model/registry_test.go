package model

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lorraine/cropcast/internal/contracts"
)

// A single-tree artifact: predict base + 5 when y_lag_1 >= 50, base - 5
// otherwise, with the NaN default going right.
const testArtifact = `{
  "version": 1,
  "items": {
    "11": {
      "feature_names": ["y_lag_1", "dayofweek"],
      "base_score": 100.0,
      "trees": [
        [
          {"feature": "y_lag_1", "threshold": 50.0, "left": 1, "right": 2, "default_left": false},
          {"leaf": -5.0},
          {"leaf": 5.0}
        ]
      ]
    }
  }
}`

func writeArtifact(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "models.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAndPredict(t *testing.T) {
	path := writeArtifact(t, testArtifact)

	reg, err := Load(path, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, reg.Len())

	mdl, ok := reg.Resolve(11)
	require.True(t, ok)
	assert.Equal(t, []string{"y_lag_1", "dayofweek"}, mdl.FeatureNames)

	assert.Equal(t, 105.0, mdl.Regressor.Predict([]float64{60, 2}))
	assert.Equal(t, 95.0, mdl.Regressor.Predict([]float64{40, 2}))
}

func TestPredictNaNTakesDefaultBranch(t *testing.T) {
	path := writeArtifact(t, testArtifact)

	reg, err := Load(path, zerolog.Nop())
	require.NoError(t, err)

	mdl, _ := reg.Resolve(11)
	// default_left=false sends NaN right, to the +5 leaf.
	assert.Equal(t, 105.0, mdl.Regressor.Predict([]float64{math.NaN(), 2}))
}

func TestResolveUnknownItem(t *testing.T) {
	path := writeArtifact(t, testArtifact)

	reg, err := Load(path, zerolog.Nop())
	require.NoError(t, err)

	_, ok := reg.Resolve(999)
	assert.False(t, ok)
}

func TestItemsAreSorted(t *testing.T) {
	reg := NewStatic(
		&contracts.Model{ItemID: 42},
		&contracts.Model{ItemID: 7},
		&contracts.Model{ItemID: 23},
	)

	assert.Equal(t, []contracts.ItemID{7, 23, 42}, reg.Items())
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"), zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadRejectsEmptyArtifact(t *testing.T) {
	path := writeArtifact(t, `{"version": 1, "items": {}}`)
	_, err := Load(path, zerolog.Nop())
	assert.Error(t, err)
}

func TestLoadRejectsUnknownFeature(t *testing.T) {
	path := writeArtifact(t, `{
	  "version": 1,
	  "items": {
	    "11": {
	      "feature_names": ["y_lag_1"],
	      "base_score": 0,
	      "trees": [[{"feature": "mystery", "threshold": 1, "left": 1, "right": 2}, {"leaf": 0}, {"leaf": 1}]]
	    }
	  }
	}`)
	_, err := Load(path, zerolog.Nop())
	assert.ErrorContains(t, err, "unknown feature")
}

func TestLoadRejectsBadChildIndex(t *testing.T) {
	path := writeArtifact(t, `{
	  "version": 1,
	  "items": {
	    "11": {
	      "feature_names": ["y_lag_1"],
	      "base_score": 0,
	      "trees": [[{"feature": "y_lag_1", "threshold": 1, "left": 5, "right": 2}, {"leaf": 0}, {"leaf": 1}]]
	    }
	  }
	}`)
	_, err := Load(path, zerolog.Nop())
	assert.ErrorContains(t, err, "child index")
}

func TestEnsembleSumsTrees(t *testing.T) {
	leaf := func(v float64) artifactNode { return artifactNode{Leaf: &v} }
	trees := [][]artifactNode{
		{leaf(1.5)},
		{leaf(2.5)},
	}

	ens, err := buildEnsemble(trees, 10, []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, 14.0, ens.Predict([]float64{0}))
}
