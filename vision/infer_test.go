package vision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"octvision/util/common"
)

func TestClassifyReturnsKnownLabel(t *testing.T) {
	m := newFixtureModel(t)
	img := writeFixtureImage(t, t.TempDir())

	label, prob, err := m.Classify(img)
	require.NoError(t, err)
	assert.Contains(t, m.Labels(), label)
	assert.Greater(t, prob, 0.0)
	assert.LessOrEqual(t, prob, 1.0)
}

func TestClassifyIsDeterministic(t *testing.T) {
	m := newFixtureModel(t)
	img := writeFixtureImage(t, t.TempDir())

	label1, prob1, err := m.Classify(img)
	require.NoError(t, err)
	label2, prob2, err := m.Classify(img)
	require.NoError(t, err)
	assert.Equal(t, label1, label2)
	assert.Equal(t, prob1, prob2)
}

func TestClassifyRejectsNonImage(t *testing.T) {
	m := newFixtureModel(t)
	path := filepath.Join(t.TempDir(), "x.png")
	require.NoError(t, os.WriteFile(path, []byte("this is not an image"), 0o644))

	_, _, err := m.Classify(path)
	assert.ErrorIs(t, err, common.ErrDecode)
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{1, 2, 3})
	var sum float64
	for _, p := range probs {
		assert.Greater(t, p, 0.0)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, probs[2], probs[1])
	assert.Greater(t, probs[1], probs[0])

	// Shift invariance keeps large logits from overflowing.
	shifted := softmax([]float32{1001, 1002, 1003})
	for i := range probs {
		assert.InDelta(t, probs[i], shifted[i], 1e-9)
	}
}
