package vision

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateHeatmap(t *testing.T) {
	m := newFixtureModel(t)
	dir := t.TempDir()
	img := writeFixtureImage(t, dir)

	path, err := m.GenerateHeatmap(img, 42, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "heatmap_42.png"), path)

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	decoded, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, m.InputSize(), decoded.Bounds().Dx())
	assert.Equal(t, m.InputSize(), decoded.Bounds().Dy())
}

func TestGenerateHeatmapOverwrites(t *testing.T) {
	m := newFixtureModel(t)
	dir := t.TempDir()
	img := writeFixtureImage(t, dir)

	path1, err := m.GenerateHeatmap(img, 7, dir)
	require.NoError(t, err)
	path2, err := m.GenerateHeatmap(img, 7, dir)
	require.NoError(t, err)
	assert.Equal(t, path1, path2)
}

func TestGradCAMNormalizes(t *testing.T) {
	features := newTensor(2, 2, 2)
	features.set(0, 0, 0, 1)
	features.set(1, 1, 0, 2)
	features.set(0, 1, 1, 4)

	cam, err := gradCAM(features, []float32{1, 0.5})
	require.NoError(t, err)

	maxV := 0.0
	for y := range cam {
		for x := range cam[y] {
			assert.GreaterOrEqual(t, cam[y][x], 0.0)
			assert.LessOrEqual(t, cam[y][x], 1.0)
			if cam[y][x] > maxV {
				maxV = cam[y][x]
			}
		}
	}
	assert.Equal(t, 1.0, maxV)
}

func TestGradCAMAllZeroFails(t *testing.T) {
	features := newTensor(2, 2, 2)
	_, err := gradCAM(features, []float32{1, 1})
	assert.Error(t, err)
}

func TestGradCAMPlusPlusRequiresPositiveGradient(t *testing.T) {
	features := newTensor(2, 2, 2)
	features.set(0, 0, 0, 1)

	_, err := gradCAMPlusPlus(features, []float32{-1, -1})
	assert.Error(t, err)
}
