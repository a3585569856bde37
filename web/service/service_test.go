package service

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"octvision/database"
	"octvision/vision"
	"octvision/web/websocket"
)

func setupTestDB(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "octvision.db")
	require.NoError(t, database.InitDB(dbPath))
	t.Cleanup(func() {
		require.NoError(t, database.CloseDB())
	})
}

func newTestModel(t *testing.T) *vision.Model {
	t.Helper()
	header := vision.Header{
		Format:    1,
		Name:      "oct-test",
		InputSize: 8,
		Channels:  3,
		Mean:      []float32{0, 0, 0},
		Labels:    []string{"AMD", "CNV", "CSR", "DME", "DR", "DRUSEN", "MH", "NORMAL"},
		Layers: []vision.LayerSpec{
			{Type: "conv", In: 3, Out: 4, Kernel: 3, Stride: 1, Pad: 1},
			{Type: "relu"},
			{Type: "maxpool", Size: 2},
			{Type: "gap"},
			{Type: "dense", In: 4, Out: 8},
		},
	}
	conv := make([]float32, 4*3*3*3+4)
	for i := range conv {
		conv[i] = 0.01 * float32(i%7+1)
	}
	dense := make([]float32, 8*4+8)
	for i := range dense {
		dense[i] = 0.05 * float32(i%5+1)
	}
	m, err := vision.NewModel(header, [][]float32{conv, dense})
	require.NoError(t, err)
	return m
}

func newTestScanService(t *testing.T) *ScanService {
	t.Helper()
	return NewScanService(newTestModel(t), t.TempDir(), websocket.NewHub())
}

func openTestImage(t *testing.T) *os.File {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 16), G: uint8(y * 16), B: 128, A: 255})
		}
	}
	path := filepath.Join(t.TempDir(), "scan.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	f, err = os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}
