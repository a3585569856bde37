// Package vision implements the retinal OCT image classifier and its
// saliency generator. A model artifact is a self-describing file: a JSON
// header carrying the input geometry, preprocessing constants, the fixed
// ordered label list and the layer stack, followed by a raw little-endian
// float32 weight blob. The artifact is loaded once at startup and the
// resulting Model is injected into every component that needs it; the
// label list is never recomputed at request time.
package vision

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"os"
	"sort"

	"octvision/util/common"
)

const formatVersion = 1

// LayerSpec describes one layer in the artifact header.
type LayerSpec struct {
	Type   string `json:"type"` // conv, relu, maxpool, gap, dense
	In     int    `json:"in,omitempty"`
	Out    int    `json:"out,omitempty"`
	Kernel int    `json:"kernel,omitempty"`
	Stride int    `json:"stride,omitempty"`
	Pad    int    `json:"pad,omitempty"`
	Size   int    `json:"size,omitempty"` // pooling window
}

// Header is the JSON preamble of a model artifact.
type Header struct {
	Format    int         `json:"format"`
	Name      string      `json:"name"`
	InputSize int         `json:"inputSize"`
	Channels  int         `json:"channels"`
	Mean      []float32   `json:"mean"` // per-channel mean, training-time order
	BGR       bool        `json:"bgr"`  // channels swapped before mean subtraction
	Labels    []string    `json:"labels"`
	Layers    []LayerSpec `json:"layers"`
}

// Model is a loaded classifier. It is read-only after LoadModel and safe
// for concurrent inference.
type Model struct {
	header Header
	layers []layer
}

// Labels returns the fixed ordered diagnostic category list.
func (m *Model) Labels() []string {
	return m.header.Labels
}

// InputSize returns the square input resolution in pixels.
func (m *Model) InputSize() int {
	return m.header.InputSize
}

// Name returns the artifact name recorded in the header.
func (m *Model) Name() string {
	return m.header.Name
}

func validateHeader(h *Header) error {
	if h.Format != formatVersion {
		return common.NewErrorf("unsupported model format %d", h.Format)
	}
	if h.InputSize <= 0 || h.Channels <= 0 {
		return common.NewErrorf("invalid input geometry %dx%dx%d", h.InputSize, h.InputSize, h.Channels)
	}
	if len(h.Labels) == 0 {
		return common.NewError("model carries no labels")
	}
	if !sort.StringsAreSorted(h.Labels) {
		return common.NewError("model labels are not sorted")
	}
	seen := make(map[string]bool, len(h.Labels))
	for _, l := range h.Labels {
		if l == "" || seen[l] {
			return common.NewErrorf("duplicate or empty label %q", l)
		}
		seen[l] = true
	}
	if len(h.Layers) == 0 {
		return common.NewError("model carries no layers")
	}
	last := h.Layers[len(h.Layers)-1]
	if last.Type != "dense" || last.Out != len(h.Labels) {
		return common.NewErrorf("final layer must be dense with %d outputs", len(h.Labels))
	}
	return nil
}

// LoadModel reads and validates a model artifact. Failure here is fatal to
// the process: the server must not come up without a working classifier.
func LoadModel(path string) (*Model, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.NewErrorf("open model artifact: %v", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	headerLine, err := r.ReadBytes('\n')
	if err != nil {
		return nil, common.NewErrorf("read model header: %v", err)
	}

	var header Header
	if err := json.Unmarshal(headerLine, &header); err != nil {
		return nil, common.NewErrorf("parse model header: %v", err)
	}
	if err := validateHeader(&header); err != nil {
		return nil, err
	}

	m := &Model{header: header}
	for _, spec := range header.Layers {
		l, err := buildLayer(spec)
		if err != nil {
			return nil, err
		}
		m.layers = append(m.layers, l)
	}

	for _, l := range m.layers {
		n := l.weightCount()
		if n == 0 {
			continue
		}
		w := make([]float32, n)
		if err := binary.Read(r, binary.LittleEndian, w); err != nil {
			return nil, common.NewErrorf("read model weights: %v", err)
		}
		for _, v := range w {
			if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
				return nil, common.NewError("model weights contain non-finite values")
			}
		}
		l.setWeights(w)
	}

	// Trailing bytes mean the header and blob disagree.
	if _, err := r.ReadByte(); err == nil {
		return nil, common.NewError("model artifact has trailing data")
	}

	return m, nil
}

// SaveModel writes a model artifact. Used by model-packaging tooling and
// by tests that need a runnable fixture.
func SaveModel(m *Model, path string) error {
	var buf bytes.Buffer

	headerLine, err := json.Marshal(m.header)
	if err != nil {
		return err
	}
	buf.Write(headerLine)
	buf.WriteByte('\n')

	for _, l := range m.layers {
		if l.weightCount() == 0 {
			continue
		}
		if err := binary.Write(&buf, binary.LittleEndian, l.weights()); err != nil {
			return err
		}
	}

	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// NewModel assembles a model from a header and per-layer weights. Intended
// for packaging tooling; LoadModel is the runtime entry point.
func NewModel(header Header, layerWeights [][]float32) (*Model, error) {
	if err := validateHeader(&header); err != nil {
		return nil, err
	}
	m := &Model{header: header}
	wi := 0
	for _, spec := range header.Layers {
		l, err := buildLayer(spec)
		if err != nil {
			return nil, err
		}
		if n := l.weightCount(); n > 0 {
			if wi >= len(layerWeights) {
				return nil, common.NewError("missing layer weights")
			}
			if len(layerWeights[wi]) != n {
				return nil, common.NewErrorf("layer %s expects %d weights, got %d", spec.Type, n, len(layerWeights[wi]))
			}
			l.setWeights(layerWeights[wi])
			wi++
		}
		m.layers = append(m.layers, l)
	}
	if wi != len(layerWeights) {
		return nil, common.NewError("unused layer weights")
	}
	return m, nil
}
