package vision

import (
	"math"

	"octvision/util/common"
)

// forwardResult captures everything one inference pass produces: the
// feature maps entering global average pooling (needed by the saliency
// generator), the raw pre-softmax logits and the softmax probabilities.
type forwardResult struct {
	features *tensor
	logits   []float32
	probs    []float64
}

// forward runs the layer stack once. The model is immutable, so concurrent
// calls are safe.
func (m *Model) forward(t *tensor) (*forwardResult, error) {
	res := &forwardResult{}
	for _, l := range m.layers {
		if _, ok := l.(*gapLayer); ok {
			res.features = t
		}
		t = l.forward(t)
	}
	if res.features == nil {
		return nil, common.WrapErrorf(common.ErrInference, "model has no pooling layer")
	}

	res.logits = append([]float32{}, t.data...)
	res.probs = softmax(res.logits)
	return res, nil
}

func softmax(logits []float32) []float64 {
	maxLogit := float64(logits[0])
	for _, v := range logits[1:] {
		if float64(v) > maxLogit {
			maxLogit = float64(v)
		}
	}
	probs := make([]float64, len(logits))
	var sum float64
	for i, v := range logits {
		probs[i] = math.Exp(float64(v) - maxLogit)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

// Classify decodes the image at path, applies training-time preprocessing,
// runs one forward pass and returns the arg-max label from the fixed
// ordered category list with the corresponding probability in [0,1].
func (m *Model) Classify(path string) (string, float64, error) {
	img, err := m.decodeImage(path)
	if err != nil {
		return "", 0, err
	}

	out, err := m.forward(m.toInputTensor(img))
	if err != nil {
		return "", 0, err
	}

	best := 0
	for i, p := range out.probs {
		if p > out.probs[best] {
			best = i
		}
	}
	if best >= len(m.header.Labels) {
		return "", 0, common.WrapErrorf(common.ErrInference, "class index %d outside label set", best)
	}
	return m.header.Labels[best], out.probs[best], nil
}

// head returns the final dense classifier layer. The saliency generator
// reads its weights as the analytic gradient of each logit with respect to
// the pooled features.
func (m *Model) head() *denseLayer {
	for i := len(m.layers) - 1; i >= 0; i-- {
		if d, ok := m.layers[i].(*denseLayer); ok {
			return d
		}
	}
	return nil
}
