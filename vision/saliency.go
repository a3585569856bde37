package vision

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"

	xdraw "golang.org/x/image/draw"

	"octvision/logger"
	"octvision/util/common"
)

// GenerateHeatmap renders a class-activation saliency overlay for the scan
// image and writes it as a jet-colormapped PNG named by scan id. Repeated
// calls for the same scan overwrite the previous file; there is no
// versioning. The saliency is computed on the pre-softmax logits (linear
// final activation), trying the Grad-CAM++ weighting first and falling
// back to plain Grad-CAM when it degenerates.
func (m *Model) GenerateHeatmap(imagePath string, scanId int, outDir string) (string, error) {
	img, err := m.decodeImage(imagePath)
	if err != nil {
		return "", err
	}

	out, err := m.forward(m.toUnitTensor(img))
	if err != nil {
		return "", err
	}

	class := 0
	for i, p := range out.probs {
		if p > out.probs[class] {
			class = i
		}
	}

	head := m.head()
	if head == nil {
		return "", common.WrapErrorf(common.ErrInference, "model has no classifier head")
	}
	grads := head.w[class*head.in : (class+1)*head.in]

	cam, err := gradCAMPlusPlus(out.features, grads)
	if err != nil {
		logger.Warningf("Grad-CAM++ failed for scan %d: %v, falling back to Grad-CAM", scanId, err)
		cam, err = gradCAM(out.features, grads)
	}
	if err != nil {
		return "", common.WrapErrorf(common.ErrInference, "heatmap generation failed: %v", err)
	}

	heatmapPath := filepath.Join(outDir, fmt.Sprintf("heatmap_%d.png", scanId))
	if err := writeHeatmapPNG(cam, m.header.InputSize, heatmapPath); err != nil {
		return "", common.WrapErrorf(common.ErrInference, "write heatmap: %v", err)
	}
	return heatmapPath, nil
}

// gradCAM weighs each feature channel by the gradient of the class logit
// with respect to its pooled activation. With a global-average-pool head
// that gradient is the classifier weight itself.
func gradCAM(features *tensor, grads []float32) ([][]float64, error) {
	cam := make([][]float64, features.h)
	maxV := 0.0
	for y := range cam {
		cam[y] = make([]float64, features.w)
		for x := range cam[y] {
			var sum float64
			for c := 0; c < features.c && c < len(grads); c++ {
				sum += float64(grads[c]) * float64(features.at(y, x, c))
			}
			if sum > 0 {
				cam[y][x] = sum
				if sum > maxV {
					maxV = sum
				}
			}
		}
	}
	if maxV <= 0 {
		return nil, common.NewError("saliency map is all zero")
	}
	for y := range cam {
		for x := range cam[y] {
			cam[y][x] /= maxV
		}
	}
	return cam, nil
}

// gradCAMPlusPlus applies the higher-order weighting of Grad-CAM++. The
// per-channel alpha denominators can vanish for flat activations, which is
// the failure mode the plain Grad-CAM fallback covers.
func gradCAMPlusPlus(features *tensor, grads []float32) ([][]float64, error) {
	channelSum := make([]float64, features.c)
	for y := 0; y < features.h; y++ {
		for x := 0; x < features.w; x++ {
			for c := 0; c < features.c; c++ {
				channelSum[c] += float64(features.at(y, x, c))
			}
		}
	}

	weights := make([]float64, features.c)
	area := float64(features.h * features.w)
	valid := false
	for c := 0; c < features.c && c < len(grads); c++ {
		g := float64(grads[c])
		if g <= 0 {
			continue
		}
		denom := 2*g*g + channelSum[c]*g*g*g
		if math.Abs(denom) < 1e-12 {
			return nil, common.NewErrorf("alpha denominator vanished for channel %d", c)
		}
		alpha := g * g / denom
		weights[c] = area * alpha * g
		valid = true
	}
	if !valid {
		return nil, common.NewError("no positively contributing channels")
	}

	cam := make([][]float64, features.h)
	maxV := 0.0
	for y := range cam {
		cam[y] = make([]float64, features.w)
		for x := range cam[y] {
			var sum float64
			for c := 0; c < features.c; c++ {
				sum += weights[c] * float64(features.at(y, x, c))
			}
			if sum > 0 {
				cam[y][x] = sum
				if sum > maxV {
					maxV = sum
				}
			}
		}
	}
	if maxV <= 0 {
		return nil, common.NewError("saliency map is all zero")
	}
	for y := range cam {
		for x := range cam[y] {
			cam[y][x] /= maxV
		}
	}
	return cam, nil
}

// writeHeatmapPNG upsamples the normalized map to the model input size and
// writes it through the jet colormap.
func writeHeatmapPNG(cam [][]float64, size int, path string) error {
	small := image.NewRGBA(image.Rect(0, 0, len(cam[0]), len(cam)))
	for y := range cam {
		for x := range cam[y] {
			small.Set(x, y, jet(cam[y][x]))
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), small, small.Bounds(), xdraw.Over, nil)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, dst)
}
