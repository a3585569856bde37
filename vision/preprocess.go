package vision

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"

	xdraw "golang.org/x/image/draw"

	"octvision/util/common"
)

// decodeImage reads a PNG or JPEG file and scales it to the model's square
// input resolution. Anything that fails to decode is an ErrDecode: the
// upload allow-list checks extensions and declared content types, but the
// bytes themselves are only trusted after this point.
func (m *Model) decodeImage(path string) (*image.RGBA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, common.WrapError(common.ErrDecode, err)
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return nil, common.WrapError(common.ErrDecode, err)
	}

	size := m.header.InputSize
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	xdraw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst, nil
}

// toInputTensor applies the training-time preprocessing recorded in the
// artifact header: optional BGR channel order, then per-channel mean
// subtraction. This must match training exactly or predictions are
// silently wrong.
func (m *Model) toInputTensor(img *image.RGBA) *tensor {
	size := m.header.InputSize
	t := newTensor(size, size, m.header.Channels)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			px := [3]float32{float32(r >> 8), float32(g >> 8), float32(b >> 8)}
			if m.header.BGR {
				px[0], px[2] = px[2], px[0]
			}
			for c := 0; c < m.header.Channels && c < 3; c++ {
				v := px[c]
				if c < len(m.header.Mean) {
					v -= m.header.Mean[c]
				}
				t.set(y, x, c, v)
			}
		}
	}
	return t
}

// toUnitTensor scales pixels into [0,1] without mean subtraction. The
// saliency branch uses this scaling.
func (m *Model) toUnitTensor(img *image.RGBA) *tensor {
	size := m.header.InputSize
	t := newTensor(size, size, m.header.Channels)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			px := [3]float32{float32(r >> 8) / 255, float32(g >> 8) / 255, float32(b >> 8) / 255}
			for c := 0; c < m.header.Channels && c < 3; c++ {
				t.set(y, x, c, px[c])
			}
		}
	}
	return t
}
