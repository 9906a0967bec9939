// Package assets reads models and textures from an fs.FS into the forms the
// renderer uploads.
package assets

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"io/fs"

	"github.com/ashengine/ash/render"
	"github.com/cockroachdb/errors"
	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Loader resolves every path against one file system.
type Loader struct {
	fsys fs.FS
	// MaxTextureSize bounds the larger texture dimension. Bigger images are
	// downscaled with Catmull-Rom filtering. Zero disables the limit.
	MaxTextureSize int
}

var _ render.TextureLoader = (*Loader)(nil)

func NewLoader(fsys fs.FS) *Loader {
	return &Loader{fsys: fsys}
}

func (l *Loader) LoadTexture(path string) (render.Pixels, error) {
	f, err := l.fsys.Open(path)
	if err != nil {
		return render.Pixels{}, err
	}
	defer f.Close()

	pixels, err := decodeRGBA(f, l.MaxTextureSize)
	if err != nil {
		return render.Pixels{}, errors.Wrapf(err, "decode %s", path)
	}
	return pixels, nil
}

// DecodeRGBA decodes any registered image format into tightly packed,
// non-premultiplied 8-bit RGBA.
func DecodeRGBA(r io.Reader) (render.Pixels, error) {
	return decodeRGBA(r, 0)
}

func decodeRGBA(r io.Reader, maxSize int) (render.Pixels, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return render.Pixels{}, err
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return render.Pixels{}, errors.New("image has no pixels")
	}

	w, h := fitWithin(bounds.Dx(), bounds.Dy(), maxSize)
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == bounds.Dx() && h == bounds.Dy() {
		draw.Draw(dst, dst.Bounds(), src, bounds.Min, draw.Src)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Src, nil)
	}

	return render.Pixels{Width: w, Height: h, RGBA: dst.Pix}, nil
}

// fitWithin scales w x h down to keep the larger side at most limit,
// preserving aspect ratio.
func fitWithin(w, h, limit int) (int, int) {
	if limit <= 0 || (w <= limit && h <= limit) {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}
