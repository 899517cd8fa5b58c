package report

import (
	"bytes"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"os"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"goconnectomist/pkg/errdefs"
)

const (
	// maxImageSide bounds the embedded image size in pixels.
	maxImageSide = 1024

	missingImage = "missing"
)

// imageCache registers every image once with the document.
type imageCache struct {
	pdf  *fpdf.Fpdf
	seen map[string]*fpdf.ImageInfoType
}

func newImageCache(pdf *fpdf.Fpdf) *imageCache {
	return &imageCache{pdf: pdf, seen: make(map[string]*fpdf.ImageInfoType)}
}

// get returns the registered name and info of path. A missing file is
// replaced by a placeholder.
func (c *imageCache) get(path string) (string, *fpdf.ImageInfoType, error) {
	name := path
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		name = missingImage
	}
	if info, ok := c.seen[name]; ok {
		return name, info, nil
	}

	var data []byte
	var err error
	if name == missingImage {
		data, err = placeholderPNG(320, 240, "missing")
	} else {
		data, err = loadPNG(path)
	}
	if err != nil {
		return "", nil, err
	}
	info := c.pdf.RegisterImageOptionsReader(name, fpdf.ImageOptions{ImageType: "PNG"}, bytes.NewReader(data))
	if c.pdf.Err() {
		return "", nil, c.pdf.Error()
	}
	c.seen[name] = info
	return name, info, nil
}

// loadPNG decodes a PNG or JPEG image, downscales it and encodes it as PNG.
func loadPNG(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errdefs.BadFile(path)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, errdefs.BadFile(path)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, downscale(img, maxImageSide)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// downscale shrinks img so that its largest side is maxSide, keeping its
// aspect ratio. Smaller images are returned as is.
func downscale(img image.Image, maxSide int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w <= maxSide && h <= maxSide {
		return img
	}
	scale := float64(maxSide) / float64(max(w, h))
	dst := image.NewRGBA(image.Rect(0, 0, max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Over, nil)
	return dst
}

// placeholderPNG draws a framed grey box with a centered label.
func placeholderPNG(width, height int, label string) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{230, 230, 230, 255}), image.Point{}, draw.Src)

	frame := color.RGBA{120, 120, 120, 255}
	for x := 0; x < width; x++ {
		img.Set(x, 0, frame)
		img.Set(x, height-1, frame)
	}
	for y := 0; y < height; y++ {
		img.Set(0, y, frame)
		img.Set(width-1, y, frame)
	}

	face := basicfont.Face7x13
	textWidth := font.MeasureString(face, label).Ceil()
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(frame),
		Face: face,
		Dot:  fixed.P((width-textWidth)/2, (height+13)/2),
	}
	drawer.DrawString(label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
