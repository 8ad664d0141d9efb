package palette

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"golang.org/x/image/webp"

	"github.com/iburimskiy/meteor-shower/internal/meteor"
)

// ErrUnknownFormat is returned for banner data that is not PNG, JPEG, GIF or WebP.
var ErrUnknownFormat = errors.New("unknown image format")

// seedEdge is the side length banners are shrunk to before averaging.
const seedEdge = 64

// Primary tones, as HCL luminance, for the light and dark schemes.
const (
	lightTone = 0.40
	darkTone  = 0.80
)

// Scheme holds the primary color for each theme variant.
type Scheme struct {
	Light color.RGBA
	Dark  color.RGBA
}

// Default is the scheme used until a banner is loaded.
var Default = SchemeFrom(color.RGBA{R: 0x7a, G: 0x9c, B: 0xff, A: 0xff})

// Primary returns the scheme color for variant.
func (s Scheme) Primary(variant meteor.Theme) color.RGBA {
	if variant == meteor.ThemeDark {
		return s.Dark
	}
	return s.Light
}

// detectFormat reads the magic bytes and returns the image format name.
func detectFormat(data []byte) (string, error) {
	if len(data) < 12 {
		return "", fmt.Errorf("%w: data too short", ErrUnknownFormat)
	}

	switch {
	case data[0] == 0xFF && data[1] == 0xD8 && data[2] == 0xFF:
		return "jpeg", nil
	case data[0] == 0x89 && data[1] == 0x50 && data[2] == 0x4E && data[3] == 0x47:
		return "png", nil
	case string(data[0:6]) == "GIF87a" || string(data[0:6]) == "GIF89a":
		return "gif", nil
	case string(data[0:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "webp", nil
	}
	return "", ErrUnknownFormat
}

// Decode sniffs and decodes banner bytes.
func Decode(data []byte) (image.Image, error) {
	format, err := detectFormat(data)
	if err != nil {
		return nil, err
	}

	r := bytes.NewReader(data)
	var img image.Image
	switch format {
	case "jpeg":
		img, err = jpeg.Decode(r)
	case "png":
		img, err = png.Decode(r)
	case "gif":
		img, err = gif.Decode(r)
	case "webp":
		img, err = webp.Decode(r)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s banner: %w", format, err)
	}
	return img, nil
}

// LoadFile reads and decodes a banner image and returns its scheme.
func LoadFile(path string) (Scheme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Scheme{}, fmt.Errorf("read banner: %w", err)
	}
	img, err := Decode(data)
	if err != nil {
		return Scheme{}, err
	}
	return SchemeFrom(Seed(img)), nil
}

// Seed picks a representative color from img: the mean of a downscaled copy,
// weighted towards saturated pixels so a grey sky does not drown the subject.
func Seed(img image.Image) color.RGBA {
	small := imaging.Resize(img, seedEdge, seedEdge, imaging.Box)

	var sumR, sumG, sumB, sumW float64
	b := small.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			px := small.NRGBAAt(x, y)
			if px.A == 0 {
				continue
			}
			c := colorful.Color{R: float64(px.R) / 255, G: float64(px.G) / 255, B: float64(px.B) / 255}
			_, s, v := c.Hsv()
			w := (0.05 + s*v) * float64(px.A) / 255
			sumR += c.R * w
			sumG += c.G * w
			sumB += c.B * w
			sumW += w
		}
	}
	if sumW == 0 {
		return color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}
	}
	mean := colorful.Color{R: sumR / sumW, G: sumG / sumW, B: sumB / sumW}
	r, g, bl := mean.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: bl, A: 0xff}
}

// SchemeFrom derives light and dark primaries from a seed by keeping its hue
// and chroma and moving it to each variant's tone.
func SchemeFrom(seed color.Color) Scheme {
	c, _ := colorful.MakeColor(withOpaque(seed))
	h, chroma, _ := c.Hcl()
	chroma = math.Max(chroma, 0.25)
	return Scheme{
		Light: toRGBA(colorful.Hcl(h, chroma, lightTone)),
		Dark:  toRGBA(colorful.Hcl(h, chroma*0.7, darkTone)),
	}
}

// FromRGB derives a scheme from a flat banner background color.
func FromRGB(r, g, b uint8) Scheme {
	return SchemeFrom(color.RGBA{R: r, G: g, B: b, A: 0xff})
}

// ParseColor reads a flat banner color written as "#rrggbb", "r,g,b" or
// "rgb(r, g, b)".
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("parse color %q: %w", s, err)
		}
		return toRGBA(c), nil
	}

	body := strings.TrimSuffix(strings.TrimPrefix(s, "rgb("), ")")
	parts := strings.Split(body, ",")
	if len(parts) != 3 {
		return color.RGBA{}, fmt.Errorf("parse color %q: want #rrggbb or r,g,b", s)
	}
	var rgb [3]uint8
	for i, p := range parts {
		v, err := strconv.ParseUint(strings.TrimSpace(p), 10, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("parse color %q: %w", s, err)
		}
		rgb[i] = uint8(v)
	}
	return color.RGBA{R: rgb[0], G: rgb[1], B: rgb[2], A: 0xff}, nil
}

// Tint is how one meteor is painted. All colors are opaque; the renderer
// fades them along the trail.
type Tint struct {
	Head  color.RGBA
	Trail color.RGBA
}

// MeteorTint returns the paint for a meteor under variant. shade in [0, 1]
// spreads meteors around the primary hue so the sky is not monochrome.
func MeteorTint(s Scheme, variant meteor.Theme, shade float64) Tint {
	primary, _ := colorful.MakeColor(s.Primary(variant))
	h, c, l := primary.Hcl()
	h = math.Mod(h+(shade-0.5)*40+360, 360)

	white := colorful.Color{R: 1, G: 1, B: 1}
	headMix := 0.75
	if variant == meteor.ThemeLight {
		headMix = 0.35
	}
	shifted := colorful.Hcl(h, c, l).Clamped()
	head := shifted.BlendRgb(white, headMix).Clamped()

	return Tint{Head: toRGBA(head), Trail: toRGBA(shifted)}
}

// Background returns the top and bottom sky colors for variant.
func Background(s Scheme, variant meteor.Theme) (top, bottom color.RGBA) {
	primary, _ := colorful.MakeColor(s.Primary(variant))
	h, c, _ := primary.Hcl()
	if variant == meteor.ThemeDark {
		return toRGBA(colorful.Hcl(h, c*0.25, 0.06)), toRGBA(colorful.Hcl(h, c*0.45, 0.20))
	}
	return toRGBA(colorful.Hcl(h, c*0.15, 0.92)), toRGBA(colorful.Hcl(h, c*0.30, 0.78))
}

// Fade scales c to alpha a in [0, 1], keeping it premultiplied.
func Fade(c color.RGBA, a float64) color.RGBA {
	a = math.Max(0, math.Min(1, a))
	return color.RGBA{
		R: uint8(float64(c.R) * a),
		G: uint8(float64(c.G) * a),
		B: uint8(float64(c.B) * a),
		A: uint8(float64(c.A) * a),
	}
}

func withOpaque(c color.Color) color.Color {
	r, g, b, _ := c.RGBA()
	return color.RGBA64{R: uint16(r), G: uint16(g), B: uint16(b), A: 0xffff}
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.Clamped().RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}
