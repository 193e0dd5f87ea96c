package profilesvc

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/tiff"
)

const (
	MIMETypePNG  = "image/png"
	MIMETypeTIFF = "image/tiff"

	// MaxBadgeScale bounds the ?scale= query parameter.
	MaxBadgeScale = 8

	badgePadding = 4
)

var (
	// ErrUnknownInterpolator is returned when an unsupported interpolation method is configured.
	ErrUnknownInterpolator = errors.New("unknown interpolator")

	// ErrUnsupportedMIMEType is returned when encoding a badge into an unsupported format.
	ErrUnsupportedMIMEType = errors.New("unsupported MIME type")

	// ErrInvalidScale is returned for a scale outside 1..MaxBadgeScale.
	ErrInvalidScale = errors.New("invalid scale")
)

// BadgeConfig holds configuration parameters for the status badge.
type BadgeConfig struct {
	// Interpolator specifies the scaling algorithm to use.
	// Valid values are: "nearestneighbor", "catmullrom", "bilinear", "approxbilinear"
	Interpolator string `env:"INTERPOLATOR" default:"nearestneighbor"`

	// Scale is the default magnification of the rendered text
	Scale int64 `env:"SCALE" default:"2"`
}

//nolint:gochecknoglobals
var (
	interpolMap = map[string]draw.Interpolator{
		"nearestneighbor": draw.NearestNeighbor,
		"catmullrom":      draw.CatmullRom,
		"bilinear":        draw.BiLinear,
		"approxbilinear":  draw.ApproxBiLinear,
	}

	badgeEncoders = map[string]func(io.Writer, image.Image) error{
		MIMETypePNG:  png.Encode,
		MIMETypeTIFF: func(w io.Writer, i image.Image) error { return tiff.Encode(w, i, nil) },
	}

	badgeVulnerable    = color.RGBA{R: 0xc0, G: 0x39, B: 0x2b, A: 0xff}
	badgeAuthenticated = color.RGBA{R: 0x27, G: 0xae, B: 0x60, A: 0xff}
	badgeForeground    = color.White
)

func getInterpolatorByName(name string) (draw.Interpolator, error) {
	interpol, ok := interpolMap[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownInterpolator, name)
	}

	return interpol, nil
}

// badgeLines returns the text shown on the badge for a status.
func badgeLines(status statusResponse) []string {
	auth := "anonymous"
	if status.Session.Authenticated {
		auth = "authenticated"
	}

	return []string{
		"CSRF: disabled",
		"session: " + auth,
		"id: " + status.Session.SessionID,
	}
}

// renderBadge draws the status lines with the 7x13 bitmap font and scales the
// result by scale using interpol.
func renderBadge(status statusResponse, scale int, interpol draw.Interpolator) (image.Image, error) {
	if scale < 1 || scale > MaxBadgeScale {
		return nil, fmt.Errorf("%w: %d", ErrInvalidScale, scale)
	}

	var (
		face       = basicfont.Face7x13
		lines      = badgeLines(status)
		lineHeight = face.Metrics().Height.Ceil()
		ascent     = face.Metrics().Ascent.Ceil()
		width      = 0
	)

	for _, line := range lines {
		if w := font.MeasureString(face, line).Ceil(); w > width {
			width = w
		}
	}

	bounds := image.Rect(0, 0, width+2*badgePadding, lineHeight*len(lines)+2*badgePadding)

	background := badgeVulnerable
	if status.Session.Authenticated {
		background = badgeAuthenticated
	}

	bitmap := image.NewRGBA(bounds)
	draw.Draw(bitmap, bounds, image.NewUniform(background), image.Point{}, draw.Src)

	//nolint:exhaustruct
	drawer := font.Drawer{
		Dst:  bitmap,
		Src:  image.NewUniform(badgeForeground),
		Face: face,
	}

	for i, line := range lines {
		drawer.Dot = fixed.P(badgePadding, badgePadding+ascent+i*lineHeight)
		drawer.DrawString(line)
	}

	if scale == 1 {
		return bitmap, nil
	}

	scaled := image.NewRGBA(image.Rect(0, 0, bounds.Dx()*scale, bounds.Dy()*scale))
	interpol.Scale(scaled, scaled.Bounds(), bitmap, bitmap.Bounds(), draw.Src, nil)

	return scaled, nil
}

// encodeBadge encodes a badge image into the given format.
// Returns ErrUnsupportedMIMEType if the format is not supported.
func encodeBadge(bitmap image.Image, ctype string) ([]byte, error) {
	encoder, ok := badgeEncoders[ctype]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMIMEType, ctype)
	}

	var buffer bytes.Buffer
	if err := encoder(&buffer, bitmap); err != nil {
		return nil, fmt.Errorf("encode %s: %w", ctype, err)
	}

	return buffer.Bytes(), nil
}
