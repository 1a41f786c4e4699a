package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"

	"giftcard-core/internal/domain/entity"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

const (
	DefaultSize     = 512
	defaultFontSize = 32
)

var (
	background = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	foreground = color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 0xff}
)

// Placeholder draws the "Gift Card - {Occasion}" card used when no provider
// image is available.
type Placeholder struct {
	width, height int
	face          font.Face
	// last-resort bytes rendered at construction time
	blank []byte
}

// NewPlaceholder loads the optional TTF font at fontPath. Without a font the
// built-in bitmap face is used.
func NewPlaceholder(width, height int, fontPath string) (*Placeholder, error) {
	p := &Placeholder{width: width, height: height}
	if fontPath != "" {
		face, err := loadFontFace(fontPath, defaultFontSize)
		if err != nil {
			log.Warn().Err(err).Str("font", fontPath).Msg("placeholder font unavailable, using bitmap face")
		} else {
			p.face = face
		}
	}

	blank, err := encodeSolid(width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to encode blank placeholder: %w", err)
	}
	p.blank = blank
	return p, nil
}

// Text returns the label drawn on the card.
func Text(occasion string) string {
	return "Gift Card - " + entity.Occasion(occasion).Label()
}

// Render never fails: if drawing or encoding goes wrong the pre-rendered blank
// card is returned instead.
func (p *Placeholder) Render(occasion string) []byte {
	data, err := p.draw(Text(occasion))
	if err != nil {
		log.Error().Err(err).Msg("placeholder rendering failed, returning blank card")
		return p.blank
	}
	return data
}

func (p *Placeholder) draw(text string) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while drawing placeholder: %v", r)
		}
	}()

	dc := gg.NewContext(p.width, p.height)
	dc.SetColor(background)
	dc.Clear()
	dc.SetColor(foreground)
	if p.face != nil {
		dc.SetFontFace(p.face)
	}

	w, h, ok := measure(dc, text)
	if ok {
		dc.DrawString(text, (float64(p.width)-w)/2, (float64(p.height)+h)/2)
	} else {
		// Fixed position and size when the face cannot be measured.
		dc.SetFontFace(basicfont.Face7x13)
		dc.DrawString(text, float64(p.width)/2-100, float64(p.height)/2)
	}

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, fmt.Errorf("failed to encode PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func measure(dc *gg.Context, text string) (w, h float64, ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	w, h = dc.MeasureString(text)
	return w, h, w > 0 && h > 0 && w <= float64(dc.Width())
}

func encodeSolid(width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, background)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func loadFontFace(fontPath string, size float64) (font.Face, error) {
	fontBytes, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read font file: %w", err)
	}
	parsedFont, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to parse TTF: %w", err)
	}
	return truetype.NewFace(parsedFont, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
