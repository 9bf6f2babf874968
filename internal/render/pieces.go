package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	nchess "github.com/corentings/chess/v2"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// Piece outlines on a 45x45 canvas.
var pieceShapes = map[nchess.PieceType][]string{
	nchess.Pawn: {
		`<circle cx="22.5" cy="13" r="5"/>`,
		`<path d="M17 19 L28 19 L27 22 L29 33 L34 36 L11 36 L16 33 L18 22 Z"/>`,
	},
	nchess.Rook: {
		`<path d="M11 36 L34 36 L34 33 L30 31 L30 17 L33 15 L33 9 L29 9 L29 12 L25 12 L25 9 L20 9 L20 12 L16 12 L16 9 L12 9 L12 15 L15 17 L15 31 L11 33 Z"/>`,
	},
	nchess.Knight: {
		`<path d="M13 36 L33 36 L33 32 L31 21 L27 12 L22 9 L21 6 L18 10 L14 15 L10 24 L12 26 L16 23 L20 21 L15 31 L13 32 Z"/>`,
	},
	nchess.Bishop: {
		`<circle cx="22.5" cy="8" r="2.5"/>`,
		`<path d="M22.5 10.5 L28.5 18 L27 27 L18 27 L16.5 18 Z"/>`,
		`<path d="M15 30 L30 30 L30 33 L35 36 L10 36 L15 33 Z"/>`,
	},
	nchess.Queen: {
		`<path d="M10 36 L35 36 L33 30 L37 12 L29 24 L27 9 L22.5 23 L18 9 L16 24 L8 12 L12 30 Z"/>`,
	},
	nchess.King: {
		`<path d="M21 4 L24 4 L24 7 L27 7 L27 10 L24 10 L24 14 L21 14 L21 10 L18 10 L18 7 L21 7 Z"/>`,
		`<path d="M11 36 L34 36 L32 28 L37 20 L29 15 L16 15 L8 20 L13 28 Z"/>`,
	},
}

func pieceSVG(p nchess.Piece) ([]byte, error) {
	shapes, ok := pieceShapes[p.Type()]
	if !ok {
		return nil, fmt.Errorf("no shape for piece %v", p)
	}
	fill, stroke := "#f8f8f8", "#1a1a1a"
	if p.Color() == nchess.Black {
		fill, stroke = "#1f1f1f", "#e6e6e6"
	}
	var b strings.Builder
	b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 45 45" width="45" height="45">`)
	for _, s := range shapes {
		attrs := fmt.Sprintf(` fill="%s" stroke="%s" stroke-width="1.5" stroke-linejoin="round"/>`, fill, stroke)
		b.WriteString(strings.Replace(s, "/>", attrs, 1))
	}
	b.WriteString(`</svg>`)
	return []byte(b.String()), nil
}

type pieceKey struct {
	piece nchess.Piece
	size  int
}

var (
	pieceCache   = map[pieceKey]image.Image{}
	pieceCacheMu sync.RWMutex
)

func pieceImage(p nchess.Piece, size int) (image.Image, error) {
	key := pieceKey{piece: p, size: size}
	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	svg, err := pieceSVG(p)
	if err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(strings.NewReader(string(svg)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}
