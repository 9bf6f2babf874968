// Package render draws a position as a PNG image for export.
package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	nchess "github.com/corentings/chess/v2"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	SquareSize = 64
	Margin     = 28
	TitleSpace = 28
)

var (
	lightSquare     = color.RGBA{240, 217, 181, 255}
	darkSquare      = color.RGBA{181, 136, 99, 255}
	highlightColor  = color.NRGBA{R: 246, G: 246, B: 105, A: 150}
	backgroundColor = color.RGBA{38, 36, 33, 255}
	labelColor      = color.RGBA{220, 220, 220, 255}
)

type Highlight struct {
	From, To nchess.Square
}

type Options struct {
	// Perspective Black puts rank 1 on top.
	Perspective nchess.Color
	LastMove    *Highlight
	Title       string
}

// Size returns the image dimensions BoardPNG produces.
func Size() (int, int) {
	return SquareSize*8 + Margin*2, SquareSize*8 + Margin*2 + TitleSpace
}

// Origin is the top-left corner of the board inside the image.
func Origin() image.Point { return image.Point{X: Margin, Y: Margin + TitleSpace} }

func BoardPNG(ctx context.Context, board *nchess.Board, opts Options) ([]byte, error) {
	if board == nil {
		return nil, fmt.Errorf("board is nil")
	}
	w, h := Size()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, draw.Src)
	origin := Origin()

	for _, sq := range allSquares() {
		r := SquareRect(sq, opts.Perspective)
		clr := darkSquare
		if (int(sq.File())+int(sq.Rank()))%2 == 1 {
			clr = lightSquare
		}
		draw.Draw(img, r, image.NewUniform(clr), image.Point{}, draw.Src)
	}
	if hl := opts.LastMove; hl != nil {
		for _, sq := range []nchess.Square{hl.From, hl.To} {
			draw.Draw(img, SquareRect(sq, opts.Perspective), image.NewUniform(highlightColor), image.Point{}, draw.Over)
		}
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	for _, sq := range allSquares() {
		p := board.Piece(sq)
		if p == nchess.NoPiece {
			continue
		}
		pi, err := pieceImage(p, SquareSize)
		if err != nil {
			return nil, err
		}
		r := SquareRect(sq, opts.Perspective)
		draw.Draw(img, r, pi, image.Point{}, draw.Over)
	}

	drawLabels(img, origin, opts)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// SquareRect is the pixel rectangle of sq.
func SquareRect(sq nchess.Square, perspective nchess.Color) image.Rectangle {
	col, row := int(sq.File()), 7-int(sq.Rank())
	if perspective == nchess.Black {
		col, row = 7-col, 7-row
	}
	o := Origin()
	x, y := o.X+col*SquareSize, o.Y+row*SquareSize
	return image.Rect(x, y, x+SquareSize, y+SquareSize)
}

func allSquares() []nchess.Square {
	out := make([]nchess.Square, 0, 64)
	for f := nchess.FileA; f <= nchess.FileH; f++ {
		for r := nchess.Rank1; r <= nchess.Rank8; r++ {
			out = append(out, nchess.NewSquare(f, r))
		}
	}
	return out
}

func drawLabels(img *image.RGBA, origin image.Point, opts Options) {
	face := basicfont.Face7x13
	d := &font.Drawer{Dst: img, Src: image.NewUniform(labelColor), Face: face}
	ascent := face.Metrics().Ascent.Ceil()

	if opts.Title != "" {
		drawCentered(d, opts.Title, img.Bounds().Dx()/2, Margin/2+ascent)
	}
	for i := 0; i < 8; i++ {
		f := nchess.File(i)
		r := nchess.Rank(i)
		fileSq := SquareRect(nchess.NewSquare(f, nchess.Rank1), opts.Perspective)
		rankSq := SquareRect(nchess.NewSquare(nchess.FileA, r), opts.Perspective)
		bottom := origin.Y + 8*SquareSize
		drawCentered(d, f.String(), (fileSq.Min.X+fileSq.Max.X)/2, bottom+(Margin+ascent)/2)
		drawCentered(d, r.String(), origin.X-Margin/2, (rankSq.Min.Y+rankSq.Max.Y)/2+ascent/2)
	}
}

func drawCentered(d *font.Drawer, text string, centerX, baseline int) {
	if text == "" {
		return
	}
	width := d.MeasureString(text).Round()
	d.Dot = fixed.P(centerX-width/2, baseline)
	d.DrawString(text)
}
