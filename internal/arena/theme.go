package arena

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

type rgb struct{ r, g, b int }

func hex(s string) rgb {
	s = strings.TrimPrefix(s, "#")
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil || len(s) != 6 {
		panic(fmt.Sprintf("bad theme color %q", s))
	}
	return rgb{int(v >> 16 & 0xff), int(v >> 8 & 0xff), int(v & 0xff)}
}

// Theme is a board palette.
type Theme struct {
	Key         string
	Name        string
	Description string
	Light       rgb
	Dark        rgb
	WhitePiece  rgb
	BlackPiece  rgb
	Border      color.Attribute
}

var highlight = hex("#f6f669")

var themes = []Theme{
	{"classic", "Classic", "Traditional brown and cream chess board", hex("#f0d9b5"), hex("#b58863"), hex("#ffffff"), hex("#000000"), color.FgCyan},
	{"ocean", "Ocean Depths", "Deep blue waters with aqua highlights", hex("#4a9eff"), hex("#1e3a8a"), hex("#f0f9ff"), hex("#0f172a"), color.FgBlue},
	{"forest", "Enchanted Forest", "Earth tones with forest greens", hex("#86efac"), hex("#166534"), hex("#f7fee7"), hex("#14532d"), color.FgGreen},
	{"sunset", "Golden Sunset", "Warm oranges and deep reds", hex("#fed7aa"), hex("#c2410c"), hex("#fffbeb"), hex("#431407"), color.FgMagenta},
	{"neon", "Neon Nights", "Cyberpunk vibes with electric colors", hex("#a855f7"), hex("#581c87"), hex("#fdf4ff"), hex("#3b0764"), color.FgMagenta},
	{"monochrome", "Monochrome", "Pure black and white elegance", hex("#ffffff"), hex("#000000"), hex("#000000"), hex("#ffffff"), color.FgWhite},
	{"royal", "Royal Purple", "Majestic purples fit for royalty", hex("#e9d5ff"), hex("#7c3aed"), hex("#faf5ff"), hex("#4c1d95"), color.FgMagenta},
	{"sakura", "Cherry Blossom", "Soft pinks inspired by Japanese sakura", hex("#fce7f3"), hex("#be185d"), hex("#fdf2f8"), hex("#831843"), color.FgMagenta},
}

func Themes() []Theme {
	out := make([]Theme, len(themes))
	copy(out, themes)
	return out
}

func ThemeNames() []string {
	names := make([]string, len(themes))
	for i, t := range themes {
		names[i] = t.Key
	}
	return names
}

// LookupTheme finds a theme by key, case-insensitively.
func LookupTheme(key string) (Theme, bool) {
	k := strings.ToLower(strings.TrimSpace(key))
	for _, t := range themes {
		if t.Key == k {
			return t, true
		}
	}
	return Theme{}, false
}

func (t Theme) square(light bool) *color.Color {
	c := t.Dark
	if light {
		c = t.Light
	}
	return color.BgRGB(c.r, c.g, c.b)
}

func (t Theme) border() *color.Color { return color.New(t.Border, color.Bold) }
