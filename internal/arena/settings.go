package arena

import (
	"context"
	"fmt"
	"io"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/park285/chess-arena/internal/chess"
	"github.com/park285/chess-arena/internal/userconfig"
)

func (a *App) settingsMenu(ctx context.Context) error {
	for {
		a.say("settings.show", a.settings)
		line, err := a.ask(ctx, "settings.prompt", nil)
		if err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "1", "theme":
			if err := a.changeTheme(ctx); err != nil {
				return err
			}
		case "2", "sound":
			a.savePrefs(func(c *userconfig.Config) error {
				c.Sound = !a.settings.Sound
				return nil
			})
		case "3", "server":
			url, err := a.ask(ctx, "settings.server_prompt", a.settings)
			if err != nil {
				return err
			}
			if url = strings.TrimSpace(url); url != "" {
				a.savePrefs(func(c *userconfig.Config) error {
					c.ServerURL = url
					return nil
				})
			}
		case "4", "difficulty":
			name, err := a.ask(ctx, "settings.difficulty_prompt", nil)
			if err != nil {
				return err
			}
			if p, err := chess.GetPreset(name); err != nil {
				a.say("menu.invalid", nil)
			} else {
				a.savePrefs(func(c *userconfig.Config) error {
					c.Difficulty = p.Name
					return nil
				})
			}
		case "5", "reset":
			ok, err := a.confirm(ctx, "settings.reset_confirm", false)
			if err != nil {
				return err
			}
			if ok && a.d.Prefs != nil {
				if err := a.d.Prefs.Reset(); err != nil {
					a.say("settings.save_failed", map[string]any{"Error": err.Error()})
				} else if cfg, err := a.d.Prefs.Load(); err == nil {
					a.applySettings(cfg)
					a.say("settings.reset_done", nil)
				}
			}
		default:
			return nil
		}
	}
}

func (a *App) changeTheme(ctx context.Context) error {
	all := Themes()
	for i, t := range all {
		a.say("settings.theme_item", map[string]any{"N": i + 1, "Theme": t, "Current": t.Key == a.theme.Key})
	}
	n, err := a.askChoice(ctx, "settings.theme_prompt", nil, len(all))
	if err != nil || n == 0 {
		return err
	}
	chosen := all[n-1]
	a.savePrefs(func(c *userconfig.Config) error {
		c.Theme = chosen.Key
		return nil
	})
	if a.settings.ShowPreview {
		PreviewTheme(a.out, chosen)
	}
	return nil
}

// savePrefs updates the in-memory settings and, when a store is configured,
// the file.
func (a *App) savePrefs(fn func(*userconfig.Config) error) {
	next := a.settings
	if err := fn(&next); err != nil {
		a.say("settings.save_failed", map[string]any{"Error": err.Error()})
		return
	}
	if a.d.Prefs != nil {
		if _, err := a.d.Prefs.Update(fn); err != nil {
			a.say("settings.save_failed", map[string]any{"Error": err.Error()})
			return
		}
	}
	a.applySettings(next)
	a.say("settings.saved", nil)
}

func (a *App) applySettings(cfg userconfig.Config) {
	a.settings = cfg
	if t, ok := LookupTheme(cfg.Theme); ok {
		a.theme = t
	}
}

// PreviewTheme shows the start position in t.
func PreviewTheme(w io.Writer, t Theme) {
	fmt.Fprintf(w, "\n%s - %s\n", t.border().Sprint(t.Name), t.Description)
	RenderBoard(w, nchess.NewGame().Position().Board(), BoardView{Theme: t})
}

// ListThemes prints every theme key with its description.
func ListThemes(w io.Writer) {
	for _, t := range themes {
		fmt.Fprintf(w, "  %-12s %s - %s\n", t.Key, t.Name, t.Description)
	}
}
