package arena

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/park285/chess-arena/internal/render"
	"github.com/park285/chess-arena/internal/savedgames"
)

// library is the saved-games manager: list, view, export and delete.
func (a *App) library(ctx context.Context) error {
	if a.d.Games == nil {
		a.say("library.unavailable", nil)
		return nil
	}
	for {
		entries, err := a.d.Games.List()
		if err != nil {
			a.say("library.error", map[string]any{"Error": err.Error()})
			return nil
		}
		if len(entries) == 0 {
			a.say("library.empty", map[string]any{"Dir": a.d.Games.Dir()})
			return nil
		}
		a.say("library.title", map[string]any{"Count": len(entries)})
		for i, e := range entries {
			a.say("library.item", map[string]any{"N": i + 1, "Name": e.Name, "When": e.Modified.Format("2006-01-02 15:04")})
		}
		n, err := a.askChoice(ctx, "library.pick", map[string]any{"Count": len(entries)}, len(entries))
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := a.gameActions(ctx, entries[n-1]); err != nil {
			return err
		}
	}
}

func (a *App) gameActions(ctx context.Context, entry savedgames.Entry) error {
	for {
		a.say("library.actions", entry)
		line, err := a.ask(ctx, "library.action_prompt", nil)
		if err != nil {
			return err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "1", "view":
			a.viewGame(entry.Name)
		case "2", "png", "export":
			a.exportPNG(ctx, entry.Name)
		case "3", "delete":
			ok, err := a.confirm(ctx, "library.delete_confirm", false)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := a.d.Games.Delete(entry.Name); err != nil {
				a.say("library.error", map[string]any{"Error": err.Error()})
			} else {
				a.say("library.deleted", entry)
			}
			return nil
		default:
			return nil
		}
	}
}

func (a *App) viewGame(name string) {
	g, err := a.d.Games.Load(name)
	if err != nil {
		a.say("library.error", map[string]any{"Error": err.Error()})
		return
	}
	fmt.Fprintln(a.out, strings.TrimRight(g.PGN, "\n"))
	a.say("library.final_position", nil)
	RenderBoard(a.out, g.Final.Position().Board(), BoardView{Theme: a.theme})
}

// exportPNG writes the final position next to the PGN file.
func (a *App) exportPNG(ctx context.Context, name string) {
	g, err := a.d.Games.Load(name)
	if err != nil {
		a.say("library.error", map[string]any{"Error": err.Error()})
		return
	}
	opts := render.Options{Title: fmt.Sprintf("%s vs %s  %s", g.Headers["White"], g.Headers["Black"], g.Headers["Result"])}
	if moves := g.Final.Moves(); len(moves) > 0 {
		last := moves[len(moves)-1]
		opts.LastMove = &render.Highlight{From: last.S1(), To: last.S2()}
	}
	renderCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	data, err := render.BoardPNG(renderCtx, g.Final.Position().Board(), opts)
	if err != nil {
		a.say("library.error", map[string]any{"Error": err.Error()})
		return
	}
	path := strings.TrimSuffix(g.Path, ".pgn") + ".png"
	if err := os.WriteFile(path, data, 0o644); err != nil {
		a.say("library.error", map[string]any{"Error": err.Error()})
		return
	}
	a.say("library.exported", map[string]any{"Path": path})
}
