package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/park285/chess-arena/internal/arena"
	"github.com/park285/chess-arena/internal/chess"
	"github.com/park285/chess-arena/internal/chess/uci"
	"github.com/park285/chess-arena/internal/config"
	"github.com/park285/chess-arena/internal/msgcat"
	"github.com/park285/chess-arena/internal/obslog"
	"github.com/park285/chess-arena/internal/relayclient"
	"github.com/park285/chess-arena/internal/savedgames"
	"github.com/park285/chess-arena/internal/userconfig"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := command().Run(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "chess-arena:", err)
		os.Exit(1)
	}
}

func command() *cli.Command {
	return &cli.Command{
		Name:  "chess-arena",
		Usage: "play chess in the terminal, online through a relay or against Stockfish",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "theme", Aliases: []string{"t"}, Usage: "board theme (" + strings.Join(arena.ThemeNames(), ", ") + ")"},
			&cli.StringFlag{Name: "server", Aliases: []string{"s"}, Usage: "relay server URL"},
			&cli.StringFlag{Name: "sound", Usage: "terminal bell on|off"},
			&cli.BoolFlag{Name: "mute", Aliases: []string{"m"}, Usage: "disable the terminal bell"},
			&cli.BoolFlag{Name: "list-themes", Aliases: []string{"l"}, Usage: "list themes and exit"},
			&cli.BoolFlag{Name: "preview-themes", Aliases: []string{"p"}, Usage: "draw every theme and exit"},
			&cli.BoolFlag{Name: "reset-config", Aliases: []string{"r"}, Usage: "restore default settings and exit"},
			&cli.BoolFlag{Name: "show-config", Aliases: []string{"c"}, Usage: "print the settings file and exit"},
		},
		Action: run,
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	out := os.Stdout
	if cmd.Bool("list-themes") {
		fmt.Fprintln(out, "Available themes:")
		arena.ListThemes(out)
		return nil
	}
	if cmd.Bool("preview-themes") {
		for _, t := range arena.Themes() {
			arena.PreviewTheme(out, t)
		}
		return nil
	}

	cfg, err := config.LoadArena()
	if err != nil {
		return err
	}
	if os.Getenv("LOG_FILE") == "" {
		_ = os.Setenv("LOG_FILE", cfg.LogFile())
	}
	if err := obslog.InitFromEnv(obslog.Defaults{App: "chess-arena", Console: false}); err != nil {
		return err
	}
	defer obslog.Sync()

	prefs := userconfig.NewStore(cfg.ConfigFile(), userconfig.Defaults(cfg.ServerURL))
	if cmd.Bool("reset-config") {
		if err := prefs.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(out, "Settings reset to defaults.")
		return nil
	}
	settings, err := prefs.Load()
	if err != nil {
		obslog.L().Warn("arena_config_unreadable", zap.String("path", prefs.Path()), zap.Error(err))
	}
	if cmd.Bool("show-config") {
		return showConfig(out, prefs, settings)
	}
	if settings, err = applyFlags(cmd, settings); err != nil {
		return err
	}

	messages, err := msgcat.New(cfg.MessagesDir)
	if err != nil {
		return err
	}

	app := arena.New(arena.Deps{
		In:          os.Stdin,
		Out:         out,
		Messages:    messages,
		Dial:        dialRelay,
		StartEngine: engineStarter(cfg),
		Games:       savedgames.NewStore(cfg.GamesDir()),
		Prefs:       prefs,
		Settings:    settings,
	})
	obslog.L().Info("arena_start", zap.String("server", settings.ServerURL), zap.String("theme", settings.Theme))
	return app.Run(ctx)
}

// applyFlags layers command-line overrides on the stored settings. They last
// for this run only.
func applyFlags(cmd *cli.Command, s userconfig.Config) (userconfig.Config, error) {
	if cmd.IsSet("theme") {
		t, ok := arena.LookupTheme(cmd.String("theme"))
		if !ok {
			return s, fmt.Errorf("unknown theme %q (try --list-themes)", cmd.String("theme"))
		}
		s.Theme = t.Key
	}
	if v := strings.TrimSpace(cmd.String("server")); v != "" {
		s.ServerURL = v
	}
	if cmd.IsSet("sound") {
		switch strings.ToLower(strings.TrimSpace(cmd.String("sound"))) {
		case "on", "true", "yes":
			s.Sound = true
		case "off", "false", "no":
			s.Sound = false
		default:
			return s, fmt.Errorf("--sound must be on or off")
		}
	}
	if cmd.Bool("mute") {
		s.Sound = false
	}
	return s, nil
}

func showConfig(w *os.File, prefs *userconfig.Store, s userconfig.Config) error {
	info, err := prefs.Stat()
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Config file: %s", info.Path)
	if info.Exists {
		fmt.Fprintf(w, " (modified %s)\n", info.Modified.Format("2006-01-02 15:04:05"))
	} else {
		fmt.Fprintln(w, " (not created yet, showing defaults)")
	}
	fmt.Fprintf(w, "  theme:       %s\n", s.Theme)
	fmt.Fprintf(w, "  serverUrl:   %s\n", s.ServerURL)
	fmt.Fprintf(w, "  sound:       %t\n", s.Sound)
	fmt.Fprintf(w, "  showPreview: %t\n", s.ShowPreview)
	fmt.Fprintf(w, "  autoConnect: %t\n", s.AutoConnect)
	if s.Difficulty != "" {
		fmt.Fprintf(w, "  difficulty:  %s\n", s.Difficulty)
	}
	return nil
}

func dialRelay(ctx context.Context, serverURL string) (arena.Relay, error) {
	conn, err := relayclient.Dial(ctx, serverURL, relayclient.Options{DialTimeout: arena.DefaultConnectTimeout})
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func engineStarter(cfg *config.ArenaConfig) arena.EngineStarter {
	return func(ctx context.Context, preset string) (arena.Engine, error) {
		launch := uci.LaunchConfig{Candidates: uci.DefaultCandidates()}
		if cfg.StockfishPath != "" {
			launch.Candidates = []string{cfg.StockfishPath}
		}
		eng, err := chess.StartEngine(ctx, launch, preset)
		if err != nil {
			return nil, err
		}
		return eng, nil
	}
}
