package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"

	"fechas/internal/capture"
	"fechas/internal/config"
	"fechas/internal/ics"
	appLog "fechas/internal/log"
	"fechas/internal/schedfile"
	"fechas/internal/schedule"
	"fechas/internal/theme"
	"fechas/internal/watch"
	"fechas/internal/web"
)

const version = "0.1.0"

func main() {
	err := newApp().Run(os.Args)
	appLog.Sync()
	if err != nil {
		appLog.Error("fechas failed", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:    "fechas",
		Version: version,
		Usage:   "parse, render and re-theme plain-text subject schedules",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Value:   "./fechas.yaml",
				Usage:   "path to the YAML config `FILE` (created with defaults if missing)",
			},
			&cli.BoolFlag{
				Name:    "debug",
				Aliases: []string{"d"},
				Usage:   "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				appLog.SetLevel(appLog.LevelDebug)
			}
			return nil
		},
		Commands: []*cli.Command{
			serveCommand(),
			parseCommand(),
			themeCommand(),
			classifyCommand(),
			icsCommand(),
			captureCommand(),
		},
	}
}

// loadConfig loads the config named by the global --config flag.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	conf, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return conf, nil
}

// signalContext is canceled on SIGINT/SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// scheduleSource returns the first argument, or the configured schedule.
func scheduleSource(c *cli.Context, conf *config.Config) string {
	if c.Args().Present() {
		return c.Args().First()
	}
	return conf.SchedulePath
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve the rendered schedule and its JSON API",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "listen", Usage: "HTTP listen `ADDR` (overrides config if set)"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			// CLI --listen overrides config file listen if provided.
			if l := c.String("listen"); l != "" {
				conf.Listen = l
			}

			appLog.Info("effective config",
				"listen", conf.Listen,
				"schedule_path", conf.SchedulePath,
				"theme", conf.Theme,
				"timezone", conf.Timezone,
				"watch", conf.Watch,
				"capture", conf.Capture.Enabled,
				"capture_refresh", conf.Capture.Refresh,
			)

			ctx, cancel := signalContext(c.Context)
			defer cancel()

			themes := theme.NewActive(conf.Theme)
			srv := web.NewServer(conf, themes, c.Bool("debug"))

			// A missing schedule is not fatal; the page stays empty until
			// one is posted or the file appears.
			if err := srv.Reload(ctx); err != nil {
				appLog.Error("initial schedule load failed", err, "source", conf.SchedulePath)
			}

			if conf.Watch && !schedfile.IsRemote(conf.SchedulePath) {
				go func() {
					err := watch.File(ctx, conf.SchedulePath, watch.DefaultDebounce, func() {
						if err := srv.Reload(ctx); err != nil {
							appLog.Error("schedule reload failed", err, "source", conf.SchedulePath)
						}
					})
					if err != nil {
						appLog.Error("schedule watcher stopped", err, "source", conf.SchedulePath)
					}
				}()
			}

			if conf.Capture.Enabled {
				sched, err := startCaptureScheduler(ctx, conf, srv)
				if err != nil {
					return err
				}
				defer func() {
					<-sched.Stop().Done()
				}()
			}

			err = srv.Run(ctx)
			appLog.Info("fechas exiting")
			return err
		},
	}
}

// startCaptureScheduler refreshes the schedule (remote sources only; local
// files are watched) and captures a preview on conf.Capture.Refresh.
func startCaptureScheduler(ctx context.Context, conf *config.Config, srv *web.Server) (*cron.Cron, error) {
	sched := cron.New(cron.WithLocation(conf.Location()))

	_, err := sched.AddFunc(conf.Capture.Refresh, func() {
		if schedfile.IsRemote(conf.SchedulePath) {
			if err := srv.Reload(ctx); err != nil {
				appLog.Error("scheduled reload failed", err, "source", conf.SchedulePath)
			}
		}
		if err := capture.SchedulePNG(ctx, captureOptions(conf)); err != nil {
			appLog.Error("scheduled capture failed", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("capture schedule %q: %w", conf.Capture.Refresh, err)
	}

	sched.Start()
	appLog.Info("capture scheduler started", "refresh", conf.Capture.Refresh, "output", conf.Capture.Output)
	return sched, nil
}

func captureOptions(conf *config.Config) capture.Options {
	url := conf.Capture.URL
	if url == "" {
		url = "http://" + conf.Listen + "/"
	}
	return capture.Options{
		URL:        url,
		OutputPath: conf.Capture.Output,
		Width:      conf.Capture.Width,
		Height:     conf.Capture.Height,
	}
}

func parseCommand() *cli.Command {
	return &cli.Command{
		Name:      "parse",
		Usage:     "parse a schedule and print it as JSON",
		ArgsUsage: "[FILE|URL]",
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			source := scheduleSource(c, conf)
			text, err := schedfile.Open(c.Context, schedfile.NewFetcher(conf.CacheDir), source)
			if err != nil {
				return err
			}

			themes := theme.NewActive(conf.Theme)
			doc := schedule.Parser{Themes: themes}.Parse(text)

			out := struct {
				Theme string `json:"theme"`
				Doc   any    `json:"document"`
			}{Theme: themes.ActiveTheme(), Doc: doc}

			enc := json.NewEncoder(c.App.Writer)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}

func themeCommand() *cli.Command {
	return &cli.Command{
		Name:      "theme",
		Usage:     "write a theme into a schedule's [Config] block",
		ArgsUsage: "[FILE|URL]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "set", Aliases: []string{"s"}, Required: true, Usage: "theme `NAME` (light, dark, neon, grayscale, monokai)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to `FILE` instead of rewriting the input"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			source := scheduleSource(c, conf)
			output := c.String("output")
			if output == "" {
				if schedfile.IsRemote(source) {
					return errors.New("theme: --output is required for remote schedules")
				}
				output = source
			}

			text, err := schedfile.Open(c.Context, schedfile.NewFetcher(conf.CacheDir), source)
			if err != nil {
				return err
			}

			themes := theme.NewActive(conf.Theme)
			themes.SwitchTheme(c.String("set"))
			out := schedule.Serialize(text, themes.ActiveTheme())

			if err := schedfile.Save(output, out); err != nil {
				return err
			}
			appLog.Info("theme written", "theme", themes.ActiveTheme(), "output", output)
			return nil
		},
	}
}

func classifyCommand() *cli.Command {
	return &cli.Command{
		Name:      "classify",
		Usage:     "print the category of each event text",
		ArgsUsage: "TEXT...",
		Action: func(c *cli.Context) error {
			if !c.Args().Present() {
				return errors.New("classify: at least one TEXT is required")
			}
			for _, text := range c.Args().Slice() {
				fmt.Fprintf(c.App.Writer, "%s\t%s\n", schedule.ClassifyEvent(text), text)
			}
			return nil
		},
	}
}

func icsCommand() *cli.Command {
	return &cli.Command{
		Name:      "ics",
		Usage:     "export dated events as an iCalendar file",
		ArgsUsage: "[FILE|URL]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "write to `FILE` instead of stdout"},
			&cli.IntFlag{Name: "year", Usage: "`YEAR` for dates written without one (default: current year)"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			text, err := schedfile.Open(c.Context, schedfile.NewFetcher(conf.CacheDir), scheduleSource(c, conf))
			if err != nil {
				return err
			}

			out := ics.Export(schedule.Parse(text), ics.ExportOptions{
				Location: conf.Location(),
				Year:     c.Int("year"),
			})
			if o := c.String("output"); o != "" {
				return schedfile.Save(o, out)
			}
			_, err = fmt.Fprint(c.App.Writer, out)
			return err
		},
	}
}

func captureCommand() *cli.Command {
	return &cli.Command{
		Name:  "capture",
		Usage: "capture a PNG of a running fechas server",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "page `URL` (default: the configured listen address)"},
			&cli.StringFlag{Name: "output", Aliases: []string{"o"}, Usage: "PNG `FILE` (default: capture.output from config)"},
			&cli.DurationFlag{Name: "timeout", Value: 30 * time.Second, Usage: "overall capture timeout"},
		},
		Action: func(c *cli.Context) error {
			conf, err := loadConfig(c)
			if err != nil {
				return err
			}
			opts := captureOptions(conf)
			if u := c.String("url"); u != "" {
				opts.URL = u
			}
			if o := c.String("output"); o != "" {
				opts.OutputPath = o
			}
			opts.Timeout = c.Duration("timeout")

			ctx, cancel := signalContext(c.Context)
			defer cancel()
			return capture.SchedulePNG(ctx, opts)
		},
	}
}
