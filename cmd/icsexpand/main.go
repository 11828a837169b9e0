// Command icsexpand prints the occurrences of the events, todos and journals
// of an iCalendar file over a window of days.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	ics "github.com/recurcal/ical"
)

type flagConfig struct {
	fs         *flag.FlagSet
	configPath string
	input      string
	from       string
	days       int
	timezone   string
	strict     bool
	freeBusy   bool
}

func parseFlags(args []string) (*flagConfig, error) {
	f := &flagConfig{fs: flag.NewFlagSet("icsexpand", flag.ContinueOnError)}
	f.fs.StringVar(&f.configPath, "config", "icsexpand.yaml", "Path to config file")
	f.fs.StringVar(&f.input, "in", "", "iCalendar file to expand, - for stdin (overrides config)")
	f.fs.StringVar(&f.from, "from", "", "First day of the window, YYYY-MM-DD (overrides config)")
	f.fs.IntVar(&f.days, "days", 0, "Length of the window in days (overrides config)")
	f.fs.StringVar(&f.timezone, "tz", "", "Zone for floating times and output (overrides config)")
	f.fs.BoolVar(&f.strict, "strict", false, "Fail on malformed property values (overrides config)")
	f.fs.BoolVar(&f.freeBusy, "freebusy", false, "Print a VFREEBUSY summary instead of occurrences (overrides config)")
	return f, f.fs.Parse(args)
}

// apply overrides cfg with the flags set on the command line only.
func (f *flagConfig) apply(cfg *config) {
	f.fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "in":
			cfg.Input = f.input
		case "from":
			cfg.From = f.from
		case "days":
			if f.days > 0 {
				cfg.Days = f.days
			}
		case "tz":
			cfg.Timezone = f.timezone
		case "strict":
			cfg.Strict = f.strict
		case "freebusy":
			cfg.FreeBusy = f.freeBusy
		}
	})
}

func logLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env loaded", "error", err)
	}
	flags, err := parseFlags(os.Args[1:])
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		os.Exit(2)
	}

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		slog.Error("can't load config", "config_path", flags.configPath, "error", err)
		os.Exit(1)
	}
	cfg.applyEnv(os.Getenv)
	flags.apply(cfg)

	logger := slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      logLevel(cfg.LogLevel),
		TimeFormat: time.Kitchen,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, os.Stdout, logger); err != nil {
		logger.Error("expansion failed", "input", cfg.Input, "error", err)
		os.Exit(1)
	}
}

func run(cfg *config, out io.Writer, logger *slog.Logger) error {
	if cfg.Input == "" {
		return fmt.Errorf("no input file configured")
	}
	from, to, loc, err := cfg.window(time.Now())
	if err != nil {
		return err
	}

	in := io.Reader(os.Stdin)
	if cfg.Input != "-" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}
	cal, err := ics.ParseCalendar(in, ics.WithStrict(cfg.Strict), logger, ics.NewSystemResolver(loc))
	if err != nil {
		return err
	}
	logger.Debug("calendar parsed", "components", len(cal.Components), "from", from, "to", to)

	if cfg.FreeBusy {
		busy, err := cal.FreeBusy(from, to)
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, busy.Serialize(nil))
		return err
	}
	return printOccurrences(out, cal, from, to, loc)
}

func printOccurrences(out io.Writer, cal *ics.Calendar, from, to time.Time, loc *time.Location) error {
	occs, err := cal.Occurrences(from, to)
	if err != nil {
		return err
	}
	r := cal.TimeZoneResolver()
	for _, occ := range occs {
		summary := ""
		if p := occ.Source.GetProperty(ics.ComponentPropertySummary); p != nil {
			summary = ics.FromText(p.Value)
		}
		start, end := occ.Period.Start(), occ.Period.End()
		if !start.HasTime() {
			if _, err := fmt.Fprintf(out, "%s  all day  %s\n", start.Wall().Format(time.DateOnly), summary); err != nil {
				return err
			}
			continue
		}
		s, err := start.Instant(r)
		if err != nil {
			return err
		}
		e, err := end.Instant(r)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(out, "%s  %s  %s\n", s.In(loc).Format("2006-01-02 15:04"), e.In(loc).Format("15:04"), summary); err != nil {
			return err
		}
	}
	return nil
}
