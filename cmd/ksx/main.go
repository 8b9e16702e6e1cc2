package main

import (
	"context"
	"flag"
	"fmt"
	"ksx/internal/log"
	"ksx/internal/object"
	"ksx/internal/output"
	"ksx/internal/repl"
	"ksx/internal/script"
	"ksx/internal/store"
	"ksx/internal/util"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"
)

var (
	// Version is set by the release build.
	Version   = "dev"
	BuildDate = "unknown"
	Commit    = "unknown"
	help      bool
	version   bool
	status    bool
	// logging
	logLevel string
	logFile  string
	// config vars
	configFile string
	rootPath   string
	debugAST   bool
	historyDSN string
	color      string
)

func init() {
	flag.BoolVar(&help, "help", false, "Display help information and exit")
	flag.BoolVar(&help, "h", false, "Display help information and exit")
	flag.BoolVar(&version, "version", false, "Display version information and exit")
	flag.BoolVar(&version, "v", false, "Display version information and exit")
	flag.BoolVar(&status, "status", false, "Print the recent runs recorded in the history database and exit")
	flag.StringVar(&configFile, "config", "", "Configuration file (default $KSX_HOME/ksx.toml)")
	// evaluator config
	flag.StringVar(&rootPath, "root", ".", "Directory script files and REPL imports are resolved against")
	// parser config
	flag.BoolVar(&debugAST, "debug-ast", false, "Render the AST of each script as a JSON file")
	// history config
	flag.StringVar(&historyDSN, "history", "", "Run history database: a sqlite path, mysql://... or postgres://...")
	flag.StringVar(&color, "color", "auto", "Colour output: auto, always, never")
	// log config
	flag.StringVar(&logLevel, "log-level", "none", "Log level: debug, info, warn, error, none")
	flag.StringVar(&logFile, "log-file", "", "Log file path (if not set, logs to stderr)")
}

func main() {
	os.Exit(run())
}

// loadConfiguration layers the defaults, the configuration file and the
// flags given on the command line, in that order.
func loadConfiguration() (util.Configuration, error) {
	config := util.DefaultConfiguration()
	config.Version = Version
	config.BuildDate = BuildDate
	config.Commit = Commit

	if configFile != "" {
		if err := config.LoadFile(configFile, false); err != nil {
			return config, err
		}
	} else if path := config.DefaultConfigPath(); path != "" {
		if err := config.LoadFile(path, true); err != nil {
			return config, err
		}
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "root":
			config.RootPath = rootPath
		case "debug-ast":
			config.DebugAST = debugAST
		case "history":
			config.HistoryDSN = historyDSN
		case "color":
			config.Color = color
		case "log-level":
			config.LogLevel = logLevel
		case "log-file":
			config.LogFile = logFile
		}
	})
	return config, config.Validate()
}

func run() int {
	flag.Parse()

	if version {
		printVersion()
		return 0
	}
	if help {
		printHelp()
		return 0
	}

	config, err := loadConfiguration()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	closer := log.Setup(config.LogLevel, config.LogFile)
	defer closer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var history *store.Store
	if config.HistoryDSN != "" {
		history, err = store.Open(ctx, config.HistoryDSN)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		defer history.Close()
	}

	if status {
		return printStatus(ctx, history)
	}

	extensions := map[string]object.Object{}
	var packages func(string) *object.Map
	if history != nil {
		db := history.AppObject()
		extensions["Db"] = db
		packages = func(name string) *object.Map {
			if name == "db" {
				return db
			}
			return nil
		}
	}

	files := flag.Args()
	if len(files) == 0 {
		stop()
		if err := repl.Start(config.RootPath, os.Stdout, output.ColorMode(config.Color), extensions); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}

	m := script.NewManager(output.NewTerminal(os.Stdout, output.ColorMode(config.Color)))
	m.MaxHistory = config.MaxHistory
	m.DebugAST = config.DebugAST
	m.Extensions = extensions
	m.Packages = packages
	if history != nil {
		m.Listener = history
	}

	go func() {
		<-ctx.Done()
		if err := m.StopAll(); err != nil {
			slog.Warn("stopping scripts", slog.Any("error", err))
		}
	}()

	var ids []int
	failed := false
	for _, file := range files {
		if !filepath.IsAbs(file) {
			file = filepath.Join(config.RootPath, file)
		}
		id, err := m.RunScript(file)
		if err != nil {
			failed = true
			continue
		}
		if id > 0 {
			ids = append(ids, id)
		}
	}

	for _, id := range ids {
		info, err := m.CompleteScript(id)
		if err != nil || info.Status != script.Completed {
			failed = true
		}
	}
	if failed {
		return 1
	}
	return 0
}

func printStatus(ctx context.Context, history *store.Store) int {
	if history == nil {
		fmt.Fprintln(os.Stderr, "no history database configured, use -history or history_dsn")
		return 2
	}
	runs, err := history.Recent(ctx, 20)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	for _, info := range runs {
		elapsed := "-"
		if !info.EndTime.IsZero() {
			elapsed = info.EndTime.Sub(info.StartTime).Round(time.Millisecond).String()
		}
		fmt.Printf("%4d  %-12s %-8s %s  %s\n", info.ID, info.Status, elapsed,
			info.StartTime.Format(time.DateTime), info.File)
		if info.Error != "" {
			fmt.Printf("      %s\n", info.Error)
		}
	}
	return 0
}

func printVersion() {
	fmt.Printf("ksx version 'v%s' %s %s\n", Version, BuildDate, Commit)
}

func printHelp() {
	fmt.Printf(`Usage: ksx [options] [file...]

Options:
  -root <path>       Directory files and REPL imports are resolved against. Default is '.'
  -config <path>     Configuration file. Default is $KSX_HOME/ksx.toml when KSX_HOME is set.
  -debug-ast         Render the AST of each script as a JSON file.
  -history <dsn>     Record runs in a database: a sqlite path, mysql://... or postgres://...
  -status            Print the runs recorded in the history database and exit.
  -color <mode>      Colour output: auto, always or never. Default is 'auto'.
  -help              Display this help information and exit.
  -version           Display version information and exit.
  -log-level <level> Set the log level: debug, info, warn, error, none. Default is 'none'.
  -log-file <path>   Specify a log file to write logs. Default is stderr.

Details:
Each file is run as a script with the modules it imports. Without files an
interactive prompt starts. Ctrl-C stops the running scripts.

Examples:
  ksx                              Start the interactive prompt
  ksx job.ksx                      Run a script
  ksx -history runs.db a.ksx b.ksx Run two scripts and record them
  ksx -history runs.db -status     Show the recorded runs

Version Information:
  Version:    %s
  Build Date: %s
  Commit:     %s
`, Version, BuildDate, Commit)
}
