package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/page-auditor/pkg/config"
	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/orchestrate"
	"github.com/Sriram-PR/page-auditor/pkg/storage"
)

const version = "1.0.0"

// Exit codes
const (
	exitOK       = 0 // No target in the errors bucket
	exitFindings = 1 // At least one target failed
	exitSetup    = 2 // Bad flags, config or targets
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(exitSetup)
	}

	switch os.Args[1] {
	case "check":
		runCheck(os.Args[2:])
	case "probe":
		runProbe(os.Args[2:])
	case "validate":
		runValidate(os.Args[2:])
	case "mcp-server":
		runMcpServer(os.Args[2:])
	case "version":
		fmt.Printf("page-auditor %s\n", version)
	case "-h", "--help", "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(exitSetup)
	}
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `page-auditor - Link and image checker for harvested page resources

Usage:
  page-auditor <command> [options]

Commands:
  check       Audit the links and images listed in a targets file
  probe       Check individual URLs
  validate    Validate configuration file
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'page-auditor <command> -h' for command-specific help.`)
}

// --- Shared setup ---

// logFlags are the logging options every long-running subcommand accepts
type logFlags struct {
	level      *string
	file       *string
	maxSizeMB  *int
	maxBackups *int
	maxAgeDays *int
}

func addLogFlags(fs *flag.FlagSet) logFlags {
	return logFlags{
		level:      fs.String("loglevel", "warn", "Log level (debug, info, warn, error)"),
		file:       fs.String("logfile", "", "Write logs to this file with rotation instead of stderr"),
		maxSizeMB:  fs.Int("log-max-size", 10, "Rotate the log file after this many megabytes"),
		maxBackups: fs.Int("log-max-backups", 3, "Number of rotated log files to keep"),
		maxAgeDays: fs.Int("log-max-age", 28, "Days to keep rotated log files"),
	}
}

// setupLogger creates a logger writing to stderr, or to a rotating file when one is given.
// stdout is never used so machine-readable output stays clean.
func setupLogger(lf logFlags, stderr io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "15:04:05.000"})

	level, err := logrus.ParseLevel(*lf.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", *lf.level, err)
	}
	log.SetLevel(level)

	if *lf.file != "" {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, DisableColors: true})
		log.SetOutput(&lumberjack.Logger{
			Filename:   *lf.file,
			MaxSize:    *lf.maxSizeMB,
			MaxBackups: *lf.maxBackups,
			MaxAge:     *lf.maxAgeDays,
			LocalTime:  true,
		})
	} else {
		log.SetOutput(stderr)
	}
	return log, nil
}

// loadConfig loads and parses the config file. An empty path yields the defaults.
func loadConfig(path string) (*config.AppConfig, error) {
	var cfg config.AppConfig
	if path == "" {
		return &cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// loadAndValidateConfig loads the config file, applies defaults and logs warnings.
func loadAndValidateConfig(path string, log *logrus.Logger) (*config.AppConfig, error) {
	appCfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		return nil, err
	}
	return appCfg, nil
}

// openCache opens the configured result cache, or returns nil when caching is off
func openCache(ctx context.Context, appCfg *config.AppConfig, log *logrus.Logger) (*storage.BadgerStore, error) {
	if !appCfg.Cache.Enabled {
		return nil, nil
	}
	store, err := storage.NewBadgerStore(appCfg.Cache.Dir, appCfg.Cache.TTL, log.WithField("component", "cache"))
	if err != nil {
		return nil, err
	}
	go store.RunGC(ctx, 10*time.Minute)
	return store, nil
}

// --- check ---

type checkArgs struct {
	configPath  string
	targetsPath string
	format      string
	noColor     bool
}

// runCheck handles the check subcommand
func runCheck(args []string) {
	fs := flag.NewFlagSet("check", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (defaults apply when empty)")
	targetsFile := fs.String("targets", "", "Path to YAML/JSON targets file (required)")
	format := fs.String("format", "jsonl", "Output format (jsonl, text)")
	noColor := fs.Bool("no-color", false, "Disable colored text output")
	lf := addLogFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: page-auditor check -targets targets.yaml [options]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExit status is 0 when no target failed, 1 when some did and 2 on setup errors.\n")
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(exitSetup)
	}

	log, err := setupLogger(lf, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitSetup)
	}

	// First signal stops the run cooperatively, a second one exits
	stop := make(chan struct{})
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		sig := <-sigChan
		log.Warnf("Received signal: %v. Stopping audit, in-flight probes will finish...", sig)
		close(stop)
		sig = <-sigChan
		log.Warnf("Received second signal: %v. Forcing exit.", sig)
		os.Exit(exitFindings)
	}()

	exitCode := doCheck(checkArgs{
		configPath:  *configFile,
		targetsPath: *targetsFile,
		format:      *format,
		noColor:     *noColor,
	}, log, stop, os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doCheck runs one audit and streams its events to stdout. Closing stop requests
// cooperative cancellation. Returns the process exit code.
func doCheck(args checkArgs, log *logrus.Logger, stop <-chan struct{}, stdout, stderr io.Writer) int {
	if args.targetsPath == "" {
		fmt.Fprintln(stderr, "Error: -targets is required")
		return exitSetup
	}
	if args.format != "jsonl" && args.format != "text" {
		fmt.Fprintf(stderr, "Error: unknown format '%s' (supported: jsonl, text)\n", args.format)
		return exitSetup
	}

	appCfg, err := loadAndValidateConfig(args.configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Config error: %v\n", err)
		return exitSetup
	}
	targets, err := orchestrate.LoadTargets(args.targetsPath)
	if err != nil {
		fmt.Fprintf(stderr, "Targets error: %v\n", err)
		return exitSetup
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var opts []orchestrate.Option
	store, err := openCache(ctx, appCfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "Cache error: %v\n", err)
		return exitSetup
	}
	if store != nil {
		defer store.Close()
		opts = append(opts, orchestrate.WithCache(store))
	}

	auditor := orchestrate.NewAuditor(appCfg, log.WithField("component", "auditor"), opts...)
	run, err := auditor.Start(ctx, targets, appCfg.Resolve())
	if err != nil {
		fmt.Fprintf(stderr, "Error starting audit: %v\n", err)
		return exitSetup
	}

	go func() {
		select {
		case <-stop:
			run.Stop()
		case <-run.Done():
		}
	}()

	var sink eventSink
	if args.format == "text" {
		sink = newTextSink(stdout, args.noColor)
	} else {
		sink = newJSONLSink(stdout)
	}
	for e := range run.Events() {
		if err := sink.Write(e); err != nil {
			log.Errorf("Writing output: %v", err)
		}
	}

	report := run.Wait()
	if report.Summary.Errors > 0 {
		return exitFindings
	}
	return exitOK
}

// --- probe ---

// runProbe handles the probe subcommand
func runProbe(args []string) {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	configFile := fs.String("config", "", "Path to config file (defaults apply when empty)")
	asImage := fs.Bool("image", false, "Probe the URLs as images")
	lf := addLogFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: page-auditor probe [options] URL...\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(exitSetup)
	}

	log, err := setupLogger(lf, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitSetup)
	}
	os.Exit(doProbe(*configFile, fs.Args(), *asImage, log, os.Stdout, os.Stderr))
}

// doProbe checks each URL in order and writes one JSON result per line
func doProbe(configPath string, urls []string, asImage bool, log *logrus.Logger, stdout, stderr io.Writer) int {
	if len(urls) == 0 {
		fmt.Fprintln(stderr, "Error: at least one URL is required")
		return exitSetup
	}
	appCfg, err := loadAndValidateConfig(configPath, log)
	if err != nil {
		fmt.Fprintf(stderr, "Config error: %v\n", err)
		return exitSetup
	}

	kind := models.KindLink
	if asImage {
		kind = models.KindImage
	}
	auditor := orchestrate.NewAuditor(appCfg, log.WithField("component", "auditor"))
	opts := appCfg.Resolve()

	enc := json.NewEncoder(stdout)
	exitCode := exitOK
	for _, u := range urls {
		r := auditor.Probe(context.Background(), models.CheckTarget{URL: u, Kind: kind}, opts)
		if r.Status.IsFailure() {
			exitCode = exitFindings
		}
		if err := enc.Encode(r); err != nil {
			fmt.Fprintf(stderr, "Error writing result: %v\n", err)
			return exitSetup
		}
	}
	return exitCode
}

// --- validate ---

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: page-auditor validate [options]\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(exitSetup)
	}
	os.Exit(doValidate(*configFile, os.Stdout, os.Stderr))
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, stdout, stderr io.Writer) int {
	appCfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		fmt.Fprintf(stdout, "WARN: %s\n", w)
	}
	if err != nil {
		fmt.Fprintf(stderr, "ERROR: %v\n", err)
		return 1
	}

	opts := appCfg.Resolve()
	fmt.Fprintf(stdout, "Links:  concurrency %d, timeout %v\n", opts.LinkConcurrency, opts.LinkTimeout)
	fmt.Fprintf(stdout, "Images: concurrency %d, timeout %v, enabled %t\n", opts.ImageConcurrency, opts.ImageTimeout, opts.CheckImages)
	fmt.Fprintf(stdout, "Redirects: follow %t, max %d; retries %d\n", opts.FollowRedirects, opts.MaxRedirects, opts.RetryCount)
	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}
