package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/page-mirror/pkg/config"
	applog "github.com/Sriram-PR/page-mirror/pkg/log"
	"github.com/Sriram-PR/page-mirror/pkg/orchestrate"
	"github.com/Sriram-PR/page-mirror/pkg/process"
)

const version = "1.0.0"

func main() {
	if len(os.Args) >= 2 {
		switch os.Args[1] {
		case "validate":
			runValidate(os.Args[2:])
			return
		case "mcp-server":
			runMcpServer(os.Args[2:])
			return
		case "version":
			fmt.Printf("page-mirror %s\n", version)
			return
		case "help":
			printUsage()
			return
		}
	}
	runMirror(os.Args[1:])
}

func printUsage() {
	printUsageTo(os.Stdout)
}

// printUsageTo writes usage information to the provided writer.
func printUsageTo(w io.Writer) {
	fmt.Fprintln(w, `page-mirror - Save a web page with its same-origin resources

Usage:
  page-mirror [options] <url> [<url>...]
  page-mirror <command> [options]

Commands:
  validate    Validate configuration file (and optional URLs)
  mcp-server  Start MCP server for AI tool integration
  version     Show version info

Run 'page-mirror -h' for mirror options or 'page-mirror <command> -h' for command-specific help.`)
}

// mirrorFlags are the command-line overrides for a mirror run
type mirrorFlags struct {
	output        string
	configFile    string
	logLevel      string
	failurePolicy string
	workers       int
	progress      bool
	manifest      bool
}

// parseMirrorFlags parses args into flags and URLs
func parseMirrorFlags(args []string, stderr io.Writer) (*mirrorFlags, []string, *flag.FlagSet, error) {
	fs := flag.NewFlagSet("page-mirror", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &mirrorFlags{}
	fs.StringVar(&f.output, "output", "", "Output directory (default: output_dir from config, else current directory)")
	fs.StringVar(&f.configFile, "config", "", "Path to YAML config file (optional)")
	fs.StringVar(&f.logLevel, "loglevel", "info", "Log level (debug, info, warn, error)")
	fs.StringVar(&f.failurePolicy, "failure-policy", "", "What a failed resource does to the run: fail-fast or fail-open")
	fs.IntVar(&f.workers, "workers", 0, "Concurrent resource downloads per page")
	fs.BoolVar(&f.progress, "progress", false, "Show a progress bar on stderr")
	fs.BoolVar(&f.manifest, "manifest", false, "Write a TSV manifest of every reference next to the HTML file")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: page-mirror [options] <url> [<url>...]\n\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  page-mirror https://example.com/docs\n")
		fmt.Fprintf(stderr, "  page-mirror -output ./saved -failure-policy fail-open https://example.com/a https://example.com/b\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, fs, err
	}
	return f, fs.Args(), fs, nil
}

// applyFlagOverrides copies explicitly set flags onto the loaded config
func applyFlagOverrides(appCfg *config.AppConfig, f *mirrorFlags, fs *flag.FlagSet) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "output":
			appCfg.OutputDir = f.output
		case "failure-policy":
			appCfg.FailurePolicy = config.FailurePolicy(f.failurePolicy)
		case "workers":
			appCfg.NumWorkers = f.workers
		case "manifest":
			appCfg.EnableManifest = f.manifest
		}
	})
}

// runMirror handles the default mirror command
func runMirror(args []string) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Channel to listen for OS signals for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		fmt.Fprintf(os.Stderr, "Received signal: %v. Cancelling downloads...\n", sig)
		cancel()

		// Allow force exit on second signal or timeout
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "Received second signal. Forcing exit.")
			os.Exit(1)
		case <-time.After(30 * time.Second):
			fmt.Fprintln(os.Stderr, "Graceful shutdown period exceeded. Forcing exit.")
			os.Exit(1)
		}
	}()

	os.Exit(doMirror(ctx, args, os.Stdout, os.Stderr))
}

// doMirror is the testable implementation of the mirror command.
// It prints one HTML path per mirrored page to stdout and returns the exit code.
func doMirror(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, urls, fs, err := parseMirrorFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if len(urls) == 0 {
		fs.Usage()
		return 2
	}

	logger, err := applog.NewLogger(f.logLevel, stderr)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using default 'info'. Error: %v", f.logLevel, err)
	}
	if f.progress {
		quietForProgress(logger)
	}
	log := logrus.NewEntry(logger)

	appCfg, err := config.Load(f.configFile)
	if err != nil {
		log.Errorf("Error loading config: %v", err)
		return 1
	}
	applyFlagOverrides(appCfg, f, fs)

	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Debug(w)
	}
	if err != nil {
		log.Errorf("Configuration error: %v", err)
		return 1
	}
	logAppConfig(appCfg, log)

	if err := orchestrate.ValidateURLs(urls); err != nil {
		log.Errorf("Invalid arguments: %v", err)
		return 2
	}

	var observer process.Observer
	if f.progress {
		bar := newProgressObserver(stderr)
		defer bar.Finish()
		observer = bar
	}

	downloader, _ := orchestrate.NewDownloader(appCfg, log)
	mirrorer := orchestrate.NewMirrorer(appCfg, downloader, observer, log)
	orchestrator := orchestrate.NewOrchestrator(mirrorer, appCfg.OutputDir, appCfg.MaxConcurrentPages, log)

	results := orchestrator.Run(ctx, urls)
	for _, r := range results {
		if r.Success {
			fmt.Fprintln(stdout, r.Result.HTMLFilePath)
		}
	}

	if orchestrate.Failed(results) {
		if ctx.Err() != nil {
			log.Warn("Mirroring cancelled.")
		}
		return 1
	}
	return 0
}

// runValidate handles the validate subcommand
func runValidate(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	configFile := fs.String("config", "config.yaml", "Path to config file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: page-mirror validate [options] [<url>...]\n\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	exitCode := doValidate(*configFile, fs.Args(), os.Stdout, os.Stderr)
	os.Exit(exitCode)
}

// doValidate performs validation and writes output to provided writers.
// Returns exit code (0 = success, 1 = error).
func doValidate(configPath string, urls []string, stdout, stderr io.Writer) int {
	appCfg, err := config.Load(configPath)
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
	fmt.Fprintf(stdout, "OK: failure_policy=%s num_workers=%d output_dir=%s\n",
		appCfg.FailurePolicy, appCfg.NumWorkers, appCfg.OutputDir)

	if len(urls) > 0 {
		if err := orchestrate.ValidateURLs(urls); err != nil {
			fmt.Fprintf(stderr, "ERROR: %v\n", err)
			return 1
		}
		fmt.Fprintf(stdout, "OK: %d URL(s)\n", len(urls))
	}

	fmt.Fprintln(stdout, "\nConfiguration valid.")
	return 0
}

// logAppConfig logs the effective configuration
func logAppConfig(appCfg *config.AppConfig, log *logrus.Entry) {
	log.Debugf("Config: Policy:%s, Workers:%d, MaxPages:%d, MaxReqPerHost:%d, Delay:%v",
		appCfg.FailurePolicy, appCfg.NumWorkers, appCfg.MaxConcurrentPages, appCfg.MaxRequestsPerHost, appCfg.DelayPerHost)
	log.Debugf("Config Retries: Max:%d, InitialDelay:%v, MaxDelay:%v",
		appCfg.MaxRetries, appCfg.InitialRetryDelay, appCfg.MaxRetryDelay)
	log.Debugf("Config Output: Dir:%s, StateDir:%q, Manifest:%q, MaxResourceSize:%d bytes, GlobalTimeout:%v",
		appCfg.OutputDir, appCfg.StateDir, config.GetEffectiveManifestFilename(*appCfg), appCfg.MaxResourceSizeBytes, appCfg.GlobalTimeout)
	log.Debugf("Config HTTP Client: Timeout:%v, MaxIdle:%d, MaxIdlePerHost:%d, MaxRedirects:%d",
		appCfg.HTTPClientSettings.Timeout, appCfg.HTTPClientSettings.MaxIdleConns,
		appCfg.HTTPClientSettings.MaxIdleConnsPerHost, appCfg.HTTPClientSettings.MaxRedirects)
}
