// Command clueprobe loads a foreign library, calls its entry points through
// the callback bridge and prints what each one delivered, one JSON object per
// line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/reglet-dev/clue-ffi/application/config"
	"github.com/reglet-dev/clue-ffi/application/probe"
	"github.com/reglet-dev/clue-ffi/application/schema"
	"github.com/reglet-dev/clue-ffi/domain/entities"
	"github.com/reglet-dev/clue-ffi/infrastructure/parser"
	"github.com/reglet-dev/clue-ffi/infrastructure/wazero"
	"github.com/reglet-dev/clue-ffi/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const appName = "clueprobe"

const (
	exitOK     = 0
	exitFailed = 1 // an export failed or the library could not be loaded
	exitUsage  = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "Path of a YAML probe configuration")
	wasmPath := fs.String("wasm", "", "Path of the WebAssembly module to probe")
	exports := fs.String("export", "", "Comma-separated entry points to call (default: all)")
	mode := fs.String("mode", "", "Decode mode: strict, lossy, bytes or json")
	policy := fs.String("policy", "", "Interrupt policy: repanic or error")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn or error")
	printSchema := fs.Bool("schema", false, "Print the JSON schema of the configuration and exit")
	useNative := fs.Bool("native", false, "Probe the linked sample C library")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *printSchema {
		out, err := schema.ProbeConfigSchema()
		if err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", appName, err)
			return exitFailed
		}
		fmt.Fprintln(stdout, string(out))
		return exitOK
	}

	// Only flags given on the command line override the config file.
	overrides := map[string]any{}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "wasm":
			overrides["library"] = *wasmPath
		case "export":
			overrides["exports"] = splitList(*exports)
		case "mode":
			overrides["mode"] = *mode
		case "policy":
			overrides["interrupt_policy"] = *policy
		case "log-level":
			overrides["log_level"] = *logLevel
		case "native":
			overrides["native"] = *useNative
		}
	})

	cfg, err := config.Load(*configPath, parser.NewYamlConfigParser(), overrides)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitUsage
	}

	logger, zl, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitUsage
	}
	defer func() { _ = zl.Sync() }()
	slog.SetDefault(logger)

	lib, closeLib, err := openLibrary(ctx, cfg, logger)
	if err != nil {
		logger.ErrorContext(ctx, "failed to open library", "error", err)
		fmt.Fprintf(stderr, "%s: %v\n", appName, err)
		return exitFailed
	}
	defer closeLib()

	results, runErr := probe.NewService(lib, *cfg, probe.WithLogger(logger)).Run(ctx)

	enc := json.NewEncoder(stdout)
	code := exitOK
	for _, r := range results {
		if r.Error != nil && cfg.LogLevel != "debug" {
			r.Error.Stack = nil
		}
		if err := enc.Encode(r); err != nil {
			fmt.Fprintf(stderr, "%s: %v\n", appName, err)
			return exitFailed
		}
		if r.Failed() {
			code = exitFailed
		}
	}
	if runErr != nil {
		fmt.Fprintf(stderr, "%s: %v\n", appName, runErr)
		return exitFailed
	}
	return code
}

// newLogger builds a zap console logger on w and the slog logger that writes
// through it.
func newLogger(level string, w io.Writer) (*slog.Logger, *zap.Logger, error) {
	slogLevel, err := log.ParseLevel(level)
	if err != nil {
		return nil, nil, err
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encCfg), zapcore.AddSync(w), zapcore.DebugLevel)
	zl := zap.New(core).Named(appName)

	return log.New(zl, log.WithLevel(slogLevel)), zl, nil
}

func openLibrary(ctx context.Context, cfg *entities.ProbeConfig, logger *slog.Logger) (probe.Library, func(), error) {
	if cfg.Native {
		lib, err := openNative()
		return lib, func() {}, err
	}

	data, err := os.ReadFile(cfg.Library)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read library: %w", err)
	}
	lib, err := wazero.Load(ctx, data,
		wazero.WithModuleName(cfg.ModuleName),
		wazero.WithMaxViewSize(cfg.MaxViewSize),
		wazero.WithLogger(logger),
	)
	if err != nil {
		return nil, nil, err
	}
	return lib, func() { _ = lib.Close(context.WithoutCancel(ctx)) }, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
