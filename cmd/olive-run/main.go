// Command olive-run inspects analysis components and runs single analyses
// through the same boundary the shared library uses.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/olive-bridge/bridge"
	"github.com/wippyai/olive-bridge/engine"
)

var (
	componentPath string
	backend       string
	typeName      string
	methodName    string
	logLevel      string
	memoryPages   uint32
)

var rootCmd = &cobra.Command{
	Use:           "olive-run",
	Short:         "Inspect and run DSM/NDVI analysis components",
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&componentPath, "component", "c", "", "Component path (default: next to the executable, or "+bridge.EnvComponent+")")
	rootCmd.PersistentFlags().StringVarP(&backend, "backend", "b", "", "Backend: wasm or native (default "+bridge.EnvBackend+" or wasm)")
	rootCmd.PersistentFlags().StringVar(&typeName, "type", "", "Entry type name")
	rootCmd.PersistentFlags().StringVar(&methodName, "method", "", "Analysis method name")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level (debug, info, warn, error, off)")
	rootCmd.PersistentFlags().Uint32Var(&memoryPages, "memory-limit-pages", 0, "Guest memory cap in 64KiB pages (wasm)")

	rootCmd.AddCommand(listCmd, analyzeCmd)
}

// loadConfig merges environment overrides with command line flags
func loadConfig(cmd *cobra.Command) (bridge.Config, error) {
	dir := "."
	if exe, err := os.Executable(); err == nil {
		dir = filepath.Dir(exe)
	}

	cfg, err := bridge.ConfigFromEnv(dir)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("component") {
		cfg.ComponentPath = componentPath
	}
	if flags.Changed("backend") {
		cfg.Backend = bridge.ParseBackend(backend)
	}
	if flags.Changed("type") {
		cfg.TypeName = typeName
	}
	if flags.Changed("method") {
		cfg.MethodName = methodName
	}
	if flags.Changed("memory-limit-pages") {
		cfg.MemoryLimitPages = memoryPages
	}
	if flags.Changed("log-level") || os.Getenv(bridge.EnvLogLevel) == "" {
		cfg.LogLevel = strings.ToLower(strings.TrimSpace(logLevel))
	}
	return cfg, cfg.Validate()
}

func newLogger(level string) (*zap.Logger, error) {
	logger, err := bridge.NewLogger(level)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	engine.SetLogger(logger.Named("guest"))
	return logger, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
