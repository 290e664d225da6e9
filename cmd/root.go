package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"markexpr/internal/config"
)

var (
	configPath     string
	logLevel       string
	verbose        bool
	title          string
	functions      []string
	methods        []string
	dynamicImports []string
	pretty         bool
	format         string
	shallow        bool
	rawComments    bool

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "markexpr",
	Short: "Record calls to configured functions in JavaScript and TypeScript modules",
	Long: "markexpr finds calls to configured functions, methods and magic-commented dynamic imports,\n" +
		"extracts their literal arguments and writes them into an annotation comment at the top of the module.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(logLevel, verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if verbose {
		level = "debug"
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = !verbose
	return cfg.Build()
}

// loadConfig resolves the configuration file and applies the flag overrides.
func loadConfig() (config.Config, error) {
	if err := config.LoadFromUserConfig(); err != nil {
		logger.Warn("failed to load env files", zap.Error(err))
	}

	cfg := config.Config{}
	path, err := config.Discover(configPath, ".")
	if err != nil {
		return config.Config{}, err
	}
	if path != "" {
		if cfg, err = config.Load(path); err != nil {
			return config.Config{}, err
		}
		logger.Debug("loaded config", zap.String("path", path))
	}

	overrides, err := flagConfig()
	if err != nil {
		return config.Config{}, err
	}
	cfg = cfg.Merge(overrides)
	if cfg.Title == "" {
		cfg.Title = config.Get("MARKEXPR_TITLE")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	if cfg.Empty() {
		logger.Warn("no functions, methods or dynamic imports configured")
	}
	return cfg, nil
}

func flagConfig() (config.Config, error) {
	cfg := config.Config{
		Title:            title,
		Functions:        functions,
		DynamicImports:   dynamicImports,
		Pretty:           pretty,
		Format:           config.Format(format),
		ShallowArguments: shallow,
		RawMagicComments: rawComments,
	}
	if len(methods) > 0 {
		cfg.Methods = make(map[string][]string)
	}
	for _, m := range methods {
		obj, name, err := splitMethod(m)
		if err != nil {
			return config.Config{}, err
		}
		cfg.Methods[obj] = append(cfg.Methods[obj], name)
	}
	return cfg, nil
}

// splitMethod splits "object.method" at the last dot.
func splitMethod(s string) (string, string, error) {
	i := strings.LastIndex(s, ".")
	if i <= 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("%w: --method expects object.method, got %q", config.ErrInvalidConfig, s)
	}
	return s[:i], s[i+1:], nil
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "Config file (default: $MARKEXPR_CONFIG or .markexpr.{yaml,yml,json})")
	flags.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Shorthand for --log-level=debug")
	flags.StringVar(&title, "title", "", "Title written in the annotation markers")
	flags.StringSliceVarP(&functions, "function", "f", nil, "Function name to record (repeatable)")
	flags.StringSliceVarP(&methods, "method", "m", nil, "Method to record as object.method; use this.method for the implicit receiver (repeatable)")
	flags.StringSliceVar(&dynamicImports, "dynamic-import", nil, "Magic comment key that marks a dynamic import (repeatable)")
	flags.BoolVar(&pretty, "pretty", false, "Pretty-print the annotation JSON")
	flags.StringVar(&format, "format", "", "Record format: object or tuple")
	flags.BoolVar(&shallow, "shallow", false, "Record array and object arguments as null")
	flags.BoolVar(&rawComments, "raw-magic-comments", false, "Record the text of magic comments instead of their parsed value")
}

func Execute() error {
	return rootCmd.Execute()
}

// ExecuteContext runs the root command with ctx available to subcommands.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
