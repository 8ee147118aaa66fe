package internal

import (
	"os"

	elog "github.com/eluv-io/log-go"
	"github.com/spf13/cobra"

	"github.com/goplus/theora-recipe/internal/metrics"
)

var (
	workspaceDir string
	configFile   string
	verbose      bool
	logFile      string
	metricsFile  string
)

var rootCmd = &cobra.Command{
	Use:   "recipe",
	Short: "recipe builds the theora codec library from source",
	Long: `recipe downloads the pinned libtheora release, verifies it, patches it for
the target toolchain, builds it with Autotools or the legacy Visual Studio
projects and installs headers, libraries and licenses into a package directory.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogging,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&workspaceDir, "workspace", "", "Workspace directory (default $THEORA_RECIPE_HOME or the user cache dir)")
	flags.StringVar(&configFile, "config", "", "Recipe file overriding the built-in recipe and options")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable verbose build output")
	flags.StringVar(&logFile, "log-file", "", "Write logs to this file")
	flags.StringVar(&metricsFile, "metrics-file", "", "Write stage metrics to this file in Prometheus text format")
}

func setupLogging(cmd *cobra.Command, args []string) error {
	cfg := &elog.Config{
		Level:   "warn",
		Handler: "text",
	}
	if logFile != "" {
		cfg.Level = "info"
		cfg.File = &elog.LumberjackConfig{
			Filename:  logFile,
			LocalTime: true,
		}
	}
	if verbose {
		cfg.Level = "debug"
	}
	elog.SetDefault(cfg)
	return nil
}

// writeMetrics saves rec when --metrics-file is set. Failures to write
// are logged and otherwise ignored.
func writeMetrics(rec *metrics.Recorder) {
	if metricsFile == "" {
		return
	}
	if err := rec.WriteFile(metricsFile); err != nil {
		elog.Warn("failed to write metrics", "file", metricsFile, "error", err)
	}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
