package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/HaiFongPan/dermascan-cli/internal/config"
	"github.com/HaiFongPan/dermascan-cli/internal/remote"
	"github.com/HaiFongPan/dermascan-cli/internal/tui"
	"github.com/HaiFongPan/dermascan-cli/internal/tui/preview"
	"github.com/HaiFongPan/dermascan-cli/internal/utils"
)

var (
	cfgFile      string
	verbose      bool
	quiet        bool
	globalConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "dermascan [image]",
	Short: "Upload skin lesion photos and classify them",
	Long: `DermaScan uploads a photo of a skin lesion to the analysis service and
shows the predicted classification, its confidence and a short description.

Results come from an automated model and are not a medical diagnosis.

Example usage:
  dermascan                      # Interactive scan screen
  dermascan lesion.jpg           # Interactive, with lesion.jpg preselected
  dermascan scan lesion.jpg      # Upload and analyze without the TUI
  dermascan serve                # Run the local stand-in analysis service
  dermascan stored               # List images the local service has stored`,
	Args: cobra.MaximumNArgs(1),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		var initial string
		if len(args) > 0 {
			initial = args[0]
		}
		return runInteractiveScan(initial)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ~/.dermascan/config.toml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "enable quiet mode")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() error {
	var err error
	globalConfig, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	setupLogging()
	return nil
}

// setupLogging configures the global logger based on config and flags
func setupLogging() {
	level := globalConfig.Log.Level
	if verbose {
		level = "debug"
	} else if quiet {
		level = "error"
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Warnf("Invalid log level %s, using info", level)
		logLevel = logrus.InfoLevel
	}
	logrus.SetLevel(logLevel)

	// Redirect all logs to file to prevent UI interference
	logDir := filepath.Join(os.TempDir(), "dermascan")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		logrus.Warnf("Failed to create log directory %s: %v", logDir, err)
	} else {
		logFile := filepath.Join(logDir, "app.log")
		file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			logrus.Warnf("Failed to open log file %s: %v", logFile, err)
		} else {
			logrus.SetOutput(file)
		}
	}

	if globalConfig.Log.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			DisableTimestamp: quiet,
			FullTimestamp:    verbose,
		})
	}
}

// logToStderr is used by commands without a TUI
func logToStderr() {
	logrus.SetOutput(os.Stderr)
}

// GetConfig returns the global configuration
func GetConfig() *config.Config {
	return globalConfig
}

// runInteractiveScan runs the scan screen
func runInteractiveScan(initialPath string) error {
	cfg := globalConfig

	previews, err := preview.NewStore("")
	if err != nil {
		return fmt.Errorf("failed to create preview store: %w", err)
	}
	defer previews.Close()

	userData, err := config.LoadUserData()
	if err != nil {
		logrus.Warnf("Failed to load user data: %v", err)
		userData = nil
	}

	client := remote.NewClient(cfg.Service)
	model := tui.NewScanModel(cfg, tui.Deps{
		Uploader: client,
		Analyzer: client,
		Previews: previews,
		Inline:   preview.NewRenderer(string(preview.MethodText)),
		Full:     preview.NewRenderer(cfg.UI.ImagePreviewMethod),
		Validate: utils.Validator(),
		UserData: userData,
	})
	model.SetInitialPath(initialPath)
	defer model.Teardown()

	program := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)

	// Set program reference in model for upload progress messages
	model.SetProgram(program)

	_, err = program.Run()
	return err
}
