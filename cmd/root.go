package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"studyhall/internal/api"
	"studyhall/internal/config"
	"studyhall/internal/log"
	"studyhall/internal/session"
	"studyhall/internal/trace"
	"studyhall/internal/ui"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "studyhall",
	Short:   "A terminal ui for tutoring chat sessions",
	Long:    `A terminal user interface for conversations with a course tutoring assistant: browse, pin, and delete past sessions, and ask new questions with answers revealed as they arrive.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/studyhall/config.yaml)")
	rootCmd.Flags().StringP("server", "s", "",
		"tutoring backend base URL")
	rootCmd.Flags().StringP("user", "u", "",
		"student user id")
	rootCmd.Flags().String("course", "",
		"course name for new conversations")
	rootCmd.Flags().Bool("debug", false,
		"write verbose logs to studyhall-debug.log")

	// Bind flags to viper
	_ = viper.BindPFlag("server.base_url", rootCmd.Flags().Lookup("server"))
	_ = viper.BindPFlag("student.user_id", rootCmd.Flags().Lookup("user"))
	_ = viper.BindPFlag("student.course_name", rootCmd.Flags().Lookup("course"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("server.base_url", defaults.Server.BaseURL)
	viper.SetDefault("server.timeout_seconds", defaults.Server.TimeoutSeconds)
	viper.SetDefault("student.course_name", defaults.Student.CourseName)
	viper.SetDefault("chat.reveal_delay_ms", defaults.Chat.RevealDelayMs)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .studyhall/config.yaml (current directory)
		// 2. ~/.config/studyhall/config.yaml (user config)
		if _, err := os.Stat(".studyhall/config.yaml"); err == nil {
			viper.SetConfigFile(".studyhall/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "studyhall"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at
		// ~/.config/studyhall/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			home, homeErr := os.UserHomeDir()
			if homeErr == nil {
				defaultPath := filepath.Join(home, ".config", "studyhall", "config.yaml")
				if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
					viper.SetConfigFile(defaultPath)
					_ = viper.ReadInConfig()
				}
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func runApp(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if cfg.Debug || os.Getenv("STUDYHALL_DEBUG") != "" {
		cleanup, err := log.InitWithTeaLog("studyhall-debug.log", "studyhall")
		if err != nil {
			return fmt.Errorf("initializing debug log: %w", err)
		}
		defer cleanup()
	}

	// Remember a student identity given on the command line so the next
	// run does not need the flags again.
	if cmd.Flags().Changed("user") || cmd.Flags().Changed("course") {
		if path := viper.ConfigFileUsed(); path != "" {
			if err := config.SaveStudent(path, cfg.Student); err != nil {
				log.Warn(log.CatConfig, "could not persist student identity", "error", err.Error())
			}
		}
	}

	tracing := cfg.Tracing
	if tracing.FilePath == "" {
		tracing.FilePath = config.DefaultTracesFilePath()
	}
	if tracing.ServiceName == "" {
		tracing.ServiceName = "studyhall"
	}
	provider, err := trace.NewProvider(tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = provider.Shutdown(ctx)
	}()

	client := api.New(cfg.Server.BaseURL, cfg.Server.Token,
		api.WithHTTPClient(&http.Client{Timeout: cfg.Server.Timeout()}),
		api.WithTracer(provider.Tracer()),
	)

	bridge := ui.NewBridge()
	sess := session.New(client, bridge, session.Config{
		UserID:         cfg.Student.UserID,
		CourseName:     cfg.Student.CourseName,
		FollowUpMarker: cfg.Chat.FollowUpMarker,
		RevealDelay:    cfg.Chat.RevealDelay(),
	})
	defer sess.Close()

	model := ui.New(sess)
	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
	)
	bridge.Attach(p.Send)

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
