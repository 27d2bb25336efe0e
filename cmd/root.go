package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maniya81/whatsapp-crm-extension/internal/app"
	"github.com/maniya81/whatsapp-crm-extension/internal/config"
	"github.com/maniya81/whatsapp-crm-extension/internal/crm"
	"github.com/maniya81/whatsapp-crm-extension/internal/infrastructure/sqlite"
	"github.com/maniya81/whatsapp-crm-extension/internal/log"
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
	Use:     "wacrm",
	Short:   "CRM pipeline overlay for a WhatsApp-style chat host",
	Long:    `A terminal overlay that merges CRM pipeline stages with a live chat host's conversation list: stage-indexed buckets, virtualized rendering, and list takeover while a filter is active.`,
	Version: version,
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/wacrm/config.yaml)")
	rootCmd.Flags().String("api-url", "", "CRM API base URL")
	rootCmd.Flags().String("org", "", "CRM organization id")
	rootCmd.Flags().Bool("debug", false, "enable debug logging and the log overlay (ctrl+x)")
	rootCmd.Flags().Bool("save", false, "persist --api-url/--org to the config file")

	// Bind flags to viper
	_ = viper.BindPFlag("api.base_url", rootCmd.Flags().Lookup("api-url"))
	_ = viper.BindPFlag("api.org_id", rootCmd.Flags().Lookup("org"))
	_ = viper.BindPFlag("debug", rootCmd.Flags().Lookup("debug"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("api.window_days", defaults.API.WindowDays)
	viper.SetDefault("bridge.listen_addr", defaults.Bridge.ListenAddr)
	viper.SetDefault("refresh.fast_seconds", defaults.Refresh.FastSeconds)
	viper.SetDefault("refresh.slow_minutes", defaults.Refresh.SlowMinutes)
	viper.SetDefault("ui.show_status_bar", defaults.UI.ShowStatusBar)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .wacrm/config.yaml (current directory)
		// 2. ~/.config/wacrm/config.yaml (user config)
		if _, err := os.Stat(".wacrm/config.yaml"); err == nil {
			viper.SetConfigFile(".wacrm/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "wacrm"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .wacrm/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".wacrm/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func runApp(cmd *cobra.Command, args []string) error {
	if os.Getenv("WACRM_DEBUG") != "" {
		cfg.Debug = true
	}
	if cfg.Debug {
		if cleanup, err := log.Init(filepath.Join(os.TempDir(), "wacrm.log")); err == nil {
			defer cleanup()
		}
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w\nSet api.base_url and api.org_id in the config file or pass --api-url/--org", err)
	}

	configFilePath := viper.ConfigFileUsed()
	if configFilePath == "" {
		configFilePath = ".wacrm/config.yaml"
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		if err := config.SaveAPI(configFilePath, cfg.API); err != nil {
			return fmt.Errorf("saving config: %w", err)
		}
	}

	// Warm lead cache is best-effort: a broken cache file must never
	// keep the overlay from starting.
	var repo *sqlite.LeadRepository
	if cachePath, err := cfg.CachePath(); err == nil {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o750); err == nil {
			if db, err := sqlite.Open(cachePath); err == nil {
				repo = sqlite.NewLeadRepository(db)
				defer func() { _ = db.Close() }()
			} else {
				log.ErrorErr(log.CatDB, "opening lead cache", err, "path", cachePath)
			}
		}
	}

	client := crm.NewClient(cfg.API.BaseURL, cfg.API.OrgID, nil)

	reload := func() (config.Config, error) {
		if err := viper.ReadInConfig(); err != nil {
			return config.Config{}, fmt.Errorf("re-reading config: %w", err)
		}
		var next config.Config
		if err := viper.Unmarshal(&next); err != nil {
			return config.Config{}, fmt.Errorf("parsing config: %w", err)
		}
		if err := next.Validate(); err != nil {
			return config.Config{}, err
		}
		return next, nil
	}

	model, err := app.NewWithConfig(cfg, configFilePath, client, repo, reload, cfg.Debug)
	if err != nil {
		return fmt.Errorf("starting host bridge: %w", err)
	}

	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err = p.Run()

	if closeErr := model.Close(); closeErr != nil && err == nil {
		err = closeErr
	}

	if err != nil {
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
