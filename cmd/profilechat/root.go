package main

import (
	"github.com/spf13/cobra"

	"profilechat/internal/config"
)

// globalFlags holds flags shared across all commands.
type globalFlags struct {
	ConfigPath     string
	AllowRemote    bool
	RemoteEndpoint string
	LogLevel       string
}

var flags globalFlags

var rootCmd = &cobra.Command{
	Use:           "profilechat",
	Short:         "Chat with a personal profile through a local language model",
	Long:          "profilechat indexes a profile document and answers questions about it using a local or remote language model, grounded on retrieved context.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to YAML config file (default: ./profilechat.yaml or ~/.config/profilechat/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flags.AllowRemote, "allow-remote", false, "allow remote libraries and models")
	rootCmd.PersistentFlags().StringVar(&flags.RemoteEndpoint, "remote-endpoint", "", "chat_stream endpoint tried before the local engine")
	rootCmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(diagCmd)
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads the config file and applies command-line overrides.
func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	var (
		cfg *config.AppConfig
		err error
	)
	if flags.ConfigPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(flags.ConfigPath)
	}
	if err != nil {
		return nil, err
	}
	pf := cmd.Flags()
	if pf.Changed("allow-remote") {
		cfg.Engine.AllowRemote = flags.AllowRemote
	}
	if pf.Changed("remote-endpoint") {
		cfg.Remote.Endpoint = flags.RemoteEndpoint
	}
	if flags.LogLevel != "" {
		cfg.Log.Level = flags.LogLevel
	}
	return cfg, nil
}
