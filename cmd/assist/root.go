package main

import (
	"fmt"
	"io"
	"log"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/room4-2/holoassist/config"
	"github.com/room4-2/holoassist/device"
	"github.com/room4-2/holoassist/eventlog"
)

var (
	cfg     *config.Config
	apiKey  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:           "assist",
	Short:         "HoloAssist voice assistant",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.LoadConfig(); err != nil {
			return err
		}
		if apiKey != "" {
			cfg.GeminiAPIKey = apiKey
		}
		if !verbose {
			log.SetOutput(io.Discard)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", "", "Gemini API key (default $GEMINI_API_KEY)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show the process log")

	rootCmd.AddCommand(talkCmd)
	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(streamCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func requireAPIKey() error {
	if cfg.GeminiAPIKey == "" {
		return fmt.Errorf("API key missing: set GEMINI_API_KEY or pass --api-key")
	}
	return nil
}

func loadContacts() ([]device.Contact, error) {
	if cfg.ContactsFile == "" {
		return device.DefaultContacts(), nil
	}
	return device.LoadContacts(cfg.ContactsFile)
}

var (
	timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
	styles    = map[eventlog.Severity]lipgloss.Style{
		eventlog.Info:    lipgloss.NewStyle().Foreground(lipgloss.Color("#58a6ff")),
		eventlog.Warning: lipgloss.NewStyle().Foreground(lipgloss.Color("#d29922")),
		eventlog.Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f85149")).Bold(true),
		eventlog.Success: lipgloss.NewStyle().Foreground(lipgloss.Color("#00ff9f")),
	}
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00ff9f"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

func printEntry(e eventlog.Entry) {
	fmt.Printf("%s %s\n", timeStyle.Render(e.Timestamp), styles[e.Severity].Render(e.Message))
}
