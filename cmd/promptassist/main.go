// promptassist expands snippet commands and ::Prompt(...) requests typed
// anywhere on the desktop.
//
// Usage:
//
//	promptassist run                  Run the expander until interrupted
//	promptassist snippets list        Show stored snippets
//	promptassist history list         Show recent augmentations
//	promptassist config init          Write a default configuration
//	promptassist check                Verify service and platform support
package main

import (
	"os"

	"github.com/spf13/cobra"

	"promptassist/internal/config"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app holds flags shared by all subcommands.
type app struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "promptassist",
		Short: "System-wide snippet and prompt expander",
		Long: `PromptAssist watches what you type in any application.

Typing a stored command such as ::emailStarter followed by a space replaces
it with the snippet text. Typing ::Prompt(your request) followed by a space
sends the request to the augmentation service and pastes the answer in its
place.

Configuration lives in config.toml under the platform config directory.
The API key and service URL can also be supplied through the
PROMPTASSIST_API_KEY and PROMPTASSIST_BASE_URL environment variables.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "path to config file (default: platform config directory)")

	root.AddCommand(
		a.runCmd(),
		a.snippetsCmd(),
		a.historyCmd(),
		a.configCmd(),
		a.checkCmd(),
	)
	return root
}

// resolveConfigPath prefers --config, then an existing config.* file, then
// the platform default.
func (a *app) resolveConfigPath() string {
	if a.configPath != "" {
		return a.configPath
	}
	if found := config.FindConfigFile(); found != "" {
		return found
	}
	return config.ConfigPath()
}

// loadConfig reads the configuration without creating a file.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.NewLoader(a.resolveConfigPath(), quietLogger()).Load()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}
