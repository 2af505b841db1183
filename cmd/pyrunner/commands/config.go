package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/pyrunner/config"
	"github.com/teranos/pyrunner/errors"
)

// ErrExecutionFailed is returned when executed code raised. The traceback
// has already been written to stderr.
var ErrExecutionFailed = errors.New("python code raised an exception")

// LoadConfig loads the file named by --config, or the merged user and
// project files when the flag is unset
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// ConfigCmd groups configuration subcommands
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or create pyrunner configuration",
	Long: `Configuration is read from ~/.pyrunner/config.toml, then from the nearest
pyrunner.toml walking up from the working directory, then from PYRUNNER_*
environment variables (e.g. PYRUNNER_PYTHON_COMMAND="uv run python").`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := LoadConfig(cmd)
		if err != nil {
			return err
		}
		data, err := toml.Marshal(cfg)
		if err != nil {
			return errors.Wrap(err, "failed to marshal config")
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var (
	configInitUser  bool
	configInitForce bool
)

var configInitCmd = &cobra.Command{
	Use:   "init [PATH]",
	Short: "Write the default configuration",
	Long: `Write the default configuration to PATH, ./pyrunner.toml when PATH is
omitted, or ~/.pyrunner/config.toml with --user.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.ProjectConfigName
		switch {
		case len(args) == 1:
			path = args[0]
		case configInitUser:
			path = config.UserConfigPath()
			if path == "" {
				return errors.New("cannot determine home directory")
			}
		}

		if _, err := os.Stat(path); err == nil && !configInitForce {
			return errors.WithHint(
				errors.Newf("%s already exists", path),
				"pass --force to overwrite it (the old file is kept as .back1)",
			)
		}
		if err := config.WriteDefault(path); err != nil {
			return err
		}

		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		fmt.Fprintln(cmd.OutOrStdout(), pterm.Success.Sprintf("Wrote default configuration to %s", abs))
		return nil
	},
}

func init() {
	configInitCmd.Flags().BoolVar(&configInitUser, "user", false, "Write ~/.pyrunner/config.toml")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")

	ConfigCmd.AddCommand(configShowCmd)
	ConfigCmd.AddCommand(configInitCmd)
}
