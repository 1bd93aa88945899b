// Package initcmder provides the init command for initializing a local
// .chatrelay directory in the current working directory.
package initcmder

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

const (
	dirName    = ".chatrelay"
	configFile = "config.toml"
)

const initLongDesc string = `Initialize a new .chatrelay/ directory in the current working directory.

Creates a local .chatrelay/ directory that takes precedence over the default
~/.chatrelay/ directory for configuration and chat session state, and writes
a config.toml seeded from a preset.

Presets:
  direct      Stream answers in the message response (default)
  broadcast   Push answers to the session's event stream
  kafka       Broadcast mode plus turn telemetry on localhost:9092

Examples:
  chatrelay init
  chatrelay init --preset broadcast`

const initShortDesc string = "Initialize a local .chatrelay/ directory"

type initCommander struct {
	preset string
	force  bool
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&cmder.preset, "preset", "p", "", "Config preset (direct, broadcast, kafka)")
	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Overwrite an existing config.toml")

	return cmd
}

func (c *initCommander) run(cmd *cobra.Command) error {
	preset := c.preset
	if preset == "" {
		preset = config.ValidPresetNames()[0]
	}

	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	dir := filepath.Join(cwd, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating .chatrelay directory: %w", err)
	}

	out := cmd.OutOrStdout()
	path := filepath.Join(dir, configFile)
	if _, err := os.Stat(path); err == nil && !c.force {
		fmt.Fprintf(out, "  %s Already initialized: %s\n", cliui.SuccessMark, cliui.DimStyle.Render(dir))
		return nil
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking config: %w", err)
	}

	cfger, err := config.NewConfiger(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Initialized %s %s\n",
		cliui.SuccessMark,
		cliui.DimStyle.Render(dir),
		cliui.NameStyle.Render("("+preset+")"),
	)
	return nil
}
