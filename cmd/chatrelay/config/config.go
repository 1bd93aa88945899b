// Package configcmder provides the config command for managing persistent
// chatrelay configuration stored in the .chatrelay/ directory.
package configcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/cliui"
	"github.com/papercomputeco/chatrelay/pkg/config"
)

const configLongDesc string = `Manage persistent chatrelay configuration.

Configuration is stored as config.toml in the .chatrelay/ directory and
provides default values for command flags. Environment variables
(CHATRELAY_SERVER_LISTEN, OPENAI_API_KEY, ...) and CLI flags take precedence
over config file values.

Keys use dotted notation matching the TOML section structure:
  server.listen, server.channel, server.keepalive,
  upstream.endpoint, upstream.model, upstream.system_prompt,
  upstream.timeout, upstream.api_key,
  webhook.secret,
  events.provider, events.brokers, events.topic,
  client.target

Use subcommands to get, set, or list configuration values:
  chatrelay config set <key> <value>    Set a configuration value
  chatrelay config get <key>            Get a configuration value
  chatrelay config list                 List all configuration values

Examples:
  chatrelay config set server.channel broadcast
  chatrelay config set events.brokers kafka-1:9092,kafka-2:9092
  chatrelay config get upstream.model
  chatrelay config list`

const configShortDesc string = "Manage persistent chatrelay configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// displayValue masks secret keys so credentials never reach the terminal.
func displayValue(key, value string) string {
	if config.IsSecretConfigKey(key) {
		return cliui.MaskSecret(value)
	}
	return value
}
