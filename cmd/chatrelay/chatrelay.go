// Package chatrelaycmder is the root chatrelay command.
package chatrelaycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/chat"
	configcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/config"
	initcmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/init"
	servecmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/serve"
	versioncmder "github.com/papercomputeco/chatrelay/cmd/chatrelay/version"
)

const chatrelayLongDesc string = `Chatrelay streams answers from an LLM to a browser chat widget.

Run the server and talk to it using:
  chatrelay serve                 Run the relay server
  chatrelay chat                  Chat with a running server from the terminal
  chatrelay init --preset kafka   Write a starter config to ./.chatrelay/
  chatrelay config list           Show the resolved configuration`

const chatrelayShortDesc string = "Chatrelay - streaming LLM chat relay"

func NewChatrelayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "chatrelay",
		Short:        chatrelayShortDesc,
		Long:         chatrelayLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the .chatrelay/ directory location")

	// Add subcommands
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
