package cli

import (
	"github.com/spf13/cobra"

	"github.com/soyeahso/dmschat/internal/config"
)

var (
	cfgFile   string
	logLevel  string
	serverURL string

	// resolved before any command runs
	paths config.Paths
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dmschat",
		Short: "dmschat — terminal client for the DMS support chat",
		Long: "dmschat talks to a DMS chat backend: it keeps a live conversation with " +
			"the support team, mirrors typing and read receipts, and alerts on replies.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			paths, err = config.ResolvePaths()
			if err != nil {
				return err
			}
			if cfgFile != "" {
				paths.Config = cfgFile
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ~/.dmschat/config.yaml)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (trace, debug, info, warn, error, fatal, silent)")
	cmd.PersistentFlags().StringVar(&serverURL, "server", "", "chat backend base URL (overrides server.baseUrl)")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newChatCmd())
	cmd.AddCommand(newSendCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newAskCmd())
	cmd.AddCommand(newIdentityCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}
