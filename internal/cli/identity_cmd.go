package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newIdentityCmd() *cobra.Command {
	var rotate bool

	cmd := &cobra.Command{
		Use:   "identity",
		Short: "Print this install's client id",
		Long: "Print the client id that ties this install to its conversation. " +
			"With --rotate a new id is generated, which starts a fresh conversation.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			id := s.ID()
			if rotate {
				old := id
				id = s.Rotate()
				s.log.Info().Str("old", old).Str("new", id).Msg("client id rotated")
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}

	cmd.Flags().BoolVar(&rotate, "rotate", false, "replace the client id with a new one")
	return cmd
}
