package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/soyeahso/dmschat/internal/domain"
	"github.com/soyeahso/dmschat/internal/hooks"
)

func newSendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "send <message>",
		Short: "Send one message to the support team and print its id",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")

			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx := cmd.Context()
			cid := s.ID()
			tempID := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]

			mid, err := s.client.SendMessage(ctx, cid, text, tempID)
			if err != nil {
				return fmt.Errorf("sending message: %w", err)
			}
			if mid == "" {
				mid = domain.TempMid(tempID)
			}
			s.hooks.Emit(ctx, hooks.EventMessageSent, map[string]any{"cid": cid, "mid": mid, "text": text})

			fmt.Fprintln(cmd.OutOrStdout(), mid)
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print this client's conversation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			entries, err := s.client.History(cmd.Context(), s.ID())
			if err != nil {
				return fmt.Errorf("fetching history: %w", err)
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			if len(entries) == 0 {
				fmt.Fprintln(out, "(no messages)")
				return nil
			}
			for _, e := range entries {
				printHistoryEntry(out, e)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print raw entries as JSON")
	return cmd
}

func printHistoryEntry(w io.Writer, e domain.HistoryEntry) {
	role := domain.NormalizeRole(e.Role)

	stamp := ""
	if e.TS > 0 {
		sec := int64(e.TS)
		stamp = time.Unix(sec, int64((e.TS-float64(sec))*1e9)).Format("2006-01-02 15:04") + " "
	}

	mark := ""
	switch {
	case role.IsUser() && bool(e.SeenByAgent):
		mark = "  ✓✓"
	case !role.IsUser() && !bool(e.SeenByClient):
		mark = "  (new)"
	}
	fmt.Fprintf(w, "%s%-5s %s%s\n", stamp, role, e.Content, mark)
}

func newAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask the FAQ assistant a question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(false)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 2*s.cfg.Server.Timeout())
			defer cancel()

			answer, err := s.client.Ask(ctx, strings.Join(args, " "))
			if err != nil {
				return fmt.Errorf("asking assistant: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	}
}
