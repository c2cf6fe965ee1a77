package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/soyeahso/dmschat/internal/config"
	"github.com/soyeahso/dmschat/internal/hooks"
	"github.com/soyeahso/dmschat/internal/notify"
	"github.com/soyeahso/dmschat/internal/version"
	"github.com/soyeahso/dmschat/internal/widget"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show backend presence, health and the configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "dmschat %s (commit %s)\n\n", version.Version, version.Commit)

			fmt.Fprintf(out, "Config:   %s\n", paths.Config)
			fmt.Fprintf(out, "State:    %s\n", paths.State)
			fmt.Fprintf(out, "Cookies:  %s\n", paths.Cookies)
			fmt.Fprintln(out)

			s, err := openSession(false)
			if err != nil {
				fmt.Fprintf(out, "Config:   error loading: %v\n", err)
				return nil
			}
			defer s.Close()

			cfg := s.cfg
			fmt.Fprintf(out, "Server:   %s (timeout %s)\n", cfg.Server.BaseURL, cfg.Server.Timeout())
			fmt.Fprintf(out, "Client:   %s\n", s.ID())

			ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Server.Timeout())
			defer cancel()
			printBackend(ctx, out, s)

			w := cfg.Widget
			fmt.Fprintf(out, "Widget:   heartbeat=%s typing-idle=%s failsafe=%s typewriter=%dcps\n",
				config.Ms(w.HeartbeatIntervalMs), config.Ms(w.TypingIdleMs),
				config.Ms(w.TypingFailsafeMs), w.TypewriterCps)
			fmt.Fprintf(out, "Notify:   bell=%v permission=%s\n", cfg.Notify.BellEnabled(), notifyPermission(s))

			hookCount := 0
			for _, e := range hooks.AllEvents {
				hookCount += s.hooks.Count(e)
			}
			fmt.Fprintf(out, "Hooks:    %d configured\n", hookCount)
			if s.db == nil {
				fmt.Fprintln(out, "Storage:  unavailable (client id kept in cookie file only)")
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s\n", issue)
				}
			}
			return nil
		},
	}
}

func printBackend(ctx context.Context, out io.Writer, s *session) {
	start := time.Now()
	health, err := s.client.Health(ctx)
	if err != nil {
		fmt.Fprintf(out, "Backend:  unreachable (%v)\n", err)
		return
	}
	fmt.Fprintf(out, "Backend:  ok=%v ai=%v (%s)\n", health.OK, health.AIKeyLoaded, time.Since(start).Round(time.Millisecond))

	presence, err := s.client.Status(ctx)
	if err != nil {
		fmt.Fprintf(out, "Presence: unknown (%v)\n", err)
		return
	}
	fmt.Fprintf(out, "Presence: %s\n", widget.PresenceLabel(presence.Online))
}

// notifyPermission reports the effective decision without prompting.
func notifyPermission(s *session) notify.Permission {
	opts := notify.Options{Permission: notify.ParsePermission(s.cfg.Notify.Permission)}
	if kv := s.kv(); kv != nil {
		opts.Store = kv
	}
	return notify.New(opts, s.log).Permission()
}
