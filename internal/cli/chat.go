package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/soyeahso/dmschat/internal/config"
	"github.com/soyeahso/dmschat/internal/notify"
	"github.com/soyeahso/dmschat/internal/stream"
	"github.com/soyeahso/dmschat/internal/tui"
	"github.com/soyeahso/dmschat/internal/widget"
)

func newChatCmd() *cobra.Command {
	var plain bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open the live chat",
		Long: "Open the live chat. On a terminal this is a full-screen panel; with --plain, " +
			"or when stdin/stdout are not terminals, messages are read from stdin line by line " +
			"and the conversation is printed as it happens.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			full := !plain && isTerminal(os.Stdin) && isTerminal(os.Stdout)

			s, err := openSession(full)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if full {
				return runFullScreen(ctx, s)
			}
			return runPlain(ctx, s, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&plain, "plain", false, "line-oriented output instead of the full-screen panel")
	return cmd
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// newWidget wires a widget to the session with the given renderer.
func newWidget(s *session, r widget.Renderer) *widget.Widget {
	cfg := s.cfg

	streams := stream.New(stream.Options{
		HTTPClient:    s.client.StreamClient(),
		URL:           s.client.StreamURL,
		ReconnectBase: config.Ms(cfg.Stream.ReconnectBaseMs),
		ReconnectMax:  config.Ms(cfg.Stream.ReconnectMaxMs),
	}, s.log)

	nopts := notify.Options{
		Hooks:      s.hooks,
		MaxBody:    cfg.Widget.NotifyChars,
		Permission: notify.ParsePermission(cfg.Notify.Permission),
	}
	if cfg.Notify.BellEnabled() {
		nopts.Bell = os.Stderr
	}
	if kv := s.kv(); kv != nil {
		nopts.Store = kv
	}

	return widget.New(widget.Options{
		Backend:  s.client,
		Stream:   streams,
		Identity: s,
		Renderer: r,
		Notifier: notify.New(nopts, s.log),
		Hooks:    s.hooks,
		Config:   cfg.Widget,
	}, s.log)
}

func runFullScreen(ctx context.Context, s *session) error {
	r := tui.NewRenderer()
	w := newWidget(s, r)
	defer w.Stop()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	p := tea.NewProgram(
		tui.NewModel(w, r, s.cfg.Widget.QuickReplies),
		tea.WithAltScreen(),
		tea.WithReportFocus(),
		tea.WithContext(gctx),
	)

	g.Go(func() error {
		defer cancel()
		defer r.Close()
		_, err := p.Run()
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		if err := w.Start(gctx); err != nil && gctx.Err() == nil {
			return fmt.Errorf("starting chat: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func runPlain(ctx context.Context, s *session, in io.Reader, out io.Writer) error {
	w := newWidget(s, tui.NewLineRenderer(out))
	if err := w.Start(ctx); err != nil {
		w.Stop()
		return fmt.Errorf("starting chat: %w", err)
	}
	defer func() {
		// let the last send reach the backend before leaving
		fctx, cancel := context.WithTimeout(ctx, s.cfg.Server.Timeout())
		defer cancel()
		if err := w.Flush(fctx); err != nil {
			s.log.Warn().Err(err).Msg("outbound calls still pending at exit")
		}
		w.Stop()
	}()
	// The transcript is the whole interface here, so keep the panel open.
	w.Open()

	return tui.Lines(ctx, in, w, s.cfg.Widget.QuickReplies)
}
