package commands

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

// watchCmd polls the debug endpoint on an interval and prints one BSS's
// status and client table each time, standing in for a push-based event stream: the debug
// endpoint is plain request/response JSON with no subscribe verb, so
// "watch" here means "ask again periodically" rather than a long-lived
// server push.
func watchCmd() *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch <handle>",
		Short: "Poll a BSS's steering clients until interrupted (Ctrl+C)",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			ticker := time.NewTicker(interval)
			defer ticker.Stop()

			if err := pollOnce(ctx, args[0]); err != nil {
				return err
			}

			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := pollOnce(ctx, args[0]); err != nil {
						if errors.Is(err, context.Canceled) {
							return nil
						}
						return err
					}
				}
			}
		},
	}

	cmd.Flags().DurationVar(&interval, "interval", 2*time.Second, "poll interval")

	return cmd
}

func pollOnce(ctx context.Context, handle string) error {
	bs, err := client.Get(ctx, handle)
	if err != nil {
		return fmt.Errorf("get bss %q: %w", handle, err)
	}

	out, err := formatBSS(bs, outputFormat)
	if err != nil {
		return fmt.Errorf("format bss: %w", err)
	}

	fmt.Println(out)

	return nil
}
