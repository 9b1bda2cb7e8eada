package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func bssCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bss",
		Short: "Inspect steered BSSes",
	}

	cmd.AddCommand(bssListCmd())
	cmd.AddCommand(bssShowCmd())

	return cmd
}

// --- bss list ---

func bssListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all BSSes this daemon steers",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			bsses, err := client.List(context.Background())
			if err != nil {
				return fmt.Errorf("list bsses: %w", err)
			}

			out, err := formatBSSes(bsses, outputFormat)
			if err != nil {
				return fmt.Errorf("format bsses: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}

// --- bss show ---

func bssShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <handle>",
		Short: "Show a BSS and its steering clients",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			bs, err := client.Get(context.Background(), args[0])
			if err != nil {
				return fmt.Errorf("get bss %q: %w", args[0], err)
			}

			out, err := formatBSS(bs, outputFormat)
			if err != nil {
				return fmt.Errorf("format bss: %w", err)
			}

			fmt.Print(out)

			return nil
		},
	}
}
