package main

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newDecodeCmd())
}

func newDecodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decode <hex>",
		Short: "Validate a ziplist buffer and list its entries",
		Long: `The decode command checks a hex encoded ziplist buffer record by
record and lists every entry with its offset, prevlen, encoding, length and
value.

Example:
  zlctl decode 0f0000000c0000000200 00f302f6ff
  zlctl decode --json 0f0000000c000000020000f302f6ff`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDecode(args)
		},
	}
	return cmd
}

func runDecode(args []string) error {
	zl, err := parseHex(strings.Join(args, ""))
	if err != nil {
		return err
	}

	view := describe(zl)
	if jsonOut {
		if err := printJSON(view); err != nil {
			return err
		}
	} else {
		printInfo("%d bytes, %d entries\n", view.Bytes, view.Count)
		for _, e := range view.Entries {
			printInfo("  %s\n", formatEntry(e))
		}
	}
	if !view.Valid {
		return errors.New(view.Error)
	}
	return nil
}
