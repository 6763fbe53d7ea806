package main

import (
	"strings"

	"github.com/pengdafu/zlcore/ziplist"
	"github.com/spf13/cobra"
)

var validateShallow bool

func init() {
	cmd := newValidateCmd()
	cmd.Flags().BoolVar(&validateShallow, "shallow", false, "Only check the header and end marker")
	rootCmd.AddCommand(cmd)
}

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <hex>",
		Short: "Check a ziplist buffer for structural integrity",
		Long: `The validate command checks the header, end marker and tail offset
of a hex encoded ziplist buffer. Unless --shallow is given every record is
walked as well, checking bounds, prevlen chaining and the entry count.

Example:
  zlctl validate 0f000000 0c000000 0200 00f3 02f6 ff
  zlctl validate --shallow --json 0b0000000a0000000000ff`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(args)
		},
	}
	return cmd
}

func runValidate(args []string) error {
	zl, err := parseHex(strings.Join(args, ""))
	if err != nil {
		return err
	}

	err = ziplist.Validate(zl, !validateShallow)
	result := map[string]interface{}{
		"bytes":   len(zl),
		"shallow": validateShallow,
		"valid":   err == nil,
	}
	if err != nil {
		result["error"] = err.Error()
	}

	if jsonOut {
		if perr := printJSON(result); perr != nil {
			return perr
		}
		return err
	}
	if err != nil {
		printInfo("✗ INVALID: %v\n", err)
		return err
	}
	printInfo("✓ VALID (%d bytes)\n", len(zl))
	return nil
}
