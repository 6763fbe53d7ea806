package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pengdafu/zlcore/intset"
	"github.com/pengdafu/zlcore/util"
	"github.com/spf13/cobra"
)

var (
	intsetLoad   string
	intsetRemove bool
)

func init() {
	cmd := newIntsetCmd()
	cmd.Flags().StringVar(&intsetLoad, "load", "", "Start from a serialized intset given as hex")
	cmd.Flags().BoolVar(&intsetRemove, "remove", false, "Remove the given values instead of adding them")
	rootCmd.AddCommand(cmd)
}

func newIntsetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "intset [values...]",
		Short: "Build or inspect a packed integer set",
		Long: `The intset command adds integers to a packed set and prints the
serialized buffer as hex. With --load an existing buffer is validated and
used as the starting set; with --remove the values are removed instead.

Example:
  zlctl intset 5 1 70000
  zlctl intset --load 020000000200000001000500 --json
  zlctl intset --load 020000000200000001000500 --remove 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntset(args)
		},
	}
	return cmd
}

type intsetView struct {
	Encoding int     `json:"encoding"`
	Length   int     `json:"length"`
	Bytes    int     `json:"bytes"`
	Members  []int64 `json:"members"`
	Hex      string  `json:"hex"`
}

func runIntset(args []string) error {
	is := intset.New()
	if intsetLoad != "" {
		b, err := parseHex(intsetLoad)
		if err != nil {
			return err
		}
		if is, err = intset.Load(b); err != nil {
			return err
		}
		printVerbose("Loaded %d members of %d bytes\n", is.Len(), is.Encoding())
	}

	for _, arg := range args {
		var v int64
		if !util.String2Int64(arg, &v) {
			return fmt.Errorf("%q is not an integer", arg)
		}
		if intsetRemove {
			if !is.Remove(v) {
				printVerbose("%d not present\n", v)
			}
		} else if !is.Add(v) {
			printVerbose("%d already present\n", v)
		}
	}

	view := intsetView{
		Encoding: is.Encoding(),
		Length:   is.Len(),
		Bytes:    is.BlobLen(),
		Members:  []int64{},
		Hex:      hex.EncodeToString(is.Bytes()),
	}
	for i := 0; i < is.Len(); i++ {
		v, _ := is.Get(i)
		view.Members = append(view.Members, v)
	}

	if jsonOut {
		return printJSON(view)
	}
	printInfo("%s\n", view.Hex)
	if verbose {
		members := make([]string, len(view.Members))
		for i, v := range view.Members {
			members[i] = fmt.Sprint(v)
		}
		printVerbose("int%d x %d: %s\n", view.Encoding*8, view.Length, strings.Join(members, " "))
	}
	return nil
}
