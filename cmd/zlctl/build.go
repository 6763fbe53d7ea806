package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pengdafu/zlcore/quicklist"
	"github.com/pengdafu/zlcore/util"
	"github.com/spf13/cobra"
)

var (
	buildFill   int
	buildDepth  int
	buildCount  int
	buildSize   int
	buildRandom bool
	buildSeed   string
)

func init() {
	cmd := newBuildCmd()
	cmd.Flags().IntVar(&buildFill, "fill", -2, "Node fill: -1..-5 for 4KB..64KB nodes, or a positive entry count")
	cmd.Flags().IntVar(&buildDepth, "depth", 0, "Nodes kept uncompressed at each end (0 disables compression)")
	cmd.Flags().IntVar(&buildCount, "count", 1000, "Number of values to push")
	cmd.Flags().IntVar(&buildSize, "size", 16, "Size of each generated value in bytes (0 pushes integers)")
	cmd.Flags().BoolVar(&buildRandom, "random", false, "Generate incompressible random values")
	cmd.Flags().StringVar(&buildSeed, "seed", "", "Key for the content digest, up to 16 bytes")
	rootCmd.AddCommand(cmd)
}

func newBuildCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build a quicklist and show its node layout",
		Long: `The build command pushes generated values into a quicklist and prints
every node with its entry count, ziplist size and compressed size, followed
by the content digest.

Example:
  zlctl build --fill -2 --count 5000
  zlctl build --fill 128 --depth 1 --size 64
  zlctl build --depth 2 --random --json
  zlctl build --count 100 --seed mykey`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild()
		},
	}
	return cmd
}

type nodeView struct {
	Count          int  `json:"count"`
	Size           int  `json:"size"`
	CompressedSize int  `json:"compressed_size,omitempty"`
	Compressed     bool `json:"compressed"`
}

type buildView struct {
	Fill   int        `json:"fill"`
	Depth  int        `json:"depth"`
	Count  int        `json:"count"`
	Bytes  int        `json:"bytes"`
	Stored int        `json:"stored"`
	Digest string     `json:"digest"`
	Nodes  []nodeView `json:"nodes"`
}

func generateValue(i int) []byte {
	switch {
	case buildSize <= 0:
		return []byte(strconv.Itoa(i))
	case buildRandom:
		return util.GetRandomBytes(buildSize)
	}
	v := fmt.Sprintf("%s%d", strings.Repeat("v", buildSize), i)
	return []byte(v[len(v)-buildSize:])
}

func buildList() (*quicklist.Quicklist, error) {
	if buildCount < 0 {
		return nil, fmt.Errorf("count must not be negative, got %d", buildCount)
	}
	ql := quicklist.New(quicklist.Options{
		Fill:          buildFill,
		CompressDepth: buildDepth,
		Logger:        newLogger(),
		DigestSeed:    []byte(buildSeed),
	})
	for i := 0; i < buildCount; i++ {
		if _, err := ql.PushTail(generateValue(i)); err != nil {
			return nil, fmt.Errorf("failed to push value %d: %w", i, err)
		}
	}
	return ql, nil
}

func runBuild() error {
	printVerbose("Building quicklist: fill=%d depth=%d count=%d size=%d\n", buildFill, buildDepth, buildCount, buildSize)
	ql, err := buildList()
	if err != nil {
		return err
	}

	view := buildView{
		Fill:   buildFill,
		Depth:  buildDepth,
		Count:  ql.Count(),
		Digest: fmt.Sprintf("%016x", ql.Digest()),
	}
	for _, st := range ql.Nodes() {
		view.Nodes = append(view.Nodes, nodeView{
			Count:          st.Count,
			Size:           st.Size,
			CompressedSize: st.CompressedSize,
			Compressed:     st.Compressed,
		})
		view.Bytes += st.Size
		if st.Compressed {
			view.Stored += st.CompressedSize
		} else {
			view.Stored += st.Size
		}
	}

	if jsonOut {
		return printJSON(view)
	}
	printInfo("%-6s %8s %8s %10s\n", "node", "entries", "bytes", "stored")
	for i, n := range view.Nodes {
		stored := "raw"
		if n.Compressed {
			stored = fmt.Sprintf("lz4 %d", n.CompressedSize)
		}
		printInfo("%-6d %8d %8d %10s\n", i, n.Count, n.Size, stored)
	}
	printInfo("\n%d entries in %d nodes, %d bytes (%d stored)\n", view.Count, len(view.Nodes), view.Bytes, view.Stored)
	printInfo("digest: %s\n", view.Digest)
	return nil
}
