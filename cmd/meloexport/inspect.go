package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/example/go-melo-export/internal/metadata"
	"github.com/example/go-melo-export/internal/onnx"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <artifact.onnx>",
		Short: "Print the graph signature and metadata of an artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read artifact: %w", err)
			}
			info, err := onnx.DecodeModel(raw)
			if err != nil {
				return fmt.Errorf("decode %s: %w", args[0], err)
			}
			return printModel(cmd.OutOrStdout(), args[0], int64(len(raw)), info)
		},
	}
}

func printModel(w io.Writer, path string, size int64, info *onnx.ModelInfo) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%s)\n", path, humanize.Bytes(uint64(size)))
	fmt.Fprintf(&b, "  ir_version: %d\n", info.IRVersion)
	fmt.Fprintf(&b, "  producer:   %s %s\n", info.ProducerName, info.ProducerVersion)
	for _, op := range info.Opsets {
		domain := op.Domain
		if domain == "" {
			domain = "ai.onnx"
		}
		fmt.Fprintf(&b, "  opset:      %s %d\n", domain, op.Version)
	}
	fmt.Fprintf(&b, "  graph:      %s (%d nodes, %d initializers)\n", info.GraphName, info.NodeCount, info.Initializers)

	b.WriteString("inputs:\n")
	for _, vi := range info.Inputs {
		fmt.Fprintf(&b, "  %-14s %s\n", vi.Name, signature(vi))
	}
	b.WriteString("outputs:\n")
	for _, vi := range info.Outputs {
		fmt.Fprintf(&b, "  %-14s %s\n", vi.Name, signature(vi))
	}

	b.WriteString("metadata:\n")
	for _, e := range info.Metadata {
		fmt.Fprintf(&b, "  %-12s = %s\n", e.Key, e.Value)
	}
	if _, err := metadata.Parse(info.Metadata); err != nil {
		fmt.Fprintf(&b, "loader check: FAIL %v\n", err)
	} else {
		b.WriteString("loader check: ok\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func signature(vi onnx.ValueInfo) string {
	elem := "?"
	switch vi.ElemType {
	case onnx.ElemTypeFloat:
		elem = "float32"
	case onnx.ElemTypeInt64:
		elem = "int64"
	}
	dims := make([]string, len(vi.Dims))
	for i, d := range vi.Dims {
		dims[i] = d.String()
	}
	return elem + "[" + strings.Join(dims, ", ") + "]"
}
