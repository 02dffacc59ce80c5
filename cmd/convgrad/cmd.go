package main

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/born-ml/convgrad/internal/envconfig"
	"github.com/born-ml/convgrad/internal/logutil"
	"github.com/born-ml/convgrad/ops"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

const version = "v0.1.0-dev"

// NewCLI builds the root command.
func NewCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "convgrad",
		Short: "Plan-cached Conv2D input gradients",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
			slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))
		},
	}

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		NewRunCmd(),
		NewBenchCmd(),
		NewEnvCmd(),
		NewVersionCmd(),
	)
	return rootCmd
}

// addConvFlags registers the convolution attributes shared by run and bench.
func addConvFlags(cmd *cobra.Command) {
	cmd.Flags().String("strides", "1,1,1,1", "Strides in data format order")
	cmd.Flags().String("dilations", "1,1,1,1", "Dilations in data format order")
	cmd.Flags().String("padding", "SAME", "Padding policy: SAME, VALID or EXPLICIT")
	cmd.Flags().String("explicit-paddings", "", "Eight paddings in data format order when --padding=EXPLICIT")
	cmd.Flags().String("data-format", "NHWC", "Activation layout: NHWC or NCHW")
}

func attrsFromFlags(cmd *cobra.Command) (ops.Attrs, error) {
	var attrs ops.Attrs
	var err error

	for _, f := range []struct {
		name string
		dst  *[]int
	}{
		{"strides", &attrs.Strides},
		{"dilations", &attrs.Dilations},
		{"explicit-paddings", &attrs.ExplicitPaddings},
	} {
		s, _ := cmd.Flags().GetString(f.name)
		if *f.dst, err = parseInts(s); err != nil {
			return attrs, fmt.Errorf("--%s: %w", f.name, err)
		}
	}

	padding, _ := cmd.Flags().GetString("padding")
	if attrs.Padding, err = ops.ParsePadding(strings.ToUpper(padding)); err != nil {
		return attrs, err
	}
	format, _ := cmd.Flags().GetString("data-format")
	if attrs.DataFormat, err = ops.ParseDataFormat(strings.ToUpper(format)); err != nil {
		return attrs, err
	}
	return attrs, nil
}

// parseInts parses a comma separated list such as "1,2,2,1".
func parseInts(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

func newTable(header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	if header != nil {
		table.SetHeader(header)
	}
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetNoWhiteSpace(true)
	table.SetTablePadding("    ")
	return table
}

func NewEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show environment configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			vars := envconfig.AsMap()
			values := envconfig.Values()
			keys := make([]string, 0, len(vars))
			for k := range vars {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			var data [][]string
			for _, k := range keys {
				data = append(data, []string{k, values[k], vars[k].Description})
			}
			table := newTable([]string{"NAME", "VALUE", "DESCRIPTION"})
			table.AppendBulk(data)
			table.Render()
			return nil
		},
	}
}

func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("convgrad version %s\n", version)
		},
	}
}
