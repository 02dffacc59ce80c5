package main

import (
	"fmt"
	"strconv"

	"github.com/born-ml/convgrad/ops"
	"github.com/born-ml/convgrad/tensor"
	"github.com/spf13/cobra"
)

func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute one input gradient",
		Long: `Compute the input gradient of a convolution whose filter and output
gradient are filled with constant values, and print it in canonical layout.`,
		Args: cobra.NoArgs,
		RunE: runHandler,
	}

	cmd.Flags().String("input", "1,4,4,1", "Input shape in data format order")
	cmd.Flags().String("filter", "3,3,1,1", "Filter shape (HWIO)")
	cmd.Flags().Float64("filter-value", 1, "Value of every filter element")
	cmd.Flags().Float64("grad-value", 1, "Value of every output gradient element")
	cmd.Flags().String("dtype", "float32", "Element type: float32 or float64")
	addConvFlags(cmd)
	return cmd
}

func runHandler(cmd *cobra.Command, args []string) error {
	attrs, err := attrsFromFlags(cmd)
	if err != nil {
		return err
	}
	input, filter, err := shapesFromFlags(cmd)
	if err != nil {
		return err
	}
	fv, _ := cmd.Flags().GetFloat64("filter-value")
	gv, _ := cmd.Flags().GetFloat64("grad-value")

	dtype, _ := cmd.Flags().GetString("dtype")
	switch dtype {
	case "float32":
		return runConv(attrs, input, filter, float32(fv), float32(gv))
	case "float64":
		return runConv(attrs, input, filter, fv, gv)
	default:
		return fmt.Errorf("unsupported dtype %q", dtype)
	}
}

func shapesFromFlags(cmd *cobra.Command) (input, filter tensor.Shape, err error) {
	s, _ := cmd.Flags().GetString("input")
	if input, err = parseInts(s); err != nil {
		return nil, nil, fmt.Errorf("--input: %w", err)
	}
	s, _ = cmd.Flags().GetString("filter")
	if filter, err = parseInts(s); err != nil {
		return nil, nil, fmt.Errorf("--filter: %w", err)
	}
	return input, filter, nil
}

func runConv[T float32 | float64](attrs ops.Attrs, input, filter tensor.Shape, fv, gv T) error {
	outShape, err := ops.OutBackpropShape(attrs, input, filter)
	if err != nil {
		return err
	}

	reg := ops.NewRegistry[T]()
	op, err := ops.NewConv2DBackpropInput(attrs, reg)
	if err != nil {
		return err
	}

	sizes := make([]int64, len(input))
	for i, d := range input {
		sizes[i] = int64(d)
	}
	sizesT, err := tensor.FromSlice(sizes, tensor.Shape{len(sizes)})
	if err != nil {
		return err
	}
	filterT, err := tensor.Full(filter, fv)
	if err != nil {
		return err
	}
	gradT, err := tensor.Full(outShape, gv)
	if err != nil {
		return err
	}

	out, err := op.Compute(ops.Canonical(sizesT), ops.Canonical(filterT), ops.Canonical(gradT))
	if err != nil {
		return err
	}
	if out.Layout.Native {
		fmt.Printf("native layout: %s\n", out.Layout.Desc)
	}
	grad, err := ops.ToCanonical(reg, out)
	if err != nil {
		return err
	}

	printGradient(tensor.Data[T](grad), input, attrs.DataFormat)
	return nil
}

// printGradient prints one table per (batch, channel) plane.
func printGradient[T float32 | float64](data []T, shape tensor.Shape, format ops.DataFormat) {
	var n, c, h, w int
	at := func(b, ch, y, x int) T {
		if format == ops.NCHW {
			return data[((b*c+ch)*h+y)*w+x]
		}
		return data[((b*h+y)*w+x)*c+ch]
	}
	if format == ops.NCHW {
		n, c, h, w = shape[0], shape[1], shape[2], shape[3]
	} else {
		n, h, w, c = shape[0], shape[1], shape[2], shape[3]
	}

	for b := 0; b < n; b++ {
		for ch := 0; ch < c; ch++ {
			fmt.Printf("batch %d, channel %d\n", b, ch)
			var rows [][]string
			for y := 0; y < h; y++ {
				row := make([]string, w)
				for x := 0; x < w; x++ {
					row[x] = strconv.FormatFloat(float64(at(b, ch, y, x)), 'g', -1, 64)
				}
				rows = append(rows, row)
			}
			table := newTable(nil)
			table.AppendBulk(rows)
			table.Render()
		}
	}
}
