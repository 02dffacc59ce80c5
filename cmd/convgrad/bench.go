package main

import (
	"fmt"
	"time"

	"github.com/born-ml/convgrad/ops"
	"github.com/born-ml/convgrad/tensor"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func NewBenchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Replay gradient calls across shapes and goroutines",
		Args:  cobra.NoArgs,
		RunE:  benchHandler,
	}

	cmd.Flags().Int("batch", 1, "Batch size")
	cmd.Flags().Int("size", 16, "Spatial height and width")
	cmd.Flags().Int("kernel", 3, "Filter height and width")
	cmd.Flags().String("channels", "1,8,16", "Channel counts; each is one distinct shape")
	cmd.Flags().Int("iterations", 20, "Calls per goroutine")
	cmd.Flags().Int("goroutines", 4, "Concurrent callers")
	addConvFlags(cmd)
	return cmd
}

type benchCase struct {
	sizes, filter, grad ops.Input
}

func benchHandler(cmd *cobra.Command, args []string) error {
	attrs, err := attrsFromFlags(cmd)
	if err != nil {
		return err
	}
	batch, _ := cmd.Flags().GetInt("batch")
	size, _ := cmd.Flags().GetInt("size")
	kernel, _ := cmd.Flags().GetInt("kernel")
	iterations, _ := cmd.Flags().GetInt("iterations")
	goroutines, _ := cmd.Flags().GetInt("goroutines")
	s, _ := cmd.Flags().GetString("channels")
	channels, err := parseInts(s)
	if err != nil {
		return fmt.Errorf("--channels: %w", err)
	}

	reg := ops.NewRegistry[float32]()
	op, err := ops.NewConv2DBackpropInput(attrs, reg)
	if err != nil {
		return err
	}

	var cases []benchCase
	for _, c := range channels {
		input := tensor.Shape{batch, size, size, c}
		if attrs.DataFormat == ops.NCHW {
			input = tensor.Shape{batch, c, size, size}
		}
		bc, err := newBenchCase(attrs, input, tensor.Shape{kernel, kernel, c, c})
		if err != nil {
			return err
		}
		cases = append(cases, bc)
	}
	if len(cases) == 0 {
		return fmt.Errorf("--channels: no shapes given")
	}

	start := time.Now()
	g, ctx := errgroup.WithContext(cmd.Context())
	for i := 0; i < goroutines; i++ {
		g.Go(func() error {
			for j := 0; j < iterations; j++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				bc := cases[(i+j)%len(cases)]
				if _, err := op.Compute(bc.sizes, bc.filter, bc.grad); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	calls := goroutines * iterations
	stats := reg.Stats()
	table := newTable([]string{"PLANS", "CALLS", "HITS", "MISSES", "BUILDS", "FAILURES", "ELAPSED", "PER CALL"})
	table.Append([]string{
		fmt.Sprint(reg.Len()),
		fmt.Sprint(calls),
		fmt.Sprint(stats.Hits),
		fmt.Sprint(stats.Misses),
		fmt.Sprint(stats.Builds),
		fmt.Sprint(stats.Failures),
		elapsed.Round(time.Microsecond).String(),
		perCall(elapsed, calls).String(),
	})
	table.Render()
	fmt.Println()

	var data [][]string
	for _, k := range reg.Keys() {
		data = append(data, []string{k})
	}
	keys := newTable([]string{"KEY"})
	keys.AppendBulk(data)
	keys.Render()
	return nil
}

func newBenchCase(attrs ops.Attrs, input, filter tensor.Shape) (benchCase, error) {
	grad, err := ops.OutBackpropShape(attrs, input, filter)
	if err != nil {
		return benchCase{}, err
	}
	sizes := make([]int32, len(input))
	for i, d := range input {
		sizes[i] = int32(d)
	}

	sizesT, err := tensor.FromSlice(sizes, tensor.Shape{len(sizes)})
	if err != nil {
		return benchCase{}, err
	}
	filterT, err := tensor.Full(filter, float32(0.5))
	if err != nil {
		return benchCase{}, err
	}
	gradT, err := tensor.Full(grad, float32(1))
	if err != nil {
		return benchCase{}, err
	}
	return benchCase{
		sizes:  ops.Canonical(sizesT),
		filter: ops.Canonical(filterT),
		grad:   ops.Canonical(gradT),
	}, nil
}

func perCall(d time.Duration, calls int) time.Duration {
	if calls == 0 {
		return 0
	}
	return (d / time.Duration(calls)).Round(time.Microsecond)
}
