// Command vmaprun vmaps one built-in operator over random data and reports the result.
//
//	vmaprun -op=matmul -batch=16 -nested=4 -v=2
package main

import (
	"flag"
	"fmt"
	"maps"
	"math/rand"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/born-ml/vmap/dispatch"
	"github.com/born-ml/vmap/internal/serialization"
	"github.com/born-ml/vmap/tensor"
	"github.com/born-ml/vmap/vmap"
)

// examples maps each runnable operator to the shape of its unbatched second
// operand; nil for unary operators. The first operand is always (3, 4) per example.
var examples = map[string]tensor.Shape{
	"add":     {4},
	"add_":    {4},
	"mul":     {4},
	"matmul":  {4, 2},
	"relu":    nil,
	"sum":     nil,
	"aminmax": nil,
}

var (
	flagOp     = flag.String("op", "add", "Operator to vmap, one of: "+strings.Join(slices.Sorted(maps.Keys(examples)), ", ")+".")
	flagBatch  = flag.Int("batch", 8, "Size of the vmapped dimension.")
	flagNested = flag.Int("nested", 0, "If > 0, wrap the call in a second vmap over a dimension of this size.")
	flagSeed   = flag.Int64("seed", 42, "Random seed for the generated inputs.")
	flagSave   = flag.String("save", "", "If set, write inputs and outputs to this SafeTensors file.")

	flagFallback = flag.Bool("fallback", true,
		"Run operators without a batching rule once per example. Overrides $"+vmap.EnvFallback+".")
	flagWarn = flag.Bool("warn", true,
		"Warn the first time an operator takes the per-example fallback. Overrides $"+vmap.EnvFallbackWarn+".")
)

func main() {
	klog.InitFlags(nil)
	flag.Parse()

	cfg := must.M1(vmap.ConfigFromEnv())
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "fallback":
			cfg.FallbackEnabled = *flagFallback
		case "warn":
			cfg.WarnOnFallback = *flagWarn
		}
	})
	cfg.Apply()

	var r *report
	err := exceptions.TryCatch[error](func() {
		r = must.M1(run(*flagOp, *flagBatch, *flagNested, *flagSeed))
		if *flagSave != "" {
			must.M(r.save(*flagSave))
			klog.V(1).Infof("saved inputs and outputs to %q", *flagSave)
		}
	})
	if err != nil {
		klog.Fatalf("Failed with error: %+v", err)
	}
	fmt.Println(r.render())
}

type report struct {
	op      string
	levels  int
	inputs  []*tensor.RawTensor
	outputs []tensor.Tensor
	elapsed time.Duration
}

// run builds the inputs for opName, vmaps the operator over them (twice when
// nested > 0) and collects the outputs.
func run(opName string, batch, nested int, seed int64) (*report, error) {
	otherShape, found := examples[opName]
	if !found {
		return nil, errors.Errorf("unknown operator %q, choose one of %v", opName, slices.Sorted(maps.Keys(examples)))
	}
	if batch < 0 || nested < 0 {
		return nil, errors.Errorf("-batch and -nested must be non-negative, got %d and %d", batch, nested)
	}
	d, err := vmap.New()
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(seed))
	xShape := tensor.Shape{batch, 3, 4}
	if nested > 0 {
		xShape = append(tensor.Shape{nested}, xShape...)
	}
	x, err := tensor.Rand[float32](xShape, rng)
	if err != nil {
		return nil, err
	}
	r := &report{op: opName, levels: 1, inputs: []*tensor.RawTensor{x}}
	inDims := []int{0}
	if otherShape != nil {
		y, err := tensor.Rand[float32](otherShape, rng)
		if err != nil {
			return nil, err
		}
		r.inputs = append(r.inputs, y)
		inDims = append(inDims, vmap.NotBatched)
	}
	args := make([]tensor.Tensor, len(r.inputs))
	for i, input := range r.inputs {
		// In-place operators write into x, so keep a copy of what went in.
		args[i], r.inputs[i] = input, input.Clone()
	}
	fn := vmap.Vmap(d, callOp(d, opName), inDims, nil)
	if nested > 0 {
		fn = vmap.Vmap(d, fn, inDims, nil)
		r.levels++
	}
	start := time.Now()
	r.outputs, err = fn(args...)
	r.elapsed = time.Since(start)
	if err != nil {
		return nil, errors.WithMessagef(err, "vmap(%s)", opName)
	}
	return r, nil
}

// callOp adapts a dispatcher operator to a vmap.Func.
func callOp(d *dispatch.Dispatcher, opName string) vmap.Func {
	return func(args ...tensor.Tensor) ([]tensor.Tensor, error) {
		values := make([]dispatch.Value, len(args))
		for i, arg := range args {
			values[i] = dispatch.TensorValue(arg)
		}
		outs, err := d.Call(opName, values...)
		if err != nil {
			return nil, err
		}
		results := make([]tensor.Tensor, len(outs))
		for i, out := range outs {
			results[i] = out.ToTensor()
		}
		return results, nil
	}
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
	keyStyle   = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1).Align(lipgloss.Right)
	valueStyle = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1).Align(lipgloss.Left)
)

func (r *report) render() string {
	table := lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if col == 0 {
				return keyStyle
			}
			return valueStyle
		})
	table.Row("operator", r.op)
	table.Row("vmap levels", strconv.Itoa(r.levels))
	for i, input := range r.inputs {
		table.Row(fmt.Sprintf("input #%d", i), fmt.Sprintf("%s%s", input.DType(), input.Shape()))
	}
	var previews []string
	for i, out := range r.outputs {
		raw, ok := out.(*tensor.RawTensor)
		if !ok || raw == nil {
			table.Row(fmt.Sprintf("output #%d", i), "undefined")
			continue
		}
		table.Row(fmt.Sprintf("output #%d", i), fmt.Sprintf("%s%s, %s", raw.DType(), raw.Shape(),
			humanize.Bytes(uint64(raw.NumElements()*raw.DType().Size()))))
		previews = append(previews, raw.String())
	}
	table.Row("elapsed", r.elapsed.String())
	return titleStyle.Render("vmap "+r.op) + "\n" + table.Render() + "\n" + strings.Join(previews, "\n")
}

// save writes the inputs and defined outputs as input_<i> and output_<i>.
func (r *report) save(path string) error {
	tensors := make(map[string]*tensor.RawTensor, len(r.inputs)+len(r.outputs))
	for i, input := range r.inputs {
		tensors[fmt.Sprintf("input_%d", i)] = input
	}
	for i, out := range r.outputs {
		if raw, ok := out.(*tensor.RawTensor); ok && raw != nil {
			tensors[fmt.Sprintf("output_%d", i)] = raw
		}
	}
	return serialization.WriteFile(path, tensors, map[string]string{
		"op":     r.op,
		"levels": strconv.Itoa(r.levels),
	})
}
