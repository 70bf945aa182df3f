// Package network implements the state-action value function: four parallel
// convolutions spanning 1, 2, 3 and 4 consecutive ranks, a ReLU hidden layer
// and a tanh output unit. The model is a GoMLX graph executed on the pure Go
// backend, with every parameter held in a context variable.
package network

import (
	"fmt"
	"math"
	"math/bits"
	"math/rand"

	"github.com/gomlx/gomlx/backends"
	"github.com/gomlx/gomlx/backends/simplego"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/layers"
	"github.com/gomlx/gomlx/pkg/ml/layers/activations"

	"github.com/cartridge/landlord/internal/cards"
)

// Channels stacked per input: hand, taken, candidate action.
const Channels = 3

// inputChannels is the feature depth of one rank: every slot of every channel.
const inputChannels = Channels * cards.NumSlots

var widths = [...]int{1, 2, 3, 4}

// backend is shared by every network in the process.
var backend func() backends.Backend = simplego.GetBackend

// Config sizes the network.
type Config struct {
	Filters int `mapstructure:"filters"`
	Hidden  int `mapstructure:"hidden"`
}

// DefaultConfig matches the reference architecture.
func DefaultConfig() Config {
	return Config{Filters: 64, Hidden: 128}
}

type layout struct {
	positions [len(widths)]int
	features  int
	size      int
}

func newLayout(cfg Config) layout {
	var l layout
	for i, w := range widths {
		l.positions[i] = cards.NumRanks - w + 1
		l.features += cfg.Filters * l.positions[i]
		l.size += w*inputChannels*cfg.Filters + cfg.Filters
	}
	l.size += l.features*cfg.Hidden + cfg.Hidden
	l.size += cfg.Hidden + 1
	return l
}

// param describes one variable of the model in snapshot order.
type param struct {
	scope []string
	name  string
	dims  []int
	fanIn int
}

func (p param) size() int {
	n := 1
	for _, d := range p.dims {
		n *= d
	}
	return n
}

func (p param) in(ctx *context.Context) *context.Context {
	for _, s := range p.scope {
		ctx = ctx.In(s)
	}
	return ctx
}

// params lists the variables layers.Dense reads, under the scopes forward
// uses for them.
func params(cfg Config, lay layout) []param {
	var ps []param
	dense := func(scope string, in, out int) {
		path := []string{"model", scope, "dense"}
		ps = append(ps,
			param{scope: path, name: "weights", dims: []int{in, out}, fanIn: in},
			param{scope: path, name: "biases", dims: []int{out}, fanIn: in},
		)
	}
	for _, w := range widths {
		dense(convScope(w), w*inputChannels, cfg.Filters)
	}
	dense("hidden", lay.features, cfg.Hidden)
	dense("output", cfg.Hidden, 1)
	return ps
}

func convScope(w int) string { return fmt.Sprintf("conv%d", w) }

// Network is a value function whose parameters live in a GoMLX context.
// Scoring and training run as compiled graphs over that context.
type Network struct {
	cfg   Config
	lay   layout
	ctx   *context.Context
	vars  []*context.Variable
	score *context.Exec
}

// New builds a network with weights drawn uniformly from ±1/sqrt(fan_in).
func New(cfg Config, rng *rand.Rand) *Network {
	return build(cfg, func(p param, dst []float64) {
		bound := 1 / math.Sqrt(float64(p.fanIn))
		for i := range dst {
			dst[i] = (rng.Float64()*2 - 1) * bound
		}
	})
}

// build creates the model variables, filling each with init.
func build(cfg Config, init func(p param, dst []float64)) *Network {
	n := &Network{cfg: cfg, lay: newLayout(cfg), ctx: context.New()}
	for _, p := range params(cfg, n.lay) {
		data := make([]float64, p.size())
		init(p, data)
		v := p.in(n.ctx).VariableWithValue(p.name, tensors.FromFlatDataAndDimensions(data, p.dims...))
		n.vars = append(n.vars, v)
	}
	n.score = context.MustNewExec(backend(), n.ctx.Checked(false), n.forward)
	return n
}

// forward maps a [batch, ranks, inputChannels] tensor to [batch] values.
// Each convolution is a dense layer shared across every window of w ranks.
func (n *Network) forward(ctx *context.Context, x *graph.Node) *graph.Node {
	batch := x.Shape().Dimensions[0]
	model := ctx.In("model")
	feats := make([]*graph.Node, len(widths))
	for i, w := range widths {
		conv := layers.Dense(model.In(convScope(w)), windows(x, w), true, n.cfg.Filters)
		feats[i] = graph.Reshape(conv, batch, -1)
	}
	h := layers.Dense(model.In("hidden"), graph.Concatenate(feats, -1), true, n.cfg.Hidden)
	h = activations.Relu(h)
	out := graph.Tanh(layers.Dense(model.In("output"), h, true, 1))
	return graph.Reshape(out, batch)
}

// windows turns [batch, ranks, c] into [batch, ranks-w+1, w*c], one row per
// run of w consecutive ranks.
func windows(x *graph.Node, w int) *graph.Node {
	positions := cards.NumRanks - w + 1
	parts := make([]*graph.Node, w)
	for k := range parts {
		parts[k] = graph.SliceAxis(x, 1, graph.AxisRange(k, k+positions))
	}
	return graph.Concatenate(parts, -1)
}

func (n *Network) Config() Config { return n.cfg }

// NumParams returns the number of trainable scalars.
func (n *Network) NumParams() int { return n.lay.size }

// Clone returns an independent copy with identical parameters.
func (n *Network) Clone() *Network {
	return restore(n.cfg, n.flat())
}

func restore(cfg Config, flat []float64) *Network {
	off := 0
	return build(cfg, func(p param, dst []float64) {
		off += copy(dst, flat[off:])
	})
}

// CopyFrom overwrites every parameter with src's. Both networks must share a
// Config.
func (n *Network) CopyFrom(src *Network) {
	if n.cfg != src.cfg {
		panic("network: CopyFrom between different architectures")
	}
	n.setFlat(src.flat())
}

// Equal reports whether both networks hold bit-identical parameters.
func (n *Network) Equal(o *Network) bool {
	if n.cfg != o.cfg {
		return false
	}
	a, b := n.flat(), o.flat()
	for i := range a {
		if math.Float64bits(a[i]) != math.Float64bits(b[i]) {
			return false
		}
	}
	return true
}

// flat returns every parameter in snapshot order.
func (n *Network) flat() []float64 {
	out := make([]float64, 0, n.lay.size)
	for _, v := range n.vars {
		out = append(out, tensors.MustCopyFlatData[float64](v.MustValue())...)
	}
	return out
}

func (n *Network) setFlat(flat []float64) {
	off := 0
	for _, v := range n.vars {
		dims := v.Shape().Dimensions
		size := v.Shape().Size()
		data := append([]float64(nil), flat[off:off+size]...)
		if err := v.SetValue(tensors.FromFlatDataAndDimensions(data, dims...)); err != nil {
			panic(fmt.Sprintf("network: set %s: %v", v.ScopeAndName(), err))
		}
		off += size
	}
}

// Score values a single state-action pair.
func (n *Network) Score(state cards.State, action cards.OneHot) float64 {
	return n.ScoreBatch(state, []cards.OneHot{action})[0]
}

// ScoreBatch values every candidate action against one shared state.
func (n *Network) ScoreBatch(state cards.State, actions []cards.OneHot) []float64 {
	if len(actions) == 0 {
		return nil
	}
	states := make([]cards.State, len(actions))
	for i := range states {
		states[i] = state
	}
	return n.Predict(states, actions)
}

// Predict values each (states[j], actions[j]) pair.
func (n *Network) Predict(states []cards.State, actions []cards.OneHot) []float64 {
	if len(states) == 0 {
		return nil
	}
	if len(actions) != len(states) {
		panic("network: batch length mismatch")
	}
	out, err := n.score.Exec1(encode(states, actions, bucket(len(states))))
	if err != nil {
		panic(fmt.Sprintf("network: score: %v", err))
	}
	return tensors.MustCopyFlatData[float64](out)[:len(states)]
}

// bucket rounds a batch up to a power of two so the number of compiled
// graph shapes stays small. Padded rows are zero and ignored.
func bucket(rows int) int {
	if rows <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(rows-1))
}

// encode lays the pairs out as [rows, ranks, inputChannels]; rows beyond
// len(states) stay zero.
func encode(states []cards.State, actions []cards.OneHot, rows int) *tensors.Tensor {
	const stride = cards.NumRanks * inputChannels
	data := make([]float64, rows*stride)
	for j := range states {
		row := data[j*stride : (j+1)*stride]
		put(row, &states[j].Hand, 0)
		put(row, &states[j].Taken, 1)
		put(row, &actions[j], 2)
	}
	return tensors.FromFlatDataAndDimensions(data, rows, cards.NumRanks, inputChannels)
}

func put(row []float64, plane *cards.OneHot, c int) {
	for r := range plane {
		copy(row[r*inputChannels+c*cards.NumSlots:], plane[r][:])
	}
}
