package network

import (
	"errors"
	"fmt"

	"github.com/gomlx/gomlx/pkg/core/dtypes"
	"github.com/gomlx/gomlx/pkg/core/graph"
	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/gomlx/gomlx/pkg/ml/context"
	"github.com/gomlx/gomlx/pkg/ml/train/optimizers"

	"github.com/cartridge/landlord/internal/cards"
)

// gradientOptimizer applies gradients the caller has already built, so the
// step can report them alongside the loss.
type gradientOptimizer interface {
	optimizers.Interface
	UpdateGraphWithGradients(ctx *context.Context, grads []*graph.Node, lossDType dtypes.DType)
}

// Adam trains a network with the GoMLX Adam optimizer. Its moments live in
// the network's context next to the model variables.
type Adam struct {
	net  *Network
	opt  gradientOptimizer
	exec *context.Exec
}

// StepResult is the outcome of one optimizer step.
type StepResult struct {
	Loss float64
	// GradNorm is the squared L2 norm of the gradient that was applied.
	GradNorm float64
}

// NewAdam creates an optimizer for n.
func NewAdam(n *Network, lr float64) *Adam {
	opt, ok := optimizers.Adam().LearningRate(lr).Betas(0.9, 0.999).Epsilon(1e-8).Done().(gradientOptimizer)
	if !ok {
		panic("network: adam optimizer does not accept precomputed gradients")
	}
	a := &Adam{net: n, opt: opt}
	a.exec = context.MustNewExec(backend(), n.ctx.Checked(false), a.stepGraph)
	return a
}

func (a *Adam) stepGraph(ctx *context.Context, x, y *graph.Node) []*graph.Node {
	loss := meanSquaredError(a.net.forward(ctx, x), y)
	grads := ctx.BuildTrainableVariablesGradientsGraph(loss)
	a.opt.UpdateGraphWithGradients(ctx, grads, loss.DType())
	return []*graph.Node{loss, squaredNorm(grads)}
}

// Step fits the network one step towards targets on the mean squared error.
// The returned loss is measured before the update.
func (a *Adam) Step(states []cards.State, actions []cards.OneHot, targets []float64) (StepResult, error) {
	rows := len(states)
	if rows == 0 || len(actions) != rows || len(targets) != rows {
		return StepResult{}, errors.New("network: batch length mismatch")
	}
	y := tensors.FromFlatDataAndDimensions(append([]float64(nil), targets...), rows)
	out, err := a.exec.Exec(encode(states, actions, rows), y)
	if err != nil {
		return StepResult{}, fmt.Errorf("adam step: %w", err)
	}
	return StepResult{
		Loss:     tensors.MustCopyFlatData[float64](out[0])[0],
		GradNorm: tensors.MustCopyFlatData[float64](out[1])[0],
	}, nil
}
