package network

import (
	"math"

	"github.com/gomlx/gomlx/pkg/core/graph"
	"gonum.org/v1/gonum/floats"

	"github.com/cartridge/landlord/internal/cards"
)

// Loss returns the mean squared error of the predictions against targets
// without touching parameters.
func (n *Network) Loss(states []cards.State, actions []cards.OneHot, targets []float64) float64 {
	pred := n.Predict(states, actions)
	sum := 0.0
	for j, y := range pred {
		d := y - targets[j]
		sum += d * d
	}
	return sum / float64(len(pred))
}

func meanSquaredError(pred, targets *graph.Node) *graph.Node {
	return graph.ReduceAllMean(graph.Square(graph.Sub(pred, targets)))
}

// squaredNorm sums the squares of every gradient into one scalar.
func squaredNorm(grads []*graph.Node) *graph.Node {
	total := graph.ReduceAllSum(graph.Square(grads[0]))
	for _, g := range grads[1:] {
		total = graph.Add(total, graph.ReduceAllSum(graph.Square(g)))
	}
	return total
}

// Finite reports whether every value in s is neither NaN nor infinite.
func Finite(s []float64) bool {
	if floats.HasNaN(s) {
		return false
	}
	for _, x := range s {
		if math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
