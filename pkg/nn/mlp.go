// Package nn implements the feed-forward spam network and its training schedule.
package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/kssrr/sl-spam-classification/pkg/core"
)

// ErrShape is returned when inputs do not match the network's input width.
var ErrShape = errors.New("nn: input width does not match the network")

// dense is one fully connected layer. W and B are views into Network.params.
type dense struct {
	W *core.Matrix // in x out
	B []float64

	gW *core.Matrix // views into Network.grads
	gB []float64
}

// Network is a ReLU multilayer perceptron with inverted dropout after every hidden
// layer and a single sigmoid output unit. All parameters live in one flat slice so
// an optimizer can update them in a single step.
type Network struct {
	Sizes   []int // input width, hidden widths..., 1
	Dropout float64

	params []float64
	grads  []float64
	layers []dense
}

// NewNetwork builds a network with He-uniform weights drawn from rng and zero biases.
func NewNetwork(input int, hidden []int, dropout float64, rng *rand.Rand) *Network {
	sizes := append(append([]int{input}, hidden...), 1)

	total := 0
	for l := 0; l+1 < len(sizes); l++ {
		total += sizes[l]*sizes[l+1] + sizes[l+1]
	}
	net := &Network{
		Sizes:   sizes,
		Dropout: dropout,
		params:  make([]float64, total),
		grads:   make([]float64, total),
	}

	off := 0
	for l := 0; l+1 < len(sizes); l++ {
		in, out := sizes[l], sizes[l+1]
		nw := in * out
		layer := dense{
			W:  &core.Matrix{R: in, C: out, Data: net.params[off : off+nw]},
			gW: &core.Matrix{R: in, C: out, Data: net.grads[off : off+nw]},
		}
		limit := math.Sqrt(6 / float64(in))
		for i := range layer.W.Data {
			layer.W.Data[i] = (rng.Float64()*2 - 1) * limit
		}
		off += nw
		layer.B = net.params[off : off+out]
		layer.gB = net.grads[off : off+out]
		off += out
		net.layers = append(net.layers, layer)
	}
	return net
}

// Params exposes the flat parameter vector (weights and biases of every layer).
func (n *Network) Params() []float64 { return n.params }

// Grads exposes the gradient buffer filled by the last Backward.
func (n *Network) Grads() []float64 { return n.grads }

// Snapshot copies the current parameters.
func (n *Network) Snapshot() []float64 { return append([]float64(nil), n.params...) }

// Restore overwrites the parameters with a snapshot.
func (n *Network) Restore(snap []float64) { copy(n.params, snap) }

// WeightPenalty is l2 times the sum of squared weights; biases are not penalized.
func (n *Network) WeightPenalty(l2 float64) float64 {
	ws := make([][]float64, len(n.layers))
	for i, layer := range n.layers {
		ws[i] = layer.W.Data
	}
	return L2Penalty(l2, ws...)
}

// pass holds the activations of one forward pass for backpropagation.
type pass struct {
	acts  []*core.Matrix // input of layer l (acts[0] = X)
	pre   []*core.Matrix // pre-activation of hidden layer l
	masks []*core.Matrix // scaled dropout masks, nil outside training
	proba []float64
}

func (n *Network) forward(X *core.Matrix, train bool, rng *rand.Rand) (*pass, error) {
	if X.C != n.Sizes[0] {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrShape, X.C, n.Sizes[0])
	}
	p := &pass{acts: []*core.Matrix{X}}
	a := X
	last := len(n.layers) - 1
	for l, layer := range n.layers {
		z, err := core.MatMul(a, layer.W)
		if err != nil {
			return nil, err
		}
		if err := z.AddRowVector(layer.B); err != nil {
			return nil, err
		}
		if l == last {
			z.Apply(Sigmoid)
			p.proba = z.Data
			break
		}

		p.pre = append(p.pre, z.Clone())
		z.Apply(ReLU)
		var mask *core.Matrix
		if train && n.Dropout > 0 {
			keep := 1 - n.Dropout
			mask = core.NewMatrix(z.R, z.C)
			for i := range mask.Data {
				if rng.Float64() < keep {
					mask.Data[i] = 1 / keep
				}
			}
			if err := z.MulElem(mask); err != nil {
				return nil, err
			}
		}
		p.masks = append(p.masks, mask)
		p.acts = append(p.acts, z)
		a = z
	}
	return p, nil
}

// backward fills n.grads from the gradient of the loss w.r.t. the output logits.
func (n *Network) backward(p *pass, dLogits []float64, l2 float64) error {
	dz := &core.Matrix{R: len(dLogits), C: 1, Data: dLogits}
	for l := len(n.layers) - 1; l >= 0; l-- {
		layer := n.layers[l]

		gW, err := core.MatMul(p.acts[l].Transpose(), dz)
		if err != nil {
			return err
		}
		for i, w := range layer.W.Data {
			layer.gW.Data[i] = gW.Data[i] + 2*l2*w
		}
		copy(layer.gB, dz.SumRows())

		if l == 0 {
			break
		}
		da, err := core.MatMul(dz, layer.W.Transpose())
		if err != nil {
			return err
		}
		if mask := p.masks[l-1]; mask != nil {
			if err := da.MulElem(mask); err != nil {
				return err
			}
		}
		pre := p.pre[l-1]
		for i := range da.Data {
			da.Data[i] *= ReLUPrime(pre.Data[i])
		}
		dz = da
	}
	return nil
}

// TrainBatch runs forward and backward passes with dropout on one mini-batch and
// returns the regularized loss. The gradient is left in Grads for the optimizer.
func (n *Network) TrainBatch(X [][]float64, y []int, l2 float64, rng *rand.Rand) (float64, error) {
	p, err := n.forward(core.FromSlice(X), true, rng)
	if err != nil {
		return 0, err
	}
	target := labelsToFloat(y)
	loss := BCE(target, p.proba)
	if err := n.backward(p, BCEWithLogitsGrad(target, p.proba), l2); err != nil {
		return 0, err
	}
	return loss + n.WeightPenalty(l2), nil
}

// Evaluate returns the regularized loss and the accuracy at threshold 0.5 without dropout.
func (n *Network) Evaluate(X [][]float64, y []int, l2 float64) (loss, accuracy float64, err error) {
	p, err := n.forward(core.FromSlice(X), false, nil)
	if err != nil {
		return 0, 0, err
	}
	bce := BCE(labelsToFloat(y), p.proba)
	correct := 0
	for i, prob := range p.proba {
		if (prob >= 0.5) == (y[i] == 1) {
			correct++
		}
	}
	return bce + n.WeightPenalty(l2), float64(correct) / float64(len(y)), nil
}

// PredictProba returns the spam probability of each row. Rows of the wrong width yield NaN.
func (n *Network) PredictProba(X [][]float64) []float64 {
	if len(X) == 0 {
		return nil
	}
	p, err := n.forward(core.FromSlice(X), false, nil)
	if err != nil {
		out := make([]float64, len(X))
		for i := range out {
			out[i] = math.NaN()
		}
		return out
	}
	return p.proba
}

// Predict thresholds PredictProba at 0.5.
func (n *Network) Predict(X [][]float64) []int {
	proba := n.PredictProba(X)
	out := make([]int, len(proba))
	for i, p := range proba {
		if p >= 0.5 {
			out[i] = 1
		}
	}
	return out
}

func labelsToFloat(y []int) []float64 {
	out := make([]float64, len(y))
	for i, v := range y {
		out[i] = float64(v)
	}
	return out
}
