package optim

import "math"

// Adam keeps per-parameter first and second moment estimates. The moment
// buffers are sized on the first Step; later steps must pass the same length.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64

	m, v []float64
	t    int
}

// NewAdam returns Adam with the usual β1=0.9, β2=0.999 and ε=1e-7.
func NewAdam(lr float64) *Adam {
	return &Adam{LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-7}
}

// Step applies one bias-corrected update in place.
func (o *Adam) Step(weights, grads []float64) {
	if len(o.m) != len(weights) {
		o.m = make([]float64, len(weights))
		o.v = make([]float64, len(weights))
		o.t = 0
	}
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for i, g := range grads {
		o.m[i] = o.Beta1*o.m[i] + (1-o.Beta1)*g
		o.v[i] = o.Beta2*o.v[i] + (1-o.Beta2)*g*g
		mHat := o.m[i] / c1
		vHat := o.v[i] / c2
		weights[i] -= o.LearningRate * mHat / (math.Sqrt(vHat) + o.Epsilon)
	}
}

// Steps is the number of updates applied so far.
func (o *Adam) Steps() int { return o.t }

func (o *Adam) LR() float64                { return o.LearningRate }
func (o *Adam) SetLearningRate(lr float64) { o.LearningRate = lr }
