package optim

// Optimizer updates a flat parameter vector from its gradient.
type Optimizer interface {
	Step(weights, grads []float64)
	LR() float64
	SetLearningRate(lr float64)
}

// SGD is plain stochastic gradient descent with a fixed learning rate.
type SGD struct{ LearningRate float64 }

func NewSGD(lr float64) *SGD { return &SGD{LearningRate: lr} }

func (o *SGD) Step(weights, grads []float64) { // in-place update using pointer receiver
	for i := range weights {
		weights[i] -= o.LearningRate * grads[i]
	}
}

func (o *SGD) LR() float64                { return o.LearningRate }
func (o *SGD) SetLearningRate(lr float64) { o.LearningRate = lr }
