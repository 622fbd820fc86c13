package data

// Batch represents a collection of data points.
type Batch struct {
	Index []int // positions of the rows in the source data
	X     [][]float64
	Y     []int
}

// MiniBatches walks order and cuts it into batches of batchSize rows of X/y.
// The last batch may be smaller.
func MiniBatches(X [][]float64, y []int, order []int, batchSize int) []Batch {
	if batchSize < 1 {
		batchSize = len(order)
	}
	batches := make([]Batch, 0, (len(order)+batchSize-1)/max(batchSize, 1))

	var cur Batch
	for _, i := range order {
		cur.Index = append(cur.Index, i)
		cur.X = append(cur.X, X[i])
		cur.Y = append(cur.Y, y[i])
		if len(cur.Y) == batchSize {
			batches = append(batches, cur)
			cur = Batch{}
		}
	}
	// flush the remainder
	if len(cur.Y) > 0 {
		batches = append(batches, cur)
	}
	return batches
}
