package nn

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/kssrr/sl-spam-classification/pkg/config"
	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/logger"
	"github.com/kssrr/sl-spam-classification/pkg/optim"
)

// ErrDiverged is returned when a training or validation loss becomes NaN or infinite.
var ErrDiverged = errors.New("nn: loss diverged")

// TrainState is the position of the trainer in its schedule.
type TrainState int

const (
	Training TrainState = iota
	PlateauDetected
	EarlyStopped
	Completed
)

func (s TrainState) String() string {
	switch s {
	case Training:
		return "training"
	case PlateauDetected:
		return "plateau"
	case EarlyStopped:
		return "early_stopped"
	case Completed:
		return "completed"
	}
	return fmt.Sprintf("TrainState(%d)", int(s))
}

// EpochRecord is one row of the training history.
type EpochRecord struct {
	Epoch        int
	TrainLoss    float64
	ValLoss      float64
	ValAccuracy  float64
	LearningRate float64 // rate used during the epoch
	State        TrainState
}

// History is the per-epoch log of a training run.
type History struct {
	Epochs    []EpochRecord
	BestEpoch int // 1-based epoch whose parameters were restored
	BestLoss  float64
	Final     TrainState
}

// Trainer runs mini-batch training with a plateau learning-rate schedule and early stopping.
type Trainer struct {
	Net *Network
	Opt optim.Optimizer
	Cfg config.MLPConfig
	Rng *rand.Rand // shuffling and dropout
}

// NewTrainer wires a fresh network and optimizer (Adam unless cfg asks for "sgd") for
// inputs of the given width. Weight initialization and all later randomness come from seed.
func NewTrainer(inputWidth int, cfg config.MLPConfig, seed int64) *Trainer {
	rng := rand.New(rand.NewSource(seed))
	var opt optim.Optimizer = optim.NewAdam(cfg.LearningRate)
	if cfg.Optimizer == "sgd" {
		opt = optim.NewSGD(cfg.LearningRate)
	}
	return &Trainer{
		Net: NewNetwork(inputWidth, cfg.Hidden, cfg.Dropout, rng),
		Opt: opt,
		Cfg: cfg,
		Rng: rng,
	}
}

// Fit trains on train and monitors val. An epoch improves when its validation loss is
// below the best so far by more than MinDelta. After PlateauPatience epochs without
// improvement the learning rate is multiplied by PlateauFactor (not below MinLearningRate)
// and the plateau counter restarts; after EarlyStopPatience epochs training stops. On any
// normal exit the parameters of the best epoch are restored.
func (t *Trainer) Fit(ctx context.Context, train, val *data.Dataset) (*History, error) {
	if train.Len() == 0 || val.Len() == 0 {
		return nil, fmt.Errorf("nn: training and validation sets must be non-empty: %w", data.ErrEmpty)
	}
	log := logger.Named("mlp")
	cfg := t.Cfg
	start := time.Now()

	hist := &History{BestLoss: math.Inf(1)}
	var best []float64
	sinceImprove, sincePlateau := 0, 0

	for epoch := 1; epoch <= cfg.MaxEpochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return hist, err
		}

		lr := t.Opt.LR()
		order := t.Rng.Perm(train.Len())
		sum := 0.0
		for _, b := range data.MiniBatches(train.X, train.Y, order, cfg.BatchSize) {
			loss, err := t.Net.TrainBatch(b.X, b.Y, cfg.L2, t.Rng)
			if err != nil {
				return hist, err
			}
			if math.IsNaN(loss) || math.IsInf(loss, 0) {
				return hist, fmt.Errorf("%w: training loss %v at epoch %d", ErrDiverged, loss, epoch)
			}
			t.Opt.Step(t.Net.Params(), t.Net.Grads())
			sum += loss * float64(len(b.Y))
		}
		trainLoss := sum / float64(train.Len())

		valLoss, valAcc, err := t.Net.Evaluate(val.X, val.Y, cfg.L2)
		if err != nil {
			return hist, err
		}
		if math.IsNaN(valLoss) || math.IsInf(valLoss, 0) {
			return hist, fmt.Errorf("%w: validation loss %v at epoch %d", ErrDiverged, valLoss, epoch)
		}

		rec := EpochRecord{
			Epoch:        epoch,
			TrainLoss:    trainLoss,
			ValLoss:      valLoss,
			ValAccuracy:  valAcc,
			LearningRate: lr,
			State:        Training,
		}

		if valLoss < hist.BestLoss-cfg.MinDelta {
			hist.BestLoss = valLoss
			hist.BestEpoch = epoch
			best = t.Net.Snapshot()
			sinceImprove, sincePlateau = 0, 0
		} else {
			sinceImprove++
			sincePlateau++
		}

		if sinceImprove >= cfg.EarlyStopPatience {
			rec.State = EarlyStopped
			hist.Epochs = append(hist.Epochs, rec)
			hist.Final = EarlyStopped
			t.Net.Restore(best)
			log.Info("early stopping",
				zap.Int("epoch", epoch),
				zap.Int("best_epoch", hist.BestEpoch),
				zap.Float64("best_val_loss", hist.BestLoss),
				zap.Duration("elapsed", time.Since(start)))
			return hist, nil
		}
		if sincePlateau >= cfg.PlateauPatience {
			next := math.Max(lr*cfg.PlateauFactor, cfg.MinLearningRate)
			t.Opt.SetLearningRate(next)
			sincePlateau = 0
			rec.State = PlateauDetected
			log.Debug("reducing learning rate", zap.Int("epoch", epoch), zap.Float64("lr", next))
		}

		hist.Epochs = append(hist.Epochs, rec)
		log.Debug("epoch",
			zap.Int("epoch", epoch),
			zap.Float64("train_loss", trainLoss),
			zap.Float64("val_loss", valLoss),
			zap.Float64("val_accuracy", valAcc))
	}

	hist.Final = Completed
	if best != nil {
		t.Net.Restore(best)
	}
	log.Info("training completed",
		zap.Int("epochs", len(hist.Epochs)),
		zap.Int("best_epoch", hist.BestEpoch),
		zap.Float64("best_val_loss", hist.BestLoss),
		zap.Duration("elapsed", time.Since(start)))
	return hist, nil
}
