// Package pipeline composes the experiment stages into the full report run and the
// exploration-only run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kssrr/sl-spam-classification/pkg/config"
	"github.com/kssrr/sl-spam-classification/pkg/data"
	"github.com/kssrr/sl-spam-classification/pkg/dataprep"
	"github.com/kssrr/sl-spam-classification/pkg/evaluate"
	"github.com/kssrr/sl-spam-classification/pkg/explore"
	"github.com/kssrr/sl-spam-classification/pkg/logger"
	"github.com/kssrr/sl-spam-classification/pkg/model"
	"github.com/kssrr/sl-spam-classification/pkg/nn"
	"github.com/kssrr/sl-spam-classification/pkg/report"
	"github.com/kssrr/sl-spam-classification/pkg/split"
	"github.com/kssrr/sl-spam-classification/pkg/store"
	"github.com/kssrr/sl-spam-classification/pkg/tuning"
)

// FamilyMLP names the neural network in reports.
const FamilyMLP = "mlp"

// Offsets added to the configured seed so every stage draws from its own stream.
const (
	seedSplit = iota
	seedExplore
	seedPreprocess
	seedSearch
	seedRefit
	seedMLP
	seedBootstrap
)

// State is what the stages of one run share.
type State struct {
	Config *config.Config
	Bundle *report.Bundle
	Files  []string // artifacts written by the report stage

	Dataset   *data.Dataset
	Partition *split.Partition

	// Preprocessed subsets. Train is oversampled when SMOTE is enabled.
	Train, Validation, Test *data.Dataset

	Models []evaluate.Entry

	store *store.Client
}

func (s *State) seed(offset int64) int64 { return s.Config.Seed + offset }

func (s *State) rng(offset int64) *rand.Rand { return rand.New(rand.NewSource(s.seed(offset))) }

// Stage is one step of a run.
type Stage struct {
	Name string
	Run  func(ctx context.Context, st *State) error
}

// Pipeline chains stages.
type Pipeline struct {
	steps []Stage
}

func NewPipeline(steps ...Stage) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs every stage in order, stopping at the first error or when ctx is done.
func (p *Pipeline) Execute(ctx context.Context, st *State) error {
	log := logger.Named("pipeline")
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		start := time.Now()
		log.Debug("stage started", zap.String("stage", step.Name))
		if err := step.Run(ctx, st); err != nil {
			return fmt.Errorf("pipeline: %s: %w", step.Name, err)
		}
		log.Info("stage finished", zap.String("stage", step.Name), zap.Duration("took", time.Since(start)))
	}
	return nil
}

// Full returns the stages of a complete report run.
func Full() *Pipeline {
	return NewPipeline(
		Stage{"load", loadStage},
		Stage{"explore", exploreStage},
		Stage{"split", splitStage},
		Stage{"preprocess", preprocessStage},
		Stage{"search", searchStage},
		Stage{"network", networkStage},
		Stage{"evaluate", evaluateStage},
		Stage{"compare", compareStage},
		Stage{"report", reportStage},
		Stage{"persist", persistStage},
	)
}

// ExploreOnly returns the stages that load the data and write the exploratory report.
func ExploreOnly() *Pipeline {
	return NewPipeline(
		Stage{"load", loadStage},
		Stage{"explore", exploreStage},
		Stage{"report", reportStage},
	)
}

// Run executes the full report run for cfg. When a store path is configured the run is
// recorded there and marked failed if any stage errors.
func Run(ctx context.Context, cfg *config.Config) (*State, error) {
	return execute(ctx, cfg, Full())
}

// Explore executes the exploration-only run for cfg.
func Explore(ctx context.Context, cfg *config.Config) (*State, error) {
	return execute(ctx, cfg, ExploreOnly())
}

func execute(ctx context.Context, cfg *config.Config, p *Pipeline) (st *State, err error) {
	st = &State{Config: cfg, Bundle: &report.Bundle{Seed: cfg.Seed}}

	if cfg.Store.Path != "" {
		client, runID, serr := openRun(cfg)
		if serr != nil {
			return nil, serr
		}
		st.store = client
		st.Bundle.RunID = runID

		defer func() {
			status := store.StatusFinished
			if err != nil {
				status = store.StatusFailed
			}
			if ferr := client.FinishRun(runID, status); ferr != nil && err == nil {
				err = ferr
			}
			client.Close()
		}()
	}

	err = p.Execute(ctx, st)
	return st, err
}

// openRun opens the results store and records a new run with the effective configuration.
func openRun(cfg *config.Config) (*store.Client, string, error) {
	client, err := store.NewClient(cfg.Store.Path)
	if err != nil {
		return nil, "", err
	}
	raw, err := yaml.Marshal(cfg)
	if err != nil {
		client.Close()
		return nil, "", fmt.Errorf("pipeline: encoding config: %w", err)
	}
	run, err := client.CreateRun(cfg.Seed, cfg.Data.Path, string(raw))
	if err != nil {
		client.Close()
		return nil, "", err
	}
	return client, run.ID, nil
}

func loadStage(_ context.Context, st *State) error {
	cfg := st.Config.Data
	ds, stats, err := data.LoadCSV(cfg.Path, data.CSVOptions{LabelColumn: cfg.LabelColumn})
	if err != nil {
		return err
	}
	st.Bundle.Data.Path = cfg.Path
	st.Bundle.Data.Rows = stats.Rows
	st.Bundle.Data.Skipped = stats.Skipped

	if cfg.DropDuplicates {
		var dups int
		ds, dups = data.DropDuplicates(ds)
		st.Bundle.Data.Duplicates = dups
		logger.Named("load").Info("duplicates removed", zap.Int("removed", dups), zap.Int("rows", ds.Len()))
	}
	st.Dataset = ds
	return nil
}

func exploreStage(_ context.Context, st *State) error {
	summary := explore.Summarize(st.Dataset)
	st.Bundle.Explore = &summary

	proj, err := explore.Project(st.Dataset, st.rng(seedExplore))
	if err != nil {
		if errors.Is(err, explore.ErrEmpty) {
			logger.Named("explore").Warn("skipping projection", zap.Error(err))
			return nil
		}
		return err
	}
	st.Bundle.Projection = proj
	return nil
}

func splitStage(_ context.Context, st *State) error {
	cfg := st.Config.Split
	p, err := split.Stratified(st.Dataset, cfg.Train, cfg.Validation, st.rng(seedSplit))
	if err != nil {
		return err
	}
	st.Partition = p
	st.Bundle.Data.Train = p.Train.Len()
	st.Bundle.Data.Validation = p.Validation.Len()
	st.Bundle.Data.Test = p.Test.Len()
	return nil
}

func preprocessStage(_ context.Context, st *State) error {
	state, train, err := dataprep.Fit(st.Partition.Train, st.Config.Preprocess, st.rng(seedPreprocess))
	if err != nil {
		return err
	}
	val, err := dataprep.Apply(state, st.Partition.Validation)
	if err != nil {
		return err
	}
	test, err := dataprep.Apply(state, st.Partition.Test)
	if err != nil {
		return err
	}
	st.Bundle.Prep = state
	st.Train, st.Validation, st.Test = train, val, test
	return nil
}

// searchStage tunes every configured family on the raw training part, preprocessing each
// fold on its own, and refits the selected configuration on the preprocessed training set.
func searchStage(ctx context.Context, st *State) error {
	cfg := st.Config.Search
	log := logger.Named("search")

	for _, family := range cfg.Families {
		build, err := model.BuilderFor(family)
		if err != nil {
			return err
		}
		res, err := tuning.Search(ctx, family, build, tuning.Grid(cfg.Grids[family]), st.Partition.Train, tuning.Options{
			Folds:   cfg.Folds,
			Metric:  cfg.Metric,
			Workers: cfg.Workers,
			Seed:    st.seed(seedSearch),
			Prepare: foldPreprocessor(st.Config.Preprocess),
		})
		if err != nil {
			return err
		}
		st.Bundle.Searches = append(st.Bundle.Searches, res)

		clf, err := build(res.Best.Params, st.seed(seedRefit))
		if err != nil {
			return err
		}
		if err := clf.Fit(st.Train.X, st.Train.Y); err != nil {
			return fmt.Errorf("refitting %s: %w", family, err)
		}
		st.Models = append(st.Models, evaluate.Entry{Name: model.DisplayName(family), Scorer: clf})

		best := res.Best.Metrics[res.Metric]
		log.Info("family tuned",
			zap.String("family", family),
			zap.Stringer("params", res.Best.Params),
			zap.String("metric", res.Metric),
			zap.Float64("mean", best.Mean),
			zap.Float64("se", best.StdErr))
	}
	return nil
}

// foldPreprocessor fits the preprocessing on the training part of a fold and replays it on
// the held-out part, so synthetic records never reach scoring.
func foldPreprocessor(opts config.PreprocessConfig) tuning.Prepare {
	return func(fit, held *data.Dataset, seed int64) (*data.Dataset, *data.Dataset, error) {
		state, fitOut, err := dataprep.Fit(fit, opts, rand.New(rand.NewSource(seed)))
		if err != nil {
			return nil, nil, err
		}
		heldOut, err := dataprep.Apply(state, held)
		if err != nil {
			return nil, nil, err
		}
		return fitOut, heldOut, nil
	}
}

func networkStage(ctx context.Context, st *State) error {
	cfg := st.Config.MLP
	if !cfg.Enabled {
		return nil
	}
	trainer := nn.NewTrainer(st.Train.Schema.Width(), cfg, st.seed(seedMLP))
	hist, err := trainer.Fit(ctx, st.Train, st.Validation)
	if err != nil {
		return err
	}
	st.Bundle.History = hist
	st.Models = append(st.Models, evaluate.Entry{Name: model.DisplayName(FamilyMLP), Scorer: trainer.Net})
	return nil
}

func evaluateStage(ctx context.Context, st *State) error {
	cfg := st.Config.Bootstrap
	res, err := evaluate.Bootstrap(ctx, st.Models, st.Test, evaluate.Options{
		Resamples:  cfg.Resamples,
		Confidence: cfg.Confidence,
		Workers:    cfg.Workers,
		Seed:       st.seed(seedBootstrap),
	})
	if err != nil {
		return err
	}
	st.Bundle.Eval = res
	return nil
}

// compareStage runs the rank-sum tests. Pairs without enough values to compare are
// logged and left out.
func compareStage(_ context.Context, st *State) error {
	log := logger.Named("compare")
	res := st.Bundle.Eval

	for _, metric := range model.MetricNames {
		cmps, err := evaluate.CompareModels(res, metric)
		if err != nil {
			if errors.Is(err, evaluate.ErrTooFewValues) {
				log.Warn("skipping metric comparison", zap.String("metric", metric), zap.Error(err))
				continue
			}
			return err
		}
		st.Bundle.Significance = append(st.Bundle.Significance, cmps...)
	}

	for i := 0; i < len(res.Models); i++ {
		for j := i + 1; j < len(res.Models); j++ {
			c, err := evaluate.ConfidenceOnErrors(res.Models[i], res.Models[j], st.Test.Y)
			if err != nil {
				if errors.Is(err, evaluate.ErrTooFewValues) {
					log.Warn("skipping confidence comparison", zap.Error(err))
					continue
				}
				return err
			}
			st.Bundle.ErrorConfidence = append(st.Bundle.ErrorConfidence, c)
		}
	}
	return nil
}

func reportStage(_ context.Context, st *State) error {
	files, err := report.WriteAll(st.Config.Report.OutDir, st.Bundle, st.Config.Report.Plots)
	st.Files = files
	return err
}

func persistStage(_ context.Context, st *State) error {
	if st.store == nil {
		return nil
	}
	runID := st.Bundle.RunID
	for _, res := range st.Bundle.Searches {
		if err := st.store.InsertSearch(runID, res); err != nil {
			return err
		}
	}
	if st.Bundle.Eval != nil {
		if err := st.store.InsertMetrics(runID, st.Bundle.Eval); err != nil {
			return err
		}
	}
	return nil
}
