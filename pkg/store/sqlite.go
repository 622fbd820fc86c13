// Package store persists experiment runs and their results in SQLite.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/kssrr/sl-spam-classification/pkg/evaluate"
	"github.com/kssrr/sl-spam-classification/pkg/logger"
	"github.com/kssrr/sl-spam-classification/pkg/model"
	"github.com/kssrr/sl-spam-classification/pkg/tuning"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("store: run not found")

// Run statuses.
const (
	StatusRunning  = "running"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

type Client struct {
	db *sql.DB
}

// Run is one execution of the pipeline.
type Run struct {
	ID         string
	Seed       int64
	DataPath   string
	Config     string // YAML of the effective configuration
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
}

// SearchRow is one (configuration, metric) line of a stored grid search.
type SearchRow struct {
	Family      string
	ConfigIndex int
	Params      string
	Metric      string
	Mean        float64
	StdErr      float64
	Undefined   int
	Selected    bool
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	_, err = db.Exec("PRAGMA journal_mode = WAL")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	c := &Client{db: db}
	if err := c.InitSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		data_path TEXT NOT NULL,
		config TEXT,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS metrics (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		model TEXT NOT NULL,
		metric TEXT NOT NULL,
		estimate REAL,
		mean REAL,
		lower REAL,
		upper REAL,
		undefined INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_metrics_run ON metrics(run_id);

	CREATE TABLE IF NOT EXISTS search_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		family TEXT NOT NULL,
		config_index INTEGER NOT NULL,
		params TEXT NOT NULL,
		metric TEXT NOT NULL,
		mean REAL,
		std_err REAL,
		undefined INTEGER NOT NULL DEFAULT 0,
		selected INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_search_run ON search_results(run_id, family);
	`

	_, err := c.db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Debug("SQLite schema initialized")
	return nil
}

// CreateRun records the start of a run under a fresh UUID.
func (c *Client) CreateRun(seed int64, dataPath, config string) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Seed:      seed,
		DataPath:  dataPath,
		Config:    config,
		Status:    StatusRunning,
		StartedAt: time.Now(),
	}

	query := `INSERT INTO runs (id, seed, data_path, config, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`
	_, err := c.db.Exec(query, run.ID, run.Seed, run.DataPath, run.Config, run.Status, run.StartedAt.Unix())
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	logger.Debug("Run created", zap.String("run_id", run.ID))
	return run, nil
}

// FinishRun sets the final status of a run.
func (c *Client) FinishRun(id, status string) error {
	res, err := c.db.Exec(`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`, status, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (c *Client) GetRun(id string) (*Run, error) {
	query := `SELECT id, seed, data_path, config, status, started_at, finished_at FROM runs WHERE id = ?`

	var run Run
	var config sql.NullString
	var startedAt int64
	var finishedAt sql.NullInt64

	err := c.db.QueryRow(query, id).Scan(
		&run.ID,
		&run.Seed,
		&run.DataPath,
		&config,
		&run.Status,
		&startedAt,
		&finishedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Config = config.String
	run.StartedAt = time.Unix(startedAt, 0)
	if finishedAt.Valid {
		run.FinishedAt = time.Unix(finishedAt.Int64, 0)
	}
	return &run, nil
}

// InsertMetrics stores every (model, metric) row of a bootstrap result in one transaction.
func (c *Client) InsertMetrics(runID string, res *evaluate.Result) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO metrics (run_id, model, metric, estimate, mean, lower, upper, undefined) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare metrics insert: %w", err)
	}
	defer stmt.Close()

	for _, r := range res.Rows() {
		_, err := stmt.Exec(runID, r.Model, r.Metric,
			nullable(r.Estimate), nullable(r.Mean), nullable(r.Lower), nullable(r.Upper), r.Undefined)
		if err != nil {
			return fmt.Errorf("failed to insert metric %s/%s: %w", r.Model, r.Metric, err)
		}
	}
	return tx.Commit()
}

// Metrics returns the stored metric rows of a run in insertion order.
func (c *Client) Metrics(runID string) ([]evaluate.MetricRow, error) {
	rows, err := c.db.Query(`SELECT model, metric, estimate, mean, lower, upper, undefined FROM metrics WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query metrics: %w", err)
	}
	defer rows.Close()

	var out []evaluate.MetricRow
	for rows.Next() {
		var r evaluate.MetricRow
		var est, mean, lower, upper sql.NullFloat64
		if err := rows.Scan(&r.Model, &r.Metric, &est, &mean, &lower, &upper, &r.Undefined); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		r.Estimate, r.Mean, r.Lower, r.Upper = orNaN(est), orNaN(mean), orNaN(lower), orNaN(upper)
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertSearch stores one row per (configuration, metric) of a grid search.
func (c *Client) InsertSearch(runID string, res *tuning.Result) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO search_results (run_id, family, config_index, params, metric, mean, std_err, undefined, selected) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare search insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range res.Rows {
		selected := row.Index == res.Best.Index
		for _, name := range model.MetricNames {
			s := row.Metrics[name]
			_, err := stmt.Exec(runID, res.Family, row.Index, row.Params.String(), name,
				nullable(s.Mean), nullable(s.StdErr), s.Undefined, selected)
			if err != nil {
				return fmt.Errorf("failed to insert search result: %w", err)
			}
		}
	}
	return tx.Commit()
}

// SearchResults returns the stored grid-search rows of a run.
func (c *Client) SearchResults(runID string) ([]SearchRow, error) {
	rows, err := c.db.Query(`SELECT family, config_index, params, metric, mean, std_err, undefined, selected FROM search_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query search results: %w", err)
	}
	defer rows.Close()

	var out []SearchRow
	for rows.Next() {
		var r SearchRow
		var mean, se sql.NullFloat64
		if err := rows.Scan(&r.Family, &r.ConfigIndex, &r.Params, &r.Metric, &mean, &se, &r.Undefined, &r.Selected); err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		r.Mean, r.StdErr = orNaN(mean), orNaN(se)
		out = append(out, r)
	}
	return out, rows.Err()
}

// nullable stores NaN as NULL.
func nullable(v float64) sql.NullFloat64 {
	if math.IsNaN(v) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

func orNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
