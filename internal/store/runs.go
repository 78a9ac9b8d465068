package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/dental.report/internal/evaluation"
	"github.com/banshee-data/dental.report/internal/resample"
	"github.com/banshee-data/dental.report/internal/teeth"
)

// ErrNotFound is returned when a run ID has no row.
var ErrNotFound = errors.New("run not found")

// Run is one persisted evaluation. Metrics is nil when the run's ratios were
// undefined.
type Run struct {
	RunID         string              `json:"run_id"`
	Command       string              `json:"command"`
	Policy        string              `json:"policy"`
	OutputDir     string              `json:"output_dir"`
	AnnotationDir string              `json:"annotation_dir"`
	Pairs         int                 `json:"pairs"`
	Counts        evaluation.Counts   `json:"counts"`
	Metrics       *evaluation.Metrics `json:"metrics,omitempty"`

	// Resampling parameters; zero for single-pass runs.
	Iterations int     `json:"iterations,omitempty"`
	Fraction   float64 `json:"fraction,omitempty"`
	Seed       uint64  `json:"seed,omitempty"`
	SampleSize int     `json:"sample_size,omitempty"`
	Skipped    []int   `json:"skipped,omitempty"`

	CreatedAt int64 `json:"created_at"`
}

// LabelMetric is the per-tooth breakdown of a run.
type LabelMetric struct {
	Label   teeth.Label         `json:"label"`
	Counts  evaluation.Counts   `json:"counts"`
	Metrics *evaluation.Metrics `json:"metrics,omitempty"`
}

// InsertRun persists run with its optional per-tooth rows and metric
// distributions in one transaction. An empty RunID is filled with a UUID and
// a zero CreatedAt with the store clock.
func (s *Store) InsertRun(run *Run, labels []LabelMetric, dist resample.Distributions) error {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt == 0 {
		run.CreatedAt = s.clock.Now().UnixNano()
	}

	var skipped interface{}
	if len(run.Skipped) > 0 {
		data, err := json.Marshal(run.Skipped)
		if err != nil {
			return fmt.Errorf("encode skipped iterations: %w", err)
		}
		skipped = string(data)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	m := nullMetrics(run.Metrics)
	_, err = tx.Exec(`
		INSERT INTO eval_runs (
			run_id, command, policy, output_dir, annotation_dir, pairs,
			correct, true_positive, false_positive, false_negative, total_slots,
			error_rate, accuracy, precision, recall, f1,
			iterations, sample_fraction, seed, sample_size, skipped_json, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Command, run.Policy, run.OutputDir, run.AnnotationDir, run.Pairs,
		run.Counts.Correct, run.Counts.TruePositive, run.Counts.FalsePositive,
		run.Counts.FalseNegative, run.Counts.TotalSlots,
		m[0], m[1], m[2], m[3], m[4],
		run.Iterations, run.Fraction, int64(run.Seed), run.SampleSize, skipped, run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if len(labels) > 0 {
		stmt, err := tx.Prepare(`
			INSERT INTO eval_label_metrics (
				run_id, label, correct, true_positive, false_positive, false_negative,
				total_slots, error_rate, accuracy, precision, recall, f1
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare label insert: %w", err)
		}
		defer stmt.Close()
		for _, lm := range labels {
			m := nullMetrics(lm.Metrics)
			if _, err := stmt.Exec(run.RunID, string(lm.Label),
				lm.Counts.Correct, lm.Counts.TruePositive, lm.Counts.FalsePositive,
				lm.Counts.FalseNegative, lm.Counts.TotalSlots,
				m[0], m[1], m[2], m[3], m[4]); err != nil {
				return fmt.Errorf("insert label %s: %w", lm.Label, err)
			}
		}
	}

	if len(dist) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO eval_distributions (run_id, metric, position, value) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("prepare distribution insert: %w", err)
		}
		defer stmt.Close()
		for metric, values := range dist {
			for i, v := range values {
				if _, err := stmt.Exec(run.RunID, metric, i, v); err != nil {
					return fmt.Errorf("insert %s[%d]: %w", metric, i, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const runColumns = `run_id, command, policy, output_dir, annotation_dir, pairs,
	correct, true_positive, false_positive, false_negative, total_slots,
	error_rate, accuracy, precision, recall, f1,
	iterations, sample_fraction, seed, sample_size, skipped_json, created_at`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var m [5]sql.NullFloat64
	var seed int64
	var skipped sql.NullString
	err := row.Scan(
		&r.RunID, &r.Command, &r.Policy, &r.OutputDir, &r.AnnotationDir, &r.Pairs,
		&r.Counts.Correct, &r.Counts.TruePositive, &r.Counts.FalsePositive,
		&r.Counts.FalseNegative, &r.Counts.TotalSlots,
		&m[0], &m[1], &m[2], &m[3], &m[4],
		&r.Iterations, &r.Fraction, &seed, &r.SampleSize, &skipped, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Seed = uint64(seed)
	r.Metrics = metricsFromNull(m)
	if skipped.Valid && skipped.String != "" {
		if err := json.Unmarshal([]byte(skipped.String), &r.Skipped); err != nil {
			return nil, fmt.Errorf("decode skipped iterations: %w", err)
		}
	}
	return &r, nil
}

// GetRun returns a run by ID, or ErrNotFound.
func (s *Store) GetRun(runID string) (*Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM eval_runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(limit int) ([]*Run, error) {
	query := `SELECT ` + runColumns + ` FROM eval_runs ORDER BY created_at DESC, run_id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// LabelMetrics returns a run's per-tooth rows in catalogue order.
func (s *Store) LabelMetrics(runID string) ([]LabelMetric, error) {
	rows, err := s.db.Query(`
		SELECT label, correct, true_positive, false_positive, false_negative,
		       total_slots, error_rate, accuracy, precision, recall, f1
		FROM eval_label_metrics
		WHERE run_id = ?
		ORDER BY label`, runID)
	if err != nil {
		return nil, fmt.Errorf("query label metrics: %w", err)
	}
	defer rows.Close()

	var out []LabelMetric
	for rows.Next() {
		var lm LabelMetric
		var label string
		var m [5]sql.NullFloat64
		if err := rows.Scan(&label,
			&lm.Counts.Correct, &lm.Counts.TruePositive, &lm.Counts.FalsePositive,
			&lm.Counts.FalseNegative, &lm.Counts.TotalSlots,
			&m[0], &m[1], &m[2], &m[3], &m[4]); err != nil {
			return nil, fmt.Errorf("scan label metric: %w", err)
		}
		lm.Label = teeth.Label(label)
		lm.Metrics = metricsFromNull(m)
		out = append(out, lm)
	}
	return out, rows.Err()
}

// Distributions returns a run's resampled metric values in iteration order.
func (s *Store) Distributions(runID string) (resample.Distributions, error) {
	rows, err := s.db.Query(`
		SELECT metric, value FROM eval_distributions
		WHERE run_id = ?
		ORDER BY metric, position`, runID)
	if err != nil {
		return nil, fmt.Errorf("query distributions: %w", err)
	}
	defer rows.Close()

	out := resample.Distributions{}
	for rows.Next() {
		var metric string
		var v float64
		if err := rows.Scan(&metric, &v); err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		out[metric] = append(out[metric], v)
	}
	return out, rows.Err()
}

// DeleteRun removes a run and its dependent rows.
func (s *Store) DeleteRun(runID string) error {
	result, err := s.db.Exec(`DELETE FROM eval_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	return nil
}

func nullMetrics(m *evaluation.Metrics) [5]sql.NullFloat64 {
	var out [5]sql.NullFloat64
	if m == nil {
		return out
	}
	for i, v := range m.Values() {
		out[i] = sql.NullFloat64{Float64: v, Valid: true}
	}
	return out
}

func metricsFromNull(m [5]sql.NullFloat64) *evaluation.Metrics {
	for _, v := range m {
		if !v.Valid {
			return nil
		}
	}
	return &evaluation.Metrics{
		Error:     m[0].Float64,
		Accuracy:  m[1].Float64,
		Precision: m[2].Float64,
		Recall:    m[3].Float64,
		F1:        m[4].Float64,
	}
}
