package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	adamio "adamstat/adapters/adam"
	"adamstat/adapters/excel"
	"adamstat/adapters/stats/engine"
	"adamstat/domain/adam"
	"adamstat/domain/core"
	"adamstat/domain/run"
	"adamstat/domain/stats"
	"adamstat/internal/config"
	"adamstat/internal/errors"
	"adamstat/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Output file names written into the output directory
const (
	CSVFileName    = "adam_bds.csv"
	JSONFileName   = "adam_bds.json"
	XLSXFileName   = "adam_bds.xlsx"
	ReportFileName = "adam_bds_report.html"
)

// TTestService runs one-sample t-tests and turns them into BDS records
type TTestService struct {
	engine *engine.TTestEngine
	repo   ports.RunRepository // nil disables persistence
	cfg    *config.Config
	logger zerolog.Logger
	now    func() time.Time
}

// Request describes a single t-test run. Either Sample or File must be set.
type Request struct {
	Sample        []float64
	File          string
	Sheet         string
	Column        string
	Title         string // display name used in PARAM labels, defaults to Column
	ReferenceMean float64
	Alpha         *float64 // nil uses the configured default
	Sidedness     string   // token, empty uses the configured default
	SubjectID     string
	AnalysisDate  string // YYYY-MM-DD, empty uses today
}

// BatchRequest runs the same test against several columns of one file
type BatchRequest struct {
	File          string
	Sheet         string
	Columns       []string
	ReferenceMean float64
	Alpha         *float64
	Sidedness     string
	SubjectID     string
	AnalysisDate  string
}

// Outputs lists the files written for a run
type Outputs struct {
	CSV    string `json:"csv"`
	JSON   string `json:"json"`
	XLSX   string `json:"xlsx,omitempty"`
	Report string `json:"report,omitempty"`
}

// NewTTestService creates a t-test service. repo may be nil.
func NewTTestService(eng *engine.TTestEngine, repo ports.RunRepository, cfg *config.Config, logger zerolog.Logger) *TTestService {
	return &TTestService{
		engine: eng,
		repo:   repo,
		cfg:    cfg,
		logger: logger.With().Str("component", "ttest_service").Logger(),
		now:    time.Now,
	}
}

// WithClock replaces the time source used for analysis dates and timestamps
func (s *TTestService) WithClock(now func() time.Time) *TTestService {
	s.now = now
	return s
}

// HasStore reports whether runs are persisted
func (s *TTestService) HasStore() bool {
	return s.repo != nil
}

// analysisInput is a resolved sample ready for computation
type analysisInput struct {
	sample  []float64
	dropped int
	source  string
	column  string
	title   string
}

// Run executes a single t-test and persists it when a store is configured
func (s *TTestService) Run(ctx context.Context, req Request) (*run.Run, error) {
	if strings.TrimSpace(req.Column) == "" {
		return nil, core.NewParameterError("column", "is required")
	}

	params, meta, err := s.resolve(req.ReferenceMean, req.Alpha, req.Sidedness, req.SubjectID, req.AnalysisDate)
	if err != nil {
		return nil, err
	}

	in := analysisInput{sample: req.Sample, column: req.Column, title: req.Title}
	if req.File != "" {
		data, err := s.readFile(req.File, req.Sheet)
		if err != nil {
			return nil, err
		}
		values, dropped, err := data.NumericColumn(req.Column)
		if err != nil {
			return nil, err
		}
		in.sample, in.dropped, in.source = values, dropped, req.File
	}

	rn, err := s.analyze(in, params, meta)
	if err != nil {
		return nil, err
	}

	if err := s.save(ctx, rn); err != nil {
		return nil, err
	}
	return rn, nil
}

// RunBatch runs one test per column concurrently. Runs are returned in column
// order; the first failure cancels the remaining columns.
func (s *TTestService) RunBatch(ctx context.Context, req BatchRequest) ([]*run.Run, error) {
	if len(req.Columns) == 0 {
		return nil, core.NewParameterError("columns", "at least one column is required")
	}

	params, meta, err := s.resolve(req.ReferenceMean, req.Alpha, req.Sidedness, req.SubjectID, req.AnalysisDate)
	if err != nil {
		return nil, err
	}

	data, err := s.readFile(req.File, req.Sheet)
	if err != nil {
		return nil, err
	}

	runs := make([]*run.Run, len(req.Columns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Analysis.Workers)

	for i, column := range req.Columns {
		i, column := i, column
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			values, dropped, err := data.NumericColumn(column)
			if err != nil {
				return fmt.Errorf("column %s: %w", column, err)
			}

			rn, err := s.analyze(analysisInput{
				sample:  values,
				dropped: dropped,
				source:  req.File,
				column:  column,
			}, params, meta)
			if err != nil {
				return fmt.Errorf("column %s: %w", column, err)
			}

			if err := s.save(gctx, rn); err != nil {
				return err
			}
			runs[i] = rn
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("file", req.File).
		Int("columns", len(req.Columns)).
		Msg("Batch completed")
	return runs, nil
}

// Get loads a stored run
func (s *TTestService) Get(ctx context.Context, id core.RunID) (*run.Run, error) {
	if s.repo == nil {
		return nil, errors.NotFound("run store")
	}
	return s.repo.Get(ctx, id)
}

// List returns stored run summaries, newest first
func (s *TTestService) List(ctx context.Context, limit, offset int) ([]run.Summary, error) {
	if s.repo == nil {
		return nil, errors.NotFound("run store")
	}
	return s.repo.List(ctx, limit, offset)
}

// WriteOutputs writes the CSV and Dataset-JSON files for rn into dir, plus the
// workbook and HTML report when enabled in configuration
func (s *TTestService) WriteOutputs(rn *run.Run, dir string) (Outputs, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return Outputs{}, fmt.Errorf("failed to create output directory %s: %w", dir, err)
	}

	out := Outputs{
		CSV:  filepath.Join(dir, CSVFileName),
		JSON: filepath.Join(dir, JSONFileName),
	}

	if err := writeFile(out.CSV, func(f *os.File) error {
		return adamio.WriteCSV(f, rn.Records)
	}); err != nil {
		return Outputs{}, err
	}

	if err := writeFile(out.JSON, func(f *os.File) error {
		return adamio.WriteJSON(f, adamio.NewDataset(rn.Records, rn.CreatedAt))
	}); err != nil {
		return Outputs{}, err
	}

	if s.cfg.Output.XLSX {
		out.XLSX = filepath.Join(dir, XLSXFileName)
		if err := adamio.WriteXLSX(out.XLSX, rn.Records); err != nil {
			return Outputs{}, err
		}
	}

	if s.cfg.Output.Report {
		out.Report = filepath.Join(dir, ReportFileName)
		if err := os.WriteFile(out.Report, RenderReport(rn), 0644); err != nil {
			return Outputs{}, fmt.Errorf("failed to write report: %w", err)
		}
	}

	s.logger.Debug().
		Str("run_id", rn.ID.String()).
		Str("dir", dir).
		Msg("Outputs written")
	return out, nil
}

// resolve applies configured defaults and validates the test parameters
func (s *TTestService) resolve(ref float64, alpha *float64, sidedness, subjectID, date string) (stats.TestParams, adam.Meta, error) {
	params := stats.TestParams{
		ReferenceMean: ref,
		Alpha:         s.cfg.Analysis.Alpha,
		Sidedness:     s.cfg.Analysis.Sidedness,
	}
	if alpha != nil {
		params.Alpha = *alpha
	}
	if sidedness != "" {
		side, ambiguous, err := stats.ParseSidedness(sidedness)
		if err != nil {
			return stats.TestParams{}, adam.Meta{}, err
		}
		if ambiguous {
			s.logger.Warn().
				Str("sidedness", sidedness).
				Str("interpreted_as", side.String()).
				Msg("Ambiguous one-sided token, testing the upper alternative")
		}
		params.Sidedness = side
	}
	if err := params.Validate(); err != nil {
		return stats.TestParams{}, adam.Meta{}, err
	}

	if subjectID == "" {
		subjectID = s.cfg.Analysis.SubjectID
	}
	if date == "" {
		date = s.now().Format(adam.DateLayout)
	} else if _, err := time.Parse(adam.DateLayout, date); err != nil {
		return stats.TestParams{}, adam.Meta{}, core.NewParameterError("analysis date", fmt.Sprintf("%q is not YYYY-MM-DD", date))
	}

	return params, adam.Meta{
		SubjectID:    subjectID,
		AnalysisDate: date,
		Sidedness:    params.Sidedness,
		Alpha:        params.Alpha,
	}, nil
}

// analyze computes the test and builds the run; meta is copied per call
func (s *TTestService) analyze(in analysisInput, params stats.TestParams, meta adam.Meta) (*run.Run, error) {
	result, err := s.engine.Compute(in.sample, params)
	if err != nil {
		return nil, err
	}

	meta.Column = in.column
	if in.title != "" {
		meta.Column = in.title
	}

	rn := &run.Run{
		ID:        core.NewRunID(),
		CreatedAt: s.now().UTC(),
		SubjectID: meta.SubjectID,
		Column:    in.column,
		Source:    in.source,
		Dropped:   in.dropped,
		Result:    result,
		Records:   adam.BuildRecords(result, meta),
	}

	s.logger.Info().
		Str("run_id", rn.ID.String()).
		Str("column", in.column).
		Int("n", result.N).
		Int("dropped", in.dropped).
		Float64("t", result.TStat).
		Float64("p", result.PValue).
		Str("sidedness", params.Sidedness.String()).
		Msg("T-test completed")
	return rn, nil
}

func (s *TTestService) save(ctx context.Context, rn *run.Run) error {
	if s.repo == nil {
		return nil
	}
	if err := s.repo.Save(ctx, rn); err != nil {
		return errors.Wrapf(err, "failed to save run %s", rn.ID)
	}
	return nil
}

func (s *TTestService) readFile(path, sheet string) (*excel.ExcelData, error) {
	if path == "" {
		return nil, core.NewParameterError("file", "is required")
	}
	data, err := excel.NewDataReader(path, s.logger).WithSheet(sheet).ReadData()
	if err != nil {
		return nil, errors.WithCode(errors.CodeInvalidInput, err)
	}
	return data, nil
}

func writeFile(path string, write func(f *os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return f.Close()
}
