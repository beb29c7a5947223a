package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"text/tabwriter"

	"adamstat/adapters/sqlstore"
	"adamstat/adapters/stats/engine"
	"adamstat/app"
	"adamstat/domain/run"
	"adamstat/internal/config"
	"adamstat/internal/errors"
	"adamstat/internal/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Defaults of the positional `run <reference_mean>` form
const (
	defaultDataFile = "one_sample_ttest_raw_data.csv"
	defaultColumn   = "SBP"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "adamstat-cli",
		Short:         "One-sample t-tests rendered as ADaM BDS datasets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newBatchCmd(),
	)
	return rootCmd
}

// testFlags are shared by run and batch
type testFlags struct {
	file      string
	sheet     string
	ref       float64
	alpha     float64
	sidedness string
	subject   string
	date      string
	out       string
	xlsx      bool
	report    bool
	store     bool
}

func (f *testFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.file, "file", defaultDataFile, "CSV or XLSX file holding the observations")
	cmd.Flags().StringVar(&f.sheet, "sheet", "", "Worksheet to read from an XLSX file (default first sheet)")
	cmd.Flags().Float64Var(&f.ref, "ref", 0, "Reference mean under the null hypothesis")
	cmd.Flags().Float64Var(&f.alpha, "alpha", 0, "Significance level (default DEFAULT_ALPHA)")
	cmd.Flags().StringVar(&f.sidedness, "sidedness", "", "two, upper or lower (default DEFAULT_SIDEDNESS)")
	cmd.Flags().StringVar(&f.subject, "subject", "", "USUBJID written on every record (default SUBJECT_ID)")
	cmd.Flags().StringVar(&f.date, "date", "", "Analysis date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&f.out, "out", "", "Output directory (default OUTPUT_DIR)")
	cmd.Flags().BoolVar(&f.xlsx, "xlsx", false, "Also write adam_bds.xlsx")
	cmd.Flags().BoolVar(&f.report, "report", false, "Also write an HTML report")
	cmd.Flags().BoolVar(&f.store, "store", false, "Save the run to DATABASE_URL")
}

func (f *testFlags) alphaOverride(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("alpha") {
		return nil
	}
	return &f.alpha
}

func newRunCmd() *cobra.Command {
	var flags testFlags
	var column, title string

	cmd := &cobra.Command{
		Use:   "run [reference_mean]",
		Short: "Run a one-sample t-test on one column",
		Long: `Run a one-sample t-test on a column of a CSV or XLSX file and write the
BDS records as adam_bds.csv and adam_bds.json.

Examples:
  adamstat-cli run --file vitals.csv --column SBP --ref 120 --sidedness two --out ./out
  adamstat-cli run 120`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				ref, err := strconv.ParseFloat(args[0], 64)
				if err != nil {
					return fmt.Errorf("reference mean %q is not a number", args[0])
				}
				flags.ref = ref
			} else if !cmd.Flags().Changed("ref") {
				return errors.ValidationError("a reference mean is required (--ref or positional argument)")
			}

			env, err := setup(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer env.close()

			rn, err := env.service.Run(cmd.Context(), app.Request{
				File:          flags.file,
				Sheet:         flags.sheet,
				Column:        column,
				Title:         title,
				ReferenceMean: flags.ref,
				Alpha:         flags.alphaOverride(cmd),
				Sidedness:     flags.sidedness,
				SubjectID:     flags.subject,
				AnalysisDate:  flags.date,
			})
			if err != nil {
				return err
			}

			out, err := env.service.WriteOutputs(rn, env.cfg.Output.Dir)
			if err != nil {
				return err
			}

			printRun(cmd.OutOrStdout(), rn)
			printOutputs(cmd.OutOrStdout(), out)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&column, "column", defaultColumn, "Column holding the observations")
	cmd.Flags().StringVar(&title, "title", "", "Display name for PARAM labels (default column name)")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var flags testFlags
	var columns []string

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run the same t-test on several columns concurrently",
		Long: `Run one t-test per column of a single file. Each column's outputs are written
into a subdirectory named after the column.

Example:
  adamstat-cli batch --file vitals.csv --columns SBP,DBP,HR --ref 100`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(columns) == 0 {
				return errors.ValidationError("--columns is required")
			}
			if !cmd.Flags().Changed("ref") {
				return errors.ValidationError("--ref is required")
			}
			columns = uniqueColumns(columns)

			env, err := setup(cmd.Context(), &flags)
			if err != nil {
				return err
			}
			defer env.close()

			runs, err := env.service.RunBatch(cmd.Context(), app.BatchRequest{
				File:          flags.file,
				Sheet:         flags.sheet,
				Columns:       columns,
				ReferenceMean: flags.ref,
				Alpha:         flags.alphaOverride(cmd),
				Sidedness:     flags.sidedness,
				SubjectID:     flags.subject,
				AnalysisDate:  flags.date,
			})
			if err != nil {
				return err
			}

			dirs := outputDirNames(columns)
			for i, rn := range runs {
				out, err := env.service.WriteOutputs(rn, filepath.Join(env.cfg.Output.Dir, dirs[i]))
				if err != nil {
					return err
				}
				printRun(cmd.OutOrStdout(), rn)
				printOutputs(cmd.OutOrStdout(), out)
			}
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringSliceVar(&columns, "columns", nil, "Comma-separated columns to test")
	return cmd
}

// uniqueColumns drops repeated and blank column names, keeping first occurrences
func uniqueColumns(columns []string) []string {
	seen := make(map[string]bool, len(columns))
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

var unsafeDirChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// outputDirNames maps columns onto distinct single-segment directory names
func outputDirNames(columns []string) []string {
	used := make(map[string]bool, len(columns))
	dirs := make([]string, len(columns))
	for i, c := range columns {
		name := unsafeDirChars.ReplaceAllString(c, "_")
		if strings.Trim(name, ".") == "" {
			name = "column"
		}
		candidate := name
		for n := 2; used[candidate]; n++ {
			candidate = fmt.Sprintf("%s_%d", name, n)
		}
		used[candidate] = true
		dirs[i] = candidate
	}
	return dirs
}

type cliEnv struct {
	cfg     *config.Config
	service *app.TTestService
	close   func()
}

// setup loads configuration, applies flag overrides and wires the service
func setup(ctx context.Context, flags *testFlags) (*cliEnv, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if flags.out != "" {
		cfg.Output.Dir = flags.out
	}
	cfg.Output.XLSX = cfg.Output.XLSX || flags.xlsx
	cfg.Output.Report = cfg.Output.Report || flags.report

	logger, logCloser, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, err
	}

	env := &cliEnv{cfg: cfg, close: func() { logCloser.Close() }}
	if !flags.store {
		env.service = app.NewTTestService(engine.NewTTestEngine(), nil, cfg, logger)
		return env, nil
	}

	db, err := sqlstore.Open(ctx, cfg.Database.URL, cfg.Database.MaxOpenConns)
	if err != nil {
		logCloser.Close()
		return nil, err
	}
	env.close = func() {
		db.Close()
		logCloser.Close()
	}
	env.service = app.NewTTestService(engine.NewTTestEngine(), sqlstore.NewRunRepository(db), cfg, logger)
	cliLogger := logging.Component(logger, "cli")
	cliLogger.Debug().Msg("Run store enabled")
	return env, nil
}

func printRun(w io.Writer, rn *run.Run) {
	res := rn.Result
	fmt.Fprintf(w, "\nOne-sample t-test: %s (n=%d", rn.Column, res.N)
	if rn.Dropped > 0 {
		fmt.Fprintf(w, ", %d missing dropped", rn.Dropped)
	}
	fmt.Fprintf(w, ")\nH0: mean = %g, alternative %s, alpha %g\n\n", res.Params.ReferenceMean, res.Params.Sidedness, res.Params.Alpha)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ASEQ\tPARAMCD\tPARAM\tAVALC")
	for _, r := range rn.Records {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", r.ASEQ, r.PARAMCD, r.PARAM, r.AVALC)
	}
	tw.Flush()
}

func printOutputs(w io.Writer, out app.Outputs) {
	files := []string{out.CSV, out.JSON, out.XLSX, out.Report}
	var written []string
	for _, f := range files {
		if f != "" {
			written = append(written, f)
		}
	}
	fmt.Fprintf(w, "\nWrote %s\n", strings.Join(written, ", "))
}
