package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/rtl-data/blockpairs/internal/config"
	"github.com/rtl-data/blockpairs/internal/db"
	"github.com/rtl-data/blockpairs/internal/encode"
	"github.com/rtl-data/blockpairs/internal/pairing"
	"github.com/rtl-data/blockpairs/internal/report"
	"github.com/rtl-data/blockpairs/internal/sequence"
	"github.com/rtl-data/blockpairs/internal/stats"
	"github.com/rtl-data/blockpairs/internal/trips"
)

func cmdMigrate(args []string) error {
	fs := flag.NewFlagSet("migrate", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "path to sqlite database")
	fs.Parse(args)

	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}

	conn, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	switch action {
	case "up":
		return conn.MigrateUp()
	case "down":
		return conn.MigrateDown()
	case "version", "status":
		version, dirty, err := conn.MigrateVersion()
		if err != nil {
			return err
		}
		fmt.Printf("version %d dirty=%v\n", version, dirty)
		return nil
	case "force":
		if fs.NArg() < 2 {
			return fmt.Errorf("force requires a version argument")
		}
		v, err := strconv.Atoi(fs.Arg(1))
		if err != nil {
			return fmt.Errorf("bad version %q: %w", fs.Arg(1), err)
		}
		return conn.MigrateForce(v)
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down, status, force)", action)
	}
}

func cmdImport(args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "path to sqlite database")
	file := fs.String("file", "", "trips-report CSV to load (default stdin)")
	fs.Parse(args)

	ctx := context.Background()
	conn, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	in := io.Reader(os.Stdin)
	if *file != "" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("failed to open trips CSV: %w", err)
		}
		defer f.Close()
		in = f
	}

	runID, err := conn.StartRun(ctx, "import")
	if err != nil {
		return err
	}

	res, err := conn.ImportTripsCSV(ctx, in)
	if err != nil {
		return err
	}

	detail := fmt.Sprintf("skipped=%d", res.Skipped)
	if err := conn.FinishRun(ctx, runID, res.Inserted+res.Skipped, res.Inserted, 0, detail); err != nil {
		return err
	}

	log.Printf("imported %d rows (%d skipped) run=%s", res.Inserted, res.Skipped, runID)
	return nil
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "path to sqlite database")
	cfgPath := fs.String("config", "", "pipeline config JSON")
	group := fs.String("group", "routedir", "variability grouping: trip or routedir")
	start := fs.String("start", "", "history start date, inclusive (YYYY-MM-DD)")
	end := fs.String("end", "", "history end date, inclusive (YYYY-MM-DD)")
	out := fs.String("out", "variability_cells.json", "output cells file")
	fs.Parse(args)

	by, err := parseGroupBy(*group)
	if err != nil {
		return err
	}
	cfg, err := loadPipelineConfig(*cfgPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	conn, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	runID, err := conn.StartRun(ctx, "stats")
	if err != nil {
		return err
	}

	filter := historyFilter(cfg, *start, *end)
	filter.RequireDurations = true
	history, err := conn.TripHistory(ctx, filter)
	if err != nil {
		return err
	}

	cells := stats.Compute(history, by)
	if err := stats.Save(*out, by, cells); err != nil {
		return err
	}

	if err := conn.FinishRun(ctx, runID, int64(len(history)), int64(len(cells)), 0, "group="+*group); err != nil {
		return err
	}

	log.Printf("computed %d variability cells from %d rows -> %s run=%s", len(cells), len(history), *out, runID)
	return nil
}

func cmdPairs(args []string) error {
	fs := flag.NewFlagSet("pairs", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "path to sqlite database")
	cfgPath := fs.String("config", "", "pipeline config JSON")
	features := fs.String("features", "base", "feature set: base, avgvar or p85")
	start := fs.String("start", "", "history start date, inclusive (YYYY-MM-DD)")
	end := fs.String("end", "", "history end date, inclusive (YYYY-MM-DD)")
	cellsPath := fs.String("cells", "", "persisted variability cells (default: compute from history)")
	out := fs.String("out", "", "output pairs CSV (default stdout)")
	fs.Parse(args)

	featureSet, err := parseFeatureSet(*features)
	if err != nil {
		return err
	}
	cfg, err := loadPipelineConfig(*cfgPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	conn, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	runID, err := conn.StartRun(ctx, "pairs")
	if err != nil {
		return err
	}

	history, err := conn.TripHistory(ctx, historyFilter(cfg, *start, *end))
	if err != nil {
		return err
	}

	tripCells, routeCells, err := variabilityFor(featureSet, *cellsPath, history)
	if err != nil {
		return err
	}

	rows, malformed := trips.Enrich(history, tripCells, routeCells)
	amPeak, pmPeak := peakWindows(cfg)
	pairs, rejects := pairing.BuildPairs(rows, pairing.Options{
		Features:        featureSet,
		OnTimeThreshold: cfg.GetOnTimeThreshold(),
		MaxLayoverSec:   cfg.GetMaxLayoverSec(),
		AMPeak:          amPeak,
		PMPeak:          pmPeak,
	})

	w, err := openOutput(*out)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := pairing.WriteCSV(w, featureSet, pairs); err != nil {
		return err
	}

	detail := fmt.Sprintf("features=%s missing_label=%d missing_variability=%d layover_out_of_range=%d",
		*features, rejects.MissingLabel, rejects.MissingVariability, rejects.LayoverOutOfRange)
	if err := conn.FinishRun(ctx, runID, int64(len(history)), int64(len(pairs)), malformed, detail); err != nil {
		return err
	}

	log.Printf("built %d pairs from %d rows (%s) run=%s", len(pairs), len(history), detail, runID)
	return nil
}

func cmdSequences(args []string) error {
	fs := flag.NewFlagSet("sequences", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "path to sqlite database")
	cfgPath := fs.String("config", "", "pipeline config JSON")
	mode := fs.String("mode", "chunked", "windowing mode: chunked or block")
	orderBy := fs.String("order", "start", "intra-block ordering: start or token")
	start := fs.String("start", "", "history start date, inclusive (YYYY-MM-DD)")
	end := fs.String("end", "", "history end date, inclusive (YYYY-MM-DD)")
	cellsPath := fs.String("cells", "", "persisted route variability cells (default: compute from history)")
	out := fs.String("out", "", "output sequence CSV (default stdout)")
	fs.Parse(args)

	cfg, err := loadPipelineConfig(*cfgPath)
	if err != nil {
		return err
	}

	opts := sequence.Options{
		OnTimeThreshold: cfg.GetOnTimeThreshold(),
		MaxLayoverSec:   cfg.GetMaxLayoverSec(),
	}
	opts.AMPeak, opts.PMPeak = peakWindows(cfg)
	switch *mode {
	case "chunked":
		opts.Mode = sequence.Chunked
		opts.Window = cfg.GetChunkWindow()
	case "block":
		opts.Mode = sequence.WholeBlock
		opts.Window = cfg.GetBlockWindow()
	default:
		return fmt.Errorf("unknown mode %q (want chunked or block)", *mode)
	}
	switch *orderBy {
	case "start":
		opts.OrderBy = sequence.ByStart
	case "token":
		opts.OrderBy = sequence.ByToken
	default:
		return fmt.Errorf("unknown order %q (want start or token)", *orderBy)
	}

	ctx := context.Background()
	conn, err := db.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	runID, err := conn.StartRun(ctx, "sequences")
	if err != nil {
		return err
	}

	history, err := conn.TripHistory(ctx, historyFilter(cfg, *start, *end))
	if err != nil {
		return err
	}

	_, routeCells, err := variabilityFor(pairing.FeaturesP85, *cellsPath, history)
	if err != nil {
		return err
	}

	rows, malformed := trips.Enrich(history, nil, routeCells)
	seqs, rejects := sequence.Build(rows, opts)

	w, err := openOutput(*out)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := sequence.WriteCSV(w, seqs); err != nil {
		return err
	}

	detail := fmt.Sprintf("mode=%s window=%d missing_outcome=%d truncated=%d",
		*mode, opts.Window, rejects.MissingOutcome, rejects.Truncated)
	if err := conn.FinishRun(ctx, runID, int64(len(history)), int64(len(seqs)), malformed, detail); err != nil {
		return err
	}

	log.Printf("built %d sequences from %d rows (%s) run=%s", len(seqs), len(history), detail, runID)
	return nil
}

func cmdEncode(args []string) error {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	in := fs.String("in", "", "feature CSV to fit on (required)")
	mode := fs.String("mode", "pairs", "feature layout: pairs or sequence")
	features := fs.String("features", "base", "pairs feature set: base, avgvar or p85")
	modelDir := fs.String("model", "model", "model artifact directory")
	cfgPath := fs.String("config", "", "pipeline config JSON")
	out := fs.String("out", "", "also write the encoded vectors as CSV")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("-in is required")
	}
	spec, labelCol, err := encodeSpec(*mode, *features)
	if err != nil {
		return err
	}
	cfg, err := loadPipelineConfig(*cfgPath)
	if err != nil {
		return err
	}

	rows, err := readFeatureRows(*in)
	if err != nil {
		return err
	}

	enc, err := encode.Fit(rows, spec)
	if err != nil {
		return err
	}
	// The sequence path clamps z-scores at both ends of the pipeline; the
	// training vectors must go through the same clamp as apply, or the two
	// diverge on outliers.
	if *mode == "sequence" {
		enc.Clip = cfg.GetNormClip()
	}

	if err := os.MkdirAll(*modelDir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	if err := enc.SaveArtifacts(*modelDir); err != nil {
		return err
	}

	if *out != "" {
		vecs, err := enc.TransformAll(rows)
		if err != nil {
			return err
		}
		w, err := openOutput(*out)
		if err != nil {
			return err
		}
		defer w.Close()
		if err := writeVectors(w, vecs, rows, labelCol); err != nil {
			return err
		}
	}

	log.Printf("fitted encoder on %d rows (width %d) -> %s", len(rows), enc.Width(), *modelDir)
	return nil
}

func cmdApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	in := fs.String("in", "", "feature CSV to encode (required)")
	mode := fs.String("mode", "pairs", "feature layout: pairs or sequence")
	features := fs.String("features", "base", "pairs feature set: base, avgvar or p85")
	modelDir := fs.String("model", "model", "model artifact directory")
	cfgPath := fs.String("config", "", "pipeline config JSON")
	out := fs.String("out", "", "output vector CSV (default stdout)")
	fs.Parse(args)

	if *in == "" {
		return fmt.Errorf("-in is required")
	}
	spec, labelCol, err := encodeSpec(*mode, *features)
	if err != nil {
		return err
	}
	cfg, err := loadPipelineConfig(*cfgPath)
	if err != nil {
		return err
	}

	enc, err := encode.LoadArtifacts(*modelDir, spec)
	if err != nil {
		return err
	}
	if *mode == "sequence" {
		enc.Clip = cfg.GetNormClip()
	}

	rows, err := readFeatureRows(*in)
	if err != nil {
		return err
	}
	vecs, err := enc.TransformAll(rows)
	if err != nil {
		return err
	}

	w, err := openOutput(*out)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := writeVectors(w, vecs, rows, labelCol); err != nil {
		return err
	}

	log.Printf("encoded %d rows (width %d)", len(vecs), enc.Width())
	return nil
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	predPath := fs.String("predictions", "", "model predictions CSV (required)")
	pairsPath := fs.String("pairs", "", "pairs feature CSV for observation counts")
	cfgPath := fs.String("config", "", "pipeline config JSON")
	out := fs.String("out", "", "output summary CSV (default stdout)")
	chart := fs.String("chart", "", "write an HTML bar chart of the riskiest route pairs")
	hist := fs.String("hist", "", "write a PNG histogram of predicted probabilities")
	top := fs.Int("top", 30, "bars in the chart")
	bins := fs.Int("bins", 20, "histogram bins")
	fs.Parse(args)

	if *predPath == "" {
		return fmt.Errorf("-predictions is required")
	}
	cfg, err := loadPipelineConfig(*cfgPath)
	if err != nil {
		return err
	}

	pf, err := os.Open(*predPath)
	if err != nil {
		return fmt.Errorf("failed to open predictions: %w", err)
	}
	preds, err := report.LoadPredictions(pf, cfg.GetProbThreshold())
	pf.Close()
	if err != nil {
		return err
	}

	counts := map[string]int64{}
	if *pairsPath != "" {
		rows, err := readFeatureRows(*pairsPath)
		if err != nil {
			return err
		}
		counts = report.CountRoutePairs(rows)
	}

	w, err := openOutput(*out)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := report.WriteSummaryCSV(w, report.Summarize(preds, counts)); err != nil {
		return err
	}

	if *chart != "" {
		cf, err := os.Create(*chart)
		if err != nil {
			return fmt.Errorf("failed to create chart file: %w", err)
		}
		defer cf.Close()
		if err := report.RenderPairBarChart(cf, report.AggregateByPair(preds), *top); err != nil {
			return err
		}
	}
	if *hist != "" {
		if err := report.SaveProbHistogram(preds, *bins, *hist); err != nil {
			return err
		}
	}

	log.Printf("summarized %d predictions", len(preds))
	return nil
}

func cmdRuns(args []string) error {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	dbPath := fs.String("db", defaultDBFile, "path to sqlite database")
	limit := fs.Int("limit", 20, "number of runs to show")
	fs.Parse(args)

	conn, err := db.Open(*dbPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	runs, err := conn.RecentRuns(context.Background(), *limit)
	if err != nil {
		return err
	}

	for _, r := range runs {
		started := time.Unix(int64(r.StartedUnix), 0).UTC().Format(time.RFC3339)
		status := "running"
		if r.FinishedUnix.Valid {
			status = fmt.Sprintf("%.1fs", r.FinishedUnix.Float64-r.StartedUnix)
		}
		fmt.Printf("%s  %-10s %s  in=%d out=%d malformed=%d  %s\n",
			r.RunID, r.Command, started, r.RowsIn, r.RowsOut, r.MalformedBlockIDs, status)
		if r.Detail.Valid {
			fmt.Printf("  %s\n", r.Detail.String)
		}
	}
	return nil
}

// loadPipelineConfig returns the config at path, or defaults when path is
// empty.
func loadPipelineConfig(path string) (*config.PipelineConfig, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func historyFilter(cfg *config.PipelineConfig, start, end string) db.Filter {
	return db.Filter{
		DateStart:  start,
		DateEnd:    end,
		Weekdays:   cfg.GetWeekdays(),
		ServiceIDs: cfg.GetServiceIDs(),
	}
}

func peakWindows(cfg *config.PipelineConfig) (am, pm trips.Window) {
	am = trips.Window{StartSec: cfg.GetAMPeakStartSec(), EndSec: cfg.GetAMPeakEndSec()}
	pm = trips.Window{StartSec: cfg.GetPMPeakStartSec(), EndSec: cfg.GetPMPeakEndSec()}
	return am, pm
}

func parseGroupBy(s string) (stats.GroupBy, error) {
	switch s {
	case "trip":
		return stats.ByTrip, nil
	case "routedir":
		return stats.ByRouteDirStart, nil
	default:
		return 0, fmt.Errorf("unknown grouping %q (want trip or routedir)", s)
	}
}

func parseFeatureSet(s string) (pairing.FeatureSet, error) {
	switch s {
	case "base":
		return pairing.FeaturesBase, nil
	case "avgvar":
		return pairing.FeaturesAvgVar, nil
	case "p85":
		return pairing.FeaturesP85, nil
	default:
		return 0, fmt.Errorf("unknown feature set %q (want base, avgvar or p85)", s)
	}
}

// variabilityFor returns the cell maps a feature set needs, loading them
// from cellsPath when given and computing them from history otherwise. A
// persisted file fitted under the wrong grouping is rejected rather than
// joined against the wrong key.
func variabilityFor(featureSet pairing.FeatureSet, cellsPath string, history []db.TripExecution) (tripCells, routeCells map[stats.Key]stats.Cell, err error) {
	switch featureSet {
	case pairing.FeaturesAvgVar:
		if cellsPath == "" {
			return stats.Compute(history, stats.ByTrip), nil, nil
		}
		by, cells, err := stats.Load(cellsPath)
		if err != nil {
			return nil, nil, err
		}
		if by != stats.ByTrip {
			return nil, nil, fmt.Errorf("%s holds route cells, but avgvar features need per-trip cells", cellsPath)
		}
		return cells, nil, nil
	case pairing.FeaturesP85:
		if cellsPath == "" {
			return nil, stats.Compute(history, stats.ByRouteDirStart), nil
		}
		by, cells, err := stats.Load(cellsPath)
		if err != nil {
			return nil, nil, err
		}
		if by != stats.ByRouteDirStart {
			return nil, nil, fmt.Errorf("%s holds per-trip cells, but p85 features need route cells", cellsPath)
		}
		return nil, cells, nil
	default:
		return nil, nil, nil
	}
}

// encodeSpec maps a CLI feature layout to the encoding spec and the name
// of its label column.
func encodeSpec(mode, features string) (encode.Spec, string, error) {
	switch mode {
	case "pairs":
		featureSet, err := parseFeatureSet(features)
		if err != nil {
			return encode.Spec{}, "", err
		}
		cols := pairing.Header(featureSet)
		// Column 0 is the label and the last column is the categorical
		// route pair; everything between is numeric.
		return encode.Spec{
			Numeric:     cols[1 : len(cols)-1],
			Categorical: []string{"route_pair"},
		}, cols[0], nil
	case "sequence":
		return encode.Spec{Numeric: sequence.FeatureColumns}, "on_time_class", nil
	default:
		return encode.Spec{}, "", fmt.Errorf("unknown mode %q (want pairs or sequence)", mode)
	}
}

func readFeatureRows(path string) ([]map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feature CSV: %w", err)
	}
	defer f.Close()
	return encode.ReadRows(f)
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// writeVectors emits the encoded matrix with generated column names, plus
// the raw label column when the input carries one.
func writeVectors(w io.Writer, vecs [][]float64, rows []map[string]string, labelCol string) error {
	hasLabel := false
	if len(rows) > 0 {
		_, hasLabel = rows[0][labelCol]
	}

	var header []string
	if len(vecs) > 0 {
		for i := range vecs[0] {
			header = append(header, fmt.Sprintf("x%d", i))
		}
	}
	if hasLabel {
		header = append(header, labelCol)
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write vector header: %w", err)
	}
	for i, vec := range vecs {
		rec := make([]string, 0, len(vec)+1)
		for _, v := range vec {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if hasLabel {
			rec = append(rec, rows[i][labelCol])
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("failed to write vector row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
