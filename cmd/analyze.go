package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/isolysis/isocover/internal/engine"
	"github.com/isolysis/isocover/internal/ingest"
	"github.com/isolysis/isocover/internal/model"
	"github.com/isolysis/isocover/internal/store"
)

var (
	analyzePoints     string
	analyzeBands      string
	analyzeOut        string
	analyzeNoCache    bool
	analyzeMaxArity   int
	analyzeMaxRegions int
	analyzeWorkers    int
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run a coverage and intersection analysis",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		points, err := ingest.LoadPoints(analyzePoints)
		if err != nil {
			return eris.Wrap(err, "load points")
		}
		centers, err := ingest.LoadBands(analyzeBands)
		if err != nil {
			return eris.Wrap(err, "load bands")
		}

		in := engine.Input{
			Points:  points,
			Centers: centers,
			Rasters: cfg.Rasters,
		}
		opts := engine.Options{
			MaxArity:   cfg.Engine.MaxArity,
			MaxRegions: cfg.Engine.MaxRegions,
			Workers:    cfg.Engine.Workers,
		}
		if cmd.Flags().Changed("max-arity") {
			opts.MaxArity = analyzeMaxArity
		}
		if cmd.Flags().Changed("max-regions") {
			opts.MaxRegions = analyzeMaxRegions
		}
		if cmd.Flags().Changed("workers") {
			opts.Workers = analyzeWorkers
		}

		hash, err := engine.InputHash(in, opts)
		if err != nil {
			return eris.Wrap(err, "hash input")
		}

		st, err := store.NewSQLite(cfg.Store.Path)
		if err != nil {
			return eris.Wrap(err, "open store")
		}
		defer st.Close()
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		if !analyzeNoCache {
			cached, err := st.GetReportByHash(ctx, hash)
			if err != nil {
				return eris.Wrap(err, "cache lookup")
			}
			if cached != nil {
				zap.L().Info("serving cached report",
					zap.String("run_id", cached.RunID),
					zap.String("input_hash", hash),
				)
				return writeReport(cached)
			}
		}

		runCtx := ctx
		if cfg.Engine.TimeoutSecs > 0 {
			var cancel context.CancelFunc
			runCtx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Engine.TimeoutSecs)*time.Second)
			defer cancel()
		}

		rep, err := engine.Run(runCtx, in, opts)
		if err != nil {
			return eris.Wrap(err, "analysis run")
		}

		if _, err := st.SaveReport(ctx, hash, rep); err != nil {
			return eris.Wrap(err, "save report")
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", rep.RunID),
			zap.Int("points", rep.TotalPoints),
			zap.Int("regions", rep.TotalRegions),
			zap.Bool("truncated", rep.Truncated),
		)
		return writeReport(rep)
	},
}

// writeReport emits the report JSON to --out, or stdout when unset.
func writeReport(rep *model.AnalysisReport) error {
	var w io.Writer = os.Stdout
	if analyzeOut != "" {
		f, err := os.Create(analyzeOut)
		if err != nil {
			return eris.Wrapf(err, "create %s", analyzeOut)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzePoints, "points", "", "points file: .json, .csv, or .xlsx (required)")
	analyzeCmd.Flags().StringVar(&analyzeBands, "bands", "", "band geometry file: .geojson or .shp (required)")
	analyzeCmd.Flags().StringVar(&analyzeOut, "out", "", "write report JSON to this file instead of stdout")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "recompute even when a cached report exists")
	analyzeCmd.Flags().IntVar(&analyzeMaxArity, "max-arity", 3, "largest participant-set size to enumerate")
	analyzeCmd.Flags().IntVar(&analyzeMaxRegions, "max-regions", 100, "cap on emitted intersection regions")
	analyzeCmd.Flags().IntVar(&analyzeWorkers, "workers", 4, "parallel workers for intersection enumeration")
	_ = analyzeCmd.MarkFlagRequired("points")
	_ = analyzeCmd.MarkFlagRequired("bands")
	rootCmd.AddCommand(analyzeCmd)
}
