package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"survey-dashboard-service/internal/app"
	"survey-dashboard-service/internal/config"
	"survey-dashboard-service/internal/domain"
	"survey-dashboard-service/internal/export"
	"survey-dashboard-service/internal/filters"
)

type reportFlags struct {
	tenantID       int64
	userID         int64
	module         string
	period         string
	customRange    string
	filters        []string
	schools        []string
	applyBenchmark bool
	year           int
	question       string
	xlsx           string
}

// NewReportCmd computes one report and prints it as JSON.
func NewReportCmd(configPath *string) *cobra.Command {
	flags := &reportFlags{}
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Compute a single report and print it as JSON",
	}
	cmd.PersistentFlags().Int64Var(&flags.tenantID, "tenant", 0, "tenant id")
	cmd.PersistentFlags().Int64Var(&flags.userID, "user", 0, "user id (scopes the last-good mirror)")
	cmd.PersistentFlags().StringVar(&flags.module, "module", string(domain.ModuleParent), "survey module")
	cmd.PersistentFlags().StringVar(&flags.period, "period", string(domain.DefaultPeriodToken), "period token")
	cmd.PersistentFlags().StringVar(&flags.customRange, "range", "", "custom range, e.g. 2026-01-01 to 2026-03-31")
	cmd.PersistentFlags().StringArrayVar(&flags.filters, "filter", nil, "dimension=value, repeatable")
	cmd.PersistentFlags().StringSliceVar(&flags.schools, "schools", nil, "benchmark school types")
	cmd.PersistentFlags().StringVar(&flags.xlsx, "xlsx", "", "also write the series to this .xlsx file")
	_ = cmd.MarkPersistentFlagRequired("tenant")

	run := func(fn func(ctx context.Context, svc *services, req app.ReportRequest, out io.Writer) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer logger.Sync()
			svc, err := buildServices(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer svc.Close()
			req, err := flags.request()
			if err != nil {
				return err
			}
			return fn(cmd.Context(), svc, req, cmd.OutOrStdout())
		}
	}

	current := &cobra.Command{
		Use:   "current",
		Short: "NPS for the selected period (--xlsx writes the per-bucket series)",
		RunE: run(func(ctx context.Context, svc *services, req app.ReportRequest, out io.Writer) error {
			result, err := svc.reports.CurrentPeriod(ctx, req)
			if err != nil {
				return err
			}
			if flags.xlsx != "" {
				series, err := svc.reports.NpsSeries(ctx, req)
				if err != nil {
					return err
				}
				if err := writeFile(flags.xlsx, func(w io.Writer) error {
					return export.WriteSeries(w, "NPS "+string(req.Period.Token), series)
				}); err != nil {
					return err
				}
			}
			return printJSON(out, result)
		}),
	}
	previous := &cobra.Command{
		Use:   "previous",
		Short: "NPS for the window preceding the selected period",
		RunE: run(func(ctx context.Context, svc *services, req app.ReportRequest, out io.Writer) error {
			result, err := svc.reports.PreviousPeriod(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(out, result)
		}),
	}
	benchmark := &cobra.Command{
		Use:   "benchmark",
		Short: "Fleet benchmark and, with --apply, the tenant's percentile",
		RunE: run(func(ctx context.Context, svc *services, req app.ReportRequest, out io.Writer) error {
			req.ApplyBenchmark = flags.applyBenchmark
			result, err := svc.reports.Benchmark(ctx, req)
			if err != nil {
				return err
			}
			return printJSON(out, result)
		}),
	}
	benchmark.Flags().BoolVar(&flags.applyBenchmark, "apply", false, "compute the percentile")

	overTime := &cobra.Command{
		Use:   "over-time",
		Short: "Twelve monthly points: NPS, or the average score of --question",
		RunE: run(func(ctx context.Context, svc *services, req app.ReportRequest, out io.Writer) error {
			var (
				series domain.MonthlySeries
				title  = "NPS"
				err    error
			)
			if flags.question != "" {
				ref, perr := domain.ParseQuestionRef(flags.question)
				if perr != nil {
					return perr
				}
				title = "Score " + ref.String()
				series, err = svc.reports.ScoreOverTime(ctx, req, flags.year, ref)
			} else {
				series, err = svc.reports.NpsOverTime(ctx, req, flags.year)
			}
			if err != nil {
				return err
			}
			if flags.xlsx != "" {
				if err := writeFile(flags.xlsx, func(w io.Writer) error {
					return export.WriteMonthlySeries(w, title, flags.year, series)
				}); err != nil {
					return err
				}
			}
			return printJSON(out, series)
		}),
	}
	overTime.Flags().IntVar(&flags.year, "year", time.Now().Year(), "calendar year")
	overTime.Flags().StringVar(&flags.question, "question", "", "question reference, e.g. standard:12")

	cmd.AddCommand(current, previous, benchmark, overTime)
	return cmd
}

func (f *reportFlags) request() (app.ReportRequest, error) {
	module := domain.ModuleType(f.module)
	if !module.Valid() {
		return app.ReportRequest{}, fmt.Errorf("unknown module %q", f.module)
	}
	raw := domain.FilterSet{}
	for _, pair := range f.filters {
		dim, value, ok := strings.Cut(pair, "=")
		if !ok || dim == "" {
			return app.ReportRequest{}, fmt.Errorf("filter %q must be dimension=value", pair)
		}
		if raw[dim] == nil {
			raw[dim] = map[string]bool{}
		}
		raw[dim][value] = true
	}
	return app.ReportRequest{
		TenantID:         f.tenantID,
		UserID:           f.userID,
		ModuleType:       module,
		Period:           domain.PeriodSelection{Token: domain.PeriodToken(f.period), CustomRange: f.customRange},
		Filters:          filters.Normalize(raw, nil),
		BenchmarkSchools: f.schools,
	}, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
