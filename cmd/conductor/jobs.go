package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/becomeliminal/conductor/lens"
)

func newCompactCmd(configPath *string) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "compact",
		Short: "Merge semantically duplicate items",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			engine, err := a.compactor()
			if err != nil {
				return err
			}
			res, err := engine.Compact(cmd.Context(), project)
			if err != nil {
				return err
			}
			fmt.Printf("Compaction: %d clusters, %d items merged, %d failed\n",
				res.ClustersFound, res.ItemsMerged, res.Failed)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.MarkFlagRequired("project")

	return cmd
}

func newBackfillLinksCmd(configPath *string) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "backfill-links",
		Short: "Infer links from co-occurrence evidence",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			engine, err := a.linker()
			if err != nil {
				return err
			}
			res, err := engine.Backfill(cmd.Context(), project)
			if err != nil {
				return err
			}
			fmt.Printf("Links: %d created, %d updated, %d skipped\n",
				res.LinksCreated, res.LinksUpdated, res.Skipped)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.MarkFlagRequired("project")

	return cmd
}

func newConfidenceCmd(configPath *string) *cobra.Command {
	var project string

	cmd := &cobra.Command{
		Use:   "confidence",
		Short: "Recompute the project confidence score",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			scorer, err := a.scorer()
			if err != nil {
				return err
			}
			score, err := scorer.Recalculate(cmd.Context(), project)
			if err != nil {
				return err
			}
			fmt.Printf("Confidence: %.1f\n", score)
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.MarkFlagRequired("project")

	return cmd
}

func newClassifyCmd(configPath *string) *cobra.Command {
	var project string
	var maxAge time.Duration

	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Compute the project domain signal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			classifier, err := a.classifier()
			if err != nil {
				return err
			}
			sig, err := classifier.GetOrCompute(cmd.Context(), project, maxAge)
			if err != nil {
				return err
			}
			fmt.Printf("Primary: %s (%d messages analyzed)\n", sig.Primary, sig.ConversationsAnalyzed)
			for _, d := range sig.Domains {
				fmt.Printf("  %-12s %.2f (%d messages)\n", d.Domain, d.Confidence, d.Evidence)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.Flags().DurationVar(&maxAge, "max-age", 30*time.Minute, "Reuse a cached signal younger than this")
	cmd.MarkFlagRequired("project")

	return cmd
}

func newRankCmd(configPath *string) *cobra.Command {
	var project, query string
	var lensMultiplier float64
	var focusDomains []string

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "Rank items for injection",
		Example: `  conductor rank --project p1
  conductor rank --project p1 --lens 0.5 --focus coding
  conductor rank --project p1 --query "how do we run migrations?"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			l, err := a.lens()
			if err != nil {
				return err
			}
			ranked, err := l.Rank(cmd.Context(), project, lens.Options{
				Lens:         lensMultiplier,
				FocusDomains: focusDomains,
				Query:        query,
			})
			if err != nil {
				return err
			}
			if len(ranked) == 0 {
				fmt.Println("No items to inject.")
				return nil
			}
			fmt.Print(lens.FormatInjection(ranked, lensMultiplier, a.cfg.Lens.BaseChars))
			return nil
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.Flags().Float64Var(&lensMultiplier, "lens", 1.0, "Injection budget multiplier (0.25-2.0)")
	cmd.Flags().StringSliceVar(&focusDomains, "focus", nil, "Domains to boost by 15%")
	cmd.Flags().StringVarP(&query, "query", "q", "", "Query text for similarity ranking")
	cmd.MarkFlagRequired("project")

	return cmd
}

func newMaintainCmd(configPath *string) *cobra.Command {
	var project string
	var every time.Duration

	cmd := &cobra.Command{
		Use:   "maintain",
		Short: "Run compact, backfill, and confidence in sequence",
		Example: `  conductor maintain --project p1
  conductor maintain --project p1 --every 1h`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			runner, err := a.runner()
			if err != nil {
				return err
			}

			if every <= 0 {
				report, err := runner.RunOnce(cmd.Context(), project)
				if err != nil {
					return err
				}
				fmt.Printf("Maintenance: merged=%d links=%d/%d confidence=%.1f (%s)\n",
					report.Compaction.ItemsMerged, report.Links.LinksCreated,
					report.Links.LinksUpdated, report.Confidence,
					report.Duration.Round(time.Millisecond))
				return nil
			}

			if addr := a.cfg.Metrics.ListenAddr; addr != "" {
				go serveMetrics(addr)
			}
			return runner.RunEvery(cmd.Context(), project, every)
		},
	}

	cmd.Flags().StringVarP(&project, "project", "p", "", "Project ID")
	cmd.Flags().DurationVar(&every, "every", 0, "Repeat on this interval instead of running once")
	cmd.MarkFlagRequired("project")

	return cmd
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	log.Printf("[METRICS] Serving /metrics on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Printf("[METRICS] Server stopped: %v", err)
	}
}
