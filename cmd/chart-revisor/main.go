package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"chart-revisor/internal/config"
	"chart-revisor/internal/database"
	"chart-revisor/internal/logger"
	"chart-revisor/internal/models"
	"chart-revisor/internal/report"
	"chart-revisor/internal/repository"
	"chart-revisor/internal/schema"
	"chart-revisor/internal/service"
	"chart-revisor/internal/stager"
	"chart-revisor/internal/transformer"
	"chart-revisor/internal/workflow"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "chart-revisor")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	root := &cobra.Command{
		Use:           "chart-revisor",
		Short:         "Stage suggested chart revisions for an indicator remapping",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSuggestCmd(cfg, log))
	root.AddCommand(newTransitionCmd(cfg, log, "approve", "Approve a suggested revision"))
	root.AddCommand(newTransitionCmd(cfg, log, "reject", "Reject a suggested revision"))
	root.AddCommand(newTransitionCmd(cfg, log, "flag", "Flag a suggested revision for discussion"))

	if err := root.Execute(); err != nil {
		log.Error("Command failed", zap.Error(err))
		os.Exit(1)
	}
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	return database.NewPostgresDB(&cfg.Database)
}

func newSuggestCmd(cfg *config.Config, log *zap.Logger) *cobra.Command {
	var (
		mappingPath string
		chartIDs    []int64
		reportPath  string
	)

	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Locate affected charts and stage suggested revisions",
		RunE: func(cmd *cobra.Command, args []string) error {
			mapping, err := loadMapping(mappingPath)
			if err != nil {
				return err
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			var redisClient *redis.Client
			if cfg.Redis.Enabled {
				redisClient = redis.NewClient(&redis.Options{
					Addr:     cfg.Redis.Addr,
					Password: cfg.Redis.Password,
					DB:       cfg.Redis.DB,
				})
				defer redisClient.Close()
			}

			registry := schema.NewRegistryClient(
				cfg.Schema.URL,
				time.Duration(cfg.Schema.TimeoutSecs)*time.Second,
				cfg.Schema.RetryCount,
				redisClient,
				time.Duration(cfg.Schema.CacheTTLSecs)*time.Second,
				log,
			)

			engine := service.NewEngine(
				repository.NewPostgresChartsRepo(db, log),
				repository.NewPostgresVariablesRepo(db),
				registry,
				transformer.New(log),
				stager.New(repository.NewPostgresRevisionsRepo(db, log), cfg.CreatedBy, log),
				cfg.WorkerCount,
				log,
			)

			rep, err := engine.SuggestRevisions(cmd.Context(), service.RunOptions{
				Mapping:  mapping,
				ChartIDs: chartIDs,
			})
			if err != nil {
				return err
			}

			fmt.Printf("run %s: %d charts examined, %d staged, %d skipped, %d conflicts\n",
				rep.RunID, rep.ChartsExamined, len(rep.Staged), len(rep.Skipped), len(rep.Conflicts))
			for _, s := range rep.Skipped {
				fmt.Printf("  skipped chart %d: %s\n", s.ChartID, s.Reason)
			}
			for _, c := range rep.Conflicts {
				fmt.Printf("  CONFLICT chart %d: revisions %v need manual resolution\n", c.ChartID, c.RevisionIDs)
			}

			if reportPath != "" {
				data, err := report.GenerateRunReport(rep)
				if err != nil {
					return fmt.Errorf("generate report: %w", err)
				}
				if err := os.WriteFile(reportPath, data, 0o644); err != nil {
					return fmt.Errorf("write report: %w", err)
				}
				fmt.Printf("triage report written to %s\n", reportPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mappingPath, "mapping", "", "path to a JSON file of old->new indicator ids")
	cmd.Flags().Int64SliceVar(&chartIDs, "charts", nil, "explicit chart ids, bypassing discovery")
	cmd.Flags().StringVar(&reportPath, "report", "", "write an xlsx triage report to this path")
	cmd.MarkFlagRequired("mapping")
	return cmd
}

func newTransitionCmd(cfg *config.Config, log *zap.Logger, verb, short string) *cobra.Command {
	var push bool

	cmd := &cobra.Command{
		Use:   verb + " <revision-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			revisionID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid revision id %q", args[0])
			}

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close(db)

			wf := workflow.New(repository.NewPostgresRevisionsRepo(db, log), log)

			var rev *models.SuggestedRevision
			switch verb {
			case "approve":
				rev, err = wf.Approve(cmd.Context(), revisionID)
			case "reject":
				rev, err = wf.Reject(cmd.Context(), revisionID)
			case "flag":
				rev, err = wf.Flag(cmd.Context(), revisionID)
			}
			if err != nil {
				return err
			}
			fmt.Printf("revision %d is now %s\n", rev.ID, rev.Status)

			if push && verb == "approve" {
				if cfg.AdminAPI.BaseURL == "" {
					return fmt.Errorf("ADMIN_API_URL is not configured")
				}
				admin := service.NewAdminClient(cfg.AdminAPI.BaseURL, cfg.AdminAPI.SessionCookie, log)
				if err := admin.UpdateChart(context.Background(), rev.ChartID, rev.SuggestedConfig); err != nil {
					return err
				}
				fmt.Printf("chart %d updated via admin API\n", rev.ChartID)
			}
			return nil
		},
	}

	if verb == "approve" {
		cmd.Flags().BoolVar(&push, "push", false, "push the approved config live via the admin API")
	}
	return cmd
}

// loadMapping reads an old->new indicator id mapping from a JSON object.
// JSON object keys are strings, so the file looks like {"2711": 104923}.
func loadMapping(path string) (models.IndicatorMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mapping file: %w", err)
	}
	byKey := map[string]int{}
	if err := json.Unmarshal(data, &byKey); err != nil {
		return nil, fmt.Errorf("parse mapping file: %w", err)
	}
	mapping := models.IndicatorMapping{}
	for key, newID := range byKey {
		oldID, err := strconv.Atoi(key)
		if err != nil {
			return nil, fmt.Errorf("mapping key %q is not an indicator id", key)
		}
		mapping[oldID] = newID
	}
	return mapping, nil
}
