// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/poiesic/rankit"
	"github.com/poiesic/rankit/config"
	"github.com/poiesic/rankit/core"
	"github.com/poiesic/rankit/rerank"
	"github.com/urfave/cli/v2"
)

const (
	configKey = "config"

	// defaultTop matches the number of candidates shown in a job summary.
	defaultTop = 5
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// newApp builds the CLI. Service options are appended to those derived from
// configuration.
func newApp(serviceOpts ...rankit.ServiceOption) *cli.App {
	return &cli.App{
		Name:  "rankit",
		Usage: "Rank documents against a job description by semantic similarity",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a rankit.yaml configuration file",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory",
			},
			&cli.StringFlag{
				Name:  "upload-dir",
				Usage: "Directory documents are staged into",
			},
			&cli.StringFlag{
				Name:  "embedding-host",
				Usage: "Embedding service host URL",
			},
			&cli.StringFlag{
				Name:  "embedding-model",
				Usage: "Embedding model name",
			},
		},
		Before: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if err := setupLogger(cfg.LogLevel); err != nil {
				return err
			}
			if c.App.Metadata == nil {
				c.App.Metadata = map[string]any{}
			}
			c.App.Metadata[configKey] = cfg
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "rank",
				Usage:     "Rank documents against a query and wait for the results",
				ArgsUsage: "FILE [FILE...]",
				Action:    withService(rankCommand, serviceOpts),
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "query",
						Aliases:  []string{"q"},
						Usage:    "Job description or query text",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "job-id",
						Usage: "Job identifier (generated when empty)",
					},
					&cli.BoolFlag{
						Name:  "detailed",
						Usage: "Attach skill, experience and education scores",
					},
					&cli.DurationFlag{
						Name:  "poll-interval",
						Usage: "How often to report progress",
						Value: 200 * time.Millisecond,
					},
					jsonFlag(),
					topFlag(),
				},
			},
			{
				Name:      "results",
				Usage:     "Print the results of a persisted job",
				ArgsUsage: "JOB_ID",
				Action:    withService(resultsCommand, serviceOpts),
				Flags:     []cli.Flag{jsonFlag(), topFlag()},
			},
			{
				Name:   "jobs",
				Usage:  "List persisted jobs, most recent first",
				Action: withService(jobsCommand, serviceOpts),
			},
			{
				Name:      "delete",
				Usage:     "Delete a job, its results and its staged documents",
				ArgsUsage: "JOB_ID",
				Action:    withService(deleteCommand, serviceOpts),
			},
			{
				Name:      "rerank",
				Usage:     "Re-embed a persisted job with the configured model and rank it again",
				ArgsUsage: "JOB_ID",
				Action:    withService(rerankCommand, serviceOpts),
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of documents to embed per call",
						Value: rerank.DefaultConfig().BatchSize,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: rerank.DefaultConfig().ReportInterval,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: rerank.DefaultConfig().MaxRetries,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: rerank.DefaultConfig().RetryDelay,
					},
					topFlag(),
				},
			},
		},
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Print results as JSON",
	}
}

func topFlag() cli.Flag {
	return &cli.IntFlag{
		Name:  "top",
		Usage: "Number of top candidates to print (0 prints all)",
		Value: defaultTop,
	}
}

// loadConfig reads configuration and applies the global flags over it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	if c.IsSet("db") {
		cfg.DataDir = c.String("db")
		cfg.InMemory = false
	}
	if c.IsSet("upload-dir") {
		cfg.UploadDir = c.String("upload-dir")
	}
	if c.IsSet("embedding-host") {
		cfg.Embedding.Host = c.String("embedding-host")
	}
	if c.IsSet("embedding-model") {
		cfg.Embedding.Model = c.String("embedding-model")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type serviceAction func(c *cli.Context, svc *rankit.Service, cfg *config.Config) error

// withService opens a Service for the duration of one command.
func withService(action serviceAction, extra []rankit.ServiceOption) cli.ActionFunc {
	return func(c *cli.Context) error {
		cfg, ok := c.App.Metadata[configKey].(*config.Config)
		if !ok {
			return fmt.Errorf("configuration not loaded")
		}
		if c.Command.Name == "rank" && c.IsSet("detailed") {
			cfg.Pipeline.DetailedScoring = c.Bool("detailed")
		}

		opts := append([]rankit.ServiceOption{
			rankit.WithConfig(cfg),
			rankit.WithLogger(slog.Default()),
		}, extra...)
		svc, err := rankit.NewService(opts...)
		if err != nil {
			return fmt.Errorf("failed to open service: %w", err)
		}
		defer svc.Close()

		return action(c, svc, cfg)
	}
}

func rankCommand(c *cli.Context, svc *rankit.Service, cfg *config.Config) error {
	ctx := context.Background()
	paths := c.Args().Slice()
	if len(paths) == 0 {
		return fmt.Errorf("at least one document is required")
	}

	jobID, err := svc.Rank(ctx, c.String("job-id"), paths, c.String("query"))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "Job %s: ranking %d documents\n", jobID, len(paths))

	record, err := svc.WaitForJob(ctx, jobID, c.Duration("poll-interval"), func(r core.StatusRecord) {
		fmt.Fprintf(c.App.ErrWriter, "\r[%3d%%] %-60s", r.Progress, r.Message)
	})
	fmt.Fprintln(c.App.ErrWriter)
	if err != nil {
		return err
	}
	if record.State == core.JobStateFailed {
		return fmt.Errorf("job %s failed: %s", jobID, record.Message)
	}

	return printPayload(c, record.Result)
}

func resultsCommand(c *cli.Context, svc *rankit.Service, cfg *config.Config) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}
	payload, err := svc.Summary(context.Background(), jobID)
	if err != nil {
		return err
	}
	return printPayload(c, payload)
}

func jobsCommand(c *cli.Context, svc *rankit.Service, cfg *config.Config) error {
	jobs, err := svc.Jobs(context.Background())
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Fprintln(c.App.Writer, "No jobs found")
		return nil
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "JOB ID\tCREATED\tSTATE\tRANKED\tQUERY")
	for _, job := range jobs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%s\n",
			job.ID, job.CreatedAt.Local().Format(time.DateTime), job.State,
			job.ProcessedDocuments, len(job.Documents), truncate(job.Query, 50))
	}
	return w.Flush()
}

func deleteCommand(c *cli.Context, svc *rankit.Service, cfg *config.Config) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}
	if err := svc.Delete(context.Background(), jobID); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted job %s\n", jobID)
	return nil
}

func rerankCommand(c *cli.Context, svc *rankit.Service, cfg *config.Config) error {
	jobID, err := jobIDArg(c)
	if err != nil {
		return err
	}

	rerankConfig := &rerank.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if rerankConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if rerankConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if rerankConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.Embedding.Host)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.Embedding.Model)
	fmt.Fprintln(c.App.ErrWriter)

	payload, err := svc.Rerank(context.Background(), jobID, rerankConfig, c.App.ErrWriter)
	if err != nil {
		return fmt.Errorf("rerank failed: %w", err)
	}
	return printPayload(c, payload)
}

func jobIDArg(c *cli.Context) (string, error) {
	if c.NArg() != 1 {
		return "", fmt.Errorf("expected exactly one JOB_ID argument")
	}
	return c.Args().First(), nil
}

// printPayload writes a result payload as JSON or as a table of the top
// candidates.
func printPayload(c *cli.Context, payload *core.ResultPayload) error {
	if payload == nil {
		return fmt.Errorf("job has no results")
	}
	if c.Bool("json") {
		enc := json.NewEncoder(c.App.Writer)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	top := payload.Rankings
	if n := c.Int("top"); n > 0 {
		top = payload.TopCandidates(n)
	}

	fmt.Fprintf(c.App.Writer, "Ranked %d of %d documents (extracted %d, parsed %d)\n\n",
		payload.Summary.Ranked, payload.TotalDocuments, payload.Summary.Extracted, payload.Summary.Parsed)

	w := tabwriter.NewWriter(c.App.Writer, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tSCORE\tNAME\tEMAIL\tSKILLS")
	for _, r := range top {
		email, skills := "", ""
		if r.Fields != nil {
			email = r.Fields.Email
			skills = truncate(strings.Join(r.Fields.Skills, ", "), 40)
		}
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\t%s\n", r.Rank, r.Score, r.Name, email, skills)
	}
	return w.Flush()
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}

func setupLogger(levelStr string) error {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
