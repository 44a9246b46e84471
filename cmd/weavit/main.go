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
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	weavit "github.com/poiesic/weavit"
	"github.com/poiesic/weavit/config"
	"github.com/poiesic/weavit/core"
	"github.com/poiesic/weavit/ingestion"
)

func main() {
	app := &cli.App{
		Name:  "weavit",
		Usage: "Document ingestion and knowledge synchronization pipeline",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML configuration file",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest files or directories",
				ArgsUsage: "PATH [PATH...]",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "project",
						Aliases: []string{"p"},
						Usage:   "Project the documents belong to",
						Value:   "default",
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Tag applied to every submitted document (repeatable)",
					},
					&cli.BoolFlag{
						Name:    "recursive",
						Aliases: []string{"r"},
						Usage:   "Descend into subdirectories",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Block until every submitted job reaches a terminal status",
					},
				},
			},
			{
				Name:      "ingest-url",
				Usage:     "Fetch a URL and ingest its content",
				ArgsUsage: "URL",
				Action:    ingestURLCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "project",
						Aliases: []string{"p"},
						Usage:   "Project the document belongs to",
						Value:   "default",
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Tag applied to the document (repeatable)",
					},
					&cli.BoolFlag{
						Name:  "wait",
						Usage: "Block until the job reaches a terminal status",
					},
				},
			},
			{
				Name:      "watch",
				Usage:     "Watch a directory and ingest files as they appear",
				ArgsUsage: "DIR",
				Action:    watchCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "project",
						Aliases: []string{"p"},
						Usage:   "Project the documents belong to",
						Value:   "default",
					},
					&cli.StringSliceFlag{
						Name:  "tag",
						Usage: "Tag applied to every submitted document (repeatable)",
					},
					&cli.DurationFlag{
						Name:  "debounce",
						Usage: "Settle delay before a changed file is submitted",
						Value: ingestion.DefaultDebounce,
					},
				},
			},
			{
				Name:      "status",
				Usage:     "Show the status of an ingestion job, or recent jobs",
				ArgsUsage: "[INGESTION_ID]",
				Action:    statusCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Number of recent jobs to list when no ID is given",
						Value: 20,
					},
				},
			},
			{
				Name:   "sweep",
				Usage:  "Run one reconciliation pass over pending sync tasks",
				Action: sweepCommand,
			},
			{
				Name:      "query",
				Usage:     "Search ingested documents",
				ArgsUsage: "TEXT",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:    "max-hits",
						Aliases: []string{"n"},
						Usage:   "Maximum number of results",
						Value:   10,
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// openEngine loads configuration and connects the full stack.
func openEngine(c *cli.Context) (*weavit.Engine, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	engine, err := weavit.NewEngine(c.Context, cfg)
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func ingestCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("at least one file or directory is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	var ids []string
	for _, path := range c.Args().Slice() {
		info, err := os.Stat(path)
		if err != nil {
			return fmt.Errorf("stat %s: %w", path, err)
		}

		if info.IsDir() {
			batchIds, err := engine.Pipeline().SubmitBatch(c.Context, ingestion.BatchRequest{
				Root:      path,
				Recursive: c.Bool("recursive"),
				Project:   c.String("project"),
				Tags:      c.StringSlice("tag"),
			})
			if err != nil {
				return fmt.Errorf("submit %s: %w", path, err)
			}
			ids = append(ids, batchIds...)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		id, err := engine.Pipeline().SubmitFile(c.Context, ingestion.SubmitRequest{
			Filename: path,
			Content:  data,
			Project:  c.String("project"),
			Tags:     c.StringSlice("tag"),
		})
		if err != nil {
			return fmt.Errorf("submit %s: %w", path, err)
		}
		ids = append(ids, id)
	}

	for _, id := range ids {
		fmt.Println(id)
	}

	if c.Bool("wait") {
		return waitForJobs(c.Context, engine, ids)
	}
	return nil
}

func ingestURLCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one URL is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	id, err := engine.Pipeline().SubmitURL(c.Context, ingestion.URLRequest{
		URL:     c.Args().First(),
		Project: c.String("project"),
		Tags:    c.StringSlice("tag"),
	})
	if err != nil {
		return err
	}
	fmt.Println(id)

	if c.Bool("wait") {
		return waitForJobs(c.Context, engine, []string{id})
	}
	return nil
}

// waitForJobs streams progress updates until every job is terminal.
func waitForJobs(ctx context.Context, engine *weavit.Engine, ids []string) error {
	failed := 0
	for _, id := range ids {
		updates, unsubscribe := engine.Tracker().Subscribe(id)
		for snapshot := range updates {
			fmt.Fprintf(os.Stderr, "%s  %3d%%  %-10s  %s\n",
				snapshot.IngestionId, snapshot.Percent, snapshot.Status, snapshot.Message)
			if snapshot.Status == core.StatusFailed {
				failed++
			}
			if ctx.Err() != nil {
				unsubscribe()
				return ctx.Err()
			}
		}
		unsubscribe()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d jobs failed", failed, len(ids))
	}
	return nil
}

func watchCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("exactly one directory is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	// The sweep runs alongside the watcher so partial jobs heal while
	// the process is up.
	if err := engine.Sweeper().Start(); err != nil {
		return err
	}

	watcher := ingestion.NewWatcher(engine.Pipeline(), c.Args().First(), c.String("project"),
		ingestion.WithDebounce(c.Duration("debounce")),
		ingestion.WithWatcherTags(c.StringSlice("tag")))
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	fmt.Fprintf(os.Stderr, "watching %s (project %s), ctrl-c to stop\n",
		c.Args().First(), c.String("project"))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	select {
	case <-sig:
	case <-c.Context.Done():
	}
	return nil
}

func statusCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	if c.NArg() >= 1 {
		snapshot, err := engine.Pipeline().Status(c.Context, c.Args().First())
		if err != nil {
			return err
		}
		fmt.Printf("%s  %3d%%  %-10s  %s\n",
			snapshot.IngestionId, snapshot.Percent, snapshot.Status, snapshot.Message)
		return nil
	}

	jobs, err := engine.Journal().ListJobs(c.Context, c.Int("limit"))
	if err != nil {
		return err
	}
	for _, job := range jobs {
		line := fmt.Sprintf("%s  %-10s  %s", job.IngestionId, job.Status, job.Filename)
		if job.Error != "" {
			line += "  (" + job.Error + ")"
		}
		fmt.Println(line)
	}
	return nil
}

func sweepCommand(c *cli.Context) error {
	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	start := time.Now()
	completed, err := engine.Sweeper().RunOnce(c.Context)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "repaired %d tasks in %s\n", completed, time.Since(start).Round(time.Millisecond))
	return nil
}

func queryCommand(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("query text is required")
	}

	engine, err := openEngine(c)
	if err != nil {
		return err
	}
	defer engine.Close()

	searcher, err := engine.NewSearcher()
	if err != nil {
		return err
	}

	results, err := searcher.Query(c.Context, strings.Join(c.Args().Slice(), " "), c.Int("max-hits"))
	if err != nil {
		return err
	}
	for _, r := range results {
		title := "(document missing)"
		if r.Document != nil {
			title = r.Document.Title
		}
		fmt.Printf("%.3f  %s\n    %s\n", r.Score, title, firstLine(r.Content))
	}
	return nil
}

// firstLine trims a chunk to a single display line.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if runes := []rune(s); len(runes) > 120 {
		s = string(runes[:120]) + "..."
	}
	return s
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
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
