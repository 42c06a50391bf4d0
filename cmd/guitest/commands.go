package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/entrhq/guitest/pkg/detect"
	"github.com/entrhq/guitest/pkg/history"
	"github.com/urfave/cli/v2"
)

func (a *app) detectCommand(c *cli.Context) error {
	dir := "."
	if c.NArg() > 0 {
		dir = c.Args().First()
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	project, err := detect.Detect(abs)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(project)
}

func (a *app) historyCommand(c *cli.Context) error {
	path := c.String("db")
	if path == "" {
		path = history.DefaultPath()
	}
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(history.Query{
		Project: c.String("project"),
		StoryID: c.String("story"),
		Limit:   c.Int("limit"),
	})
	if err != nil {
		return err
	}

	if c.Bool("json") {
		enc := json.NewEncoder(a.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(a.stdout, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tPROJECT\tSTORY\tSTATUS\tPASSED\tDURATION\tRUN")
	for _, e := range entries {
		r := e.Result
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			e.Recorded.Local().Format("2006-01-02 15:04:05"),
			e.Project,
			e.StoryID,
			status(r.TotalTests, r.FailedTests),
			r.PassedTests, r.TotalTests,
			(time.Duration(r.Duration) * time.Millisecond).Round(time.Millisecond),
			r.RunID,
		)
	}
	return tw.Flush()
}

func status(total, failed int) string {
	switch {
	case total == 0:
		return "skipped"
	case failed > 0:
		return "failed"
	}
	return "passed"
}
