package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fwojciec/siteclone"
	"github.com/fwojciec/siteclone/crawl"
	"github.com/fwojciec/siteclone/fs"
	"github.com/fwojciec/siteclone/yaml"
)

// Run executes the clone command.
func (c *CloneCmd) Run(deps *Dependencies) error {
	req := siteclone.CloneRequest{URL: c.URL}
	if c.Menus != "" {
		menus, err := yaml.LoadMenus(c.Menus)
		if err != nil {
			return fmt.Errorf("load menus: %w", err)
		}
		req.Menus = menus
	}

	engine, closeEngine, err := deps.Engines.NewEngine(&c.EngineFlags)
	if err != nil {
		return err
	}
	defer closeEngine()
	engine.NewPageStore = pageStores(StoreOptions{Dir: c.Out, Markdown: c.Markdown}, deps.Logger)
	engine.Screenshots = c.Screenshots

	sessions := crawl.NewSessions(engine, deps.Archive, deps.Logger)
	defer sessions.Close()

	started, err := sessions.StartSession(deps.Ctx, req)
	if err != nil {
		return err
	}
	events, err := sessions.Subscribe(deps.Ctx, started.ID)
	if err != nil {
		return err
	}

	var s *spinner.Spinner
	if !c.Quiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(deps.Stderr))
		s.Suffix = " starting"
		s.Start()
	}
	for e := range events {
		if s != nil {
			s.Suffix = " " + progressLine(e)
		}
	}
	if s != nil {
		s.Stop()
	}

	// The event stream also ends when the command is interrupted.
	if deps.Ctx.Err() != nil {
		_ = sessions.CancelSession(context.Background(), started.ID)
	}
	snap, err := sessions.Wait(context.Background(), started.ID)
	if err != nil {
		return err
	}
	return c.report(deps, snap)
}

func (c *CloneCmd) report(deps *Dependencies, snap *siteclone.SessionSnapshot) error {
	status := snap.Status
	for _, e := range status.Errors {
		if e.URL != "" {
			fmt.Fprintf(deps.Stderr, "skip %s: %s\n", e.URL, e.Message)
		}
	}

	dir := filepath.Join(c.Out, fs.DirName(snap.RootURL, snap.ID))
	switch status.Phase {
	case siteclone.PhaseDone:
		fmt.Fprintf(deps.Stdout, "Cloned %d pages to %s\n", len(snap.Captured), dir)
	case siteclone.PhaseCancelled:
		fmt.Fprintf(deps.Stdout, "Cancelled after %d pages, partial clone in %s\n", len(snap.Captured), dir)
		return siteclone.Errorf(siteclone.ECANCELED, "clone cancelled")
	default:
		return fatalError(status)
	}
	if n := len(status.Skipped); n > 0 {
		fmt.Fprintf(deps.Stdout, "Skipped %d near-duplicate pages\n", n)
	}
	fmt.Fprintf(deps.Stdout, "Session %s\n", snap.ID)
	return nil
}

// fatalError returns the error that ended a failed session.
func fatalError(status siteclone.Status) error {
	for i := len(status.Errors) - 1; i >= 0; i-- {
		if e := status.Errors[i]; e.URL == "" {
			return siteclone.Errorf(e.Code, "%s", e.Message)
		}
	}
	return siteclone.Errorf(siteclone.EINTERNAL, "%s", status.Message)
}

// progressLine renders an event for the spinner, e.g.
// "crawl 3/10 30% x.com/company/about".
func progressLine(e siteclone.Event) string {
	line := crawl.FormatProgress(string(e.Phase), e.Current, e.Total)
	if e.CurrentURL != "" {
		line += " " + crawl.TruncateURL(e.CurrentURL, 50)
	}
	return line
}
