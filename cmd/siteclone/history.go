package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fwojciec/siteclone"
)

// Run executes the history list command.
func (c *HistoryListCmd) Run(deps *Dependencies) error {
	filter := siteclone.SessionFilter{Limit: c.Limit}
	if c.Root != "" {
		filter.RootURL = &c.Root
	}
	if c.Phase != "" {
		phase := siteclone.Phase(c.Phase)
		if !phase.Terminal() {
			return siteclone.Errorf(siteclone.EINVALID, "phase must be done, error or cancelled")
		}
		filter.Phase = &phase
	}

	sessions, err := deps.Archive.FindArchivedSessions(deps.Ctx, filter)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(deps.Stdout, "No sessions archived")
		return nil
	}

	w := tabwriter.NewWriter(deps.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTARTED\tPHASE\tPAGES\tERRORS\tROOT")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
			s.ID,
			s.CreatedAt.Local().Format(time.DateTime),
			s.Status.Phase,
			len(s.Captured),
			len(s.Status.Errors),
			s.RootURL,
		)
	}
	return w.Flush()
}

// Run executes the history show command.
func (c *HistoryShowCmd) Run(deps *Dependencies) error {
	s, err := deps.Archive.FindArchivedSessionByID(deps.Ctx, c.ID)
	if err != nil {
		return err
	}

	out := deps.Stdout
	fmt.Fprintf(out, "Session  %s\n", s.ID)
	fmt.Fprintf(out, "Root     %s\n", s.RootURL)
	fmt.Fprintf(out, "Phase    %s\n", s.Status.Phase)
	fmt.Fprintf(out, "Started  %s\n", s.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "Duration %s\n", s.UpdatedAt.Sub(s.CreatedAt).Round(time.Second))
	if s.Status.Message != "" {
		fmt.Fprintf(out, "Message  %s\n", s.Status.Message)
	}

	if len(s.Menus) > 0 {
		fmt.Fprintln(out, "\nMenus:")
		for _, m := range s.Menus {
			if len(m.Items) == 0 {
				fmt.Fprintf(out, "  %s -> %s\n", m.Trigger, m.URL)
				continue
			}
			fmt.Fprintf(out, "  %s\n", m.Trigger)
			for _, item := range m.Items {
				fmt.Fprintf(out, "    %s -> %s\n", item.Name, item.URL)
			}
		}
	}

	if len(s.Captured) > 0 {
		fmt.Fprintln(out, "\nPages:")
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, p := range s.Captured {
			fmt.Fprintf(w, "  %s\t%s\t%s\n", p.File, p.Priority, p.URL)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(s.Status.Skipped) > 0 {
		fmt.Fprintln(out, "\nSkipped:")
		for _, sk := range s.Status.Skipped {
			fmt.Fprintf(out, "  %s (duplicate of %s)\n", sk.URL, sk.DuplicateOf)
		}
	}

	if len(s.Status.Errors) > 0 {
		fmt.Fprintln(out, "\nErrors:")
		for _, e := range s.Status.Errors {
			target := e.URL
			if target == "" {
				target = "(session)"
			}
			fmt.Fprintf(out, "  %s %s: %s\n", e.Code, target, e.Message)
		}
	}
	return nil
}

// Run executes the history delete command.
func (c *HistoryDeleteCmd) Run(deps *Dependencies) error {
	if !c.Force {
		return siteclone.Errorf(siteclone.EINVALID, "use --force to confirm deletion of session %s", c.ID)
	}
	if err := deps.Archive.DeleteArchivedSession(deps.Ctx, c.ID); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "Deleted session %s\n", c.ID)
	return nil
}
