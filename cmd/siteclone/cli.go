package main

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/fwojciec/siteclone"
)

// Dependencies holds all services and configuration for command execution.
type Dependencies struct {
	Ctx     context.Context
	Stdout  io.Writer
	Stderr  io.Writer
	Logger  *slog.Logger
	Archive siteclone.SessionArchive
	Engines EngineFactory
}

// CLI defines the command-line interface structure for Kong.
type CLI struct {
	Verbose bool `short:"v" help:"Log debug output"`

	Detect  DetectCmd  `cmd:"" help:"Detect the navigation menus of a site"`
	Clone   CloneCmd   `cmd:"" help:"Clone a site into a local directory"`
	Serve   ServeCmd   `cmd:"" help:"Run the clone HTTP API"`
	History HistoryCmd `cmd:"" help:"Inspect archived clone sessions"`
}

// EngineFlags configure the crawl engine. They are shared by every command
// that loads pages.
type EngineFlags struct {
	Policy       string  `type:"existingfile" help:"YAML crawl policy file"`
	Profile      string  `help:"Crawl profile (default, corporate, ecommerce, blog, portfolio, spa, landing)"`
	MaxPages     int     `help:"Override the page budget"`
	MaxDepth     int     `help:"Override the maximum link depth"`
	Concurrency  int     `short:"c" help:"Override the number of capture workers"`
	RPS          float64 `name:"rps" help:"Override requests per second per host (0 keeps the policy value)"`
	Static       bool    `help:"Fetch pages over plain HTTP without a browser (no hover menus)"`
	Extractor    string  `enum:"goquery,trafilatura,readability" default:"goquery" help:"Main-content extractor used by the quality gate"`
	Sitemap      bool    `help:"Seed the crawl from the site's sitemaps"`
	Robots       bool    `help:"Skip URLs disallowed by robots.txt"`
	RecycleAfter int     `default:"75" help:"Tabs per browser before it is restarted"`
	Headful      bool    `help:"Show the browser window"`
}

// DetectCmd is the "detect" subcommand.
type DetectCmd struct {
	EngineFlags

	URL string `arg:"" help:"Site root URL"`
	Out string `short:"o" help:"Write the menus to this YAML file instead of stdout"`
}

// CloneCmd is the "clone" subcommand.
type CloneCmd struct {
	EngineFlags

	URL         string `arg:"" help:"Site root URL"`
	Out         string `short:"o" default:"." help:"Directory receiving the clone"`
	Menus       string `type:"existingfile" help:"Pre-approved menus (YAML or JSON) used instead of detection"`
	Markdown    bool   `help:"Write a markdown file next to every captured page"`
	Screenshots bool   `help:"Write a PNG screenshot next to every captured page"`
	Quiet       bool   `short:"q" help:"Hide the progress spinner"`
}

// ServeCmd is the "serve" subcommand.
type ServeCmd struct {
	EngineFlags

	Addr      string        `default:"127.0.0.1:8080" help:"Listen address"`
	Out       string        `short:"o" default:"." help:"Directory receiving clones"`
	Markdown  bool          `help:"Write a markdown file next to every captured page"`
	Retention time.Duration `help:"How long finished sessions stay in memory (0 keeps the policy value)"`
}

// HistoryCmd groups the archive subcommands.
type HistoryCmd struct {
	List   HistoryListCmd   `cmd:"" default:"withargs" help:"List archived sessions, newest first"`
	Show   HistoryShowCmd   `cmd:"" help:"Show one archived session"`
	Delete HistoryDeleteCmd `cmd:"" help:"Delete an archived session"`
}

// HistoryListCmd is the "history list" subcommand.
type HistoryListCmd struct {
	Root  string `help:"Only sessions of this root URL"`
	Phase string `help:"Only sessions that ended in this phase (done, error, cancelled)"`
	Limit int    `short:"n" default:"20" help:"Maximum number of sessions"`
}

// HistoryShowCmd is the "history show" subcommand.
type HistoryShowCmd struct {
	ID string `arg:"" help:"Session ID"`
}

// HistoryDeleteCmd is the "history delete" subcommand.
type HistoryDeleteCmd struct {
	ID    string `arg:"" help:"Session ID"`
	Force bool   `help:"Confirm deletion"`
}
