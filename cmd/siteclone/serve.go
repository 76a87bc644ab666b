package main

import (
	"fmt"
	"net"

	"github.com/fwojciec/siteclone/crawl"
	schttp "github.com/fwojciec/siteclone/http"
)

// Run executes the serve command. It blocks until the context is done.
func (c *ServeCmd) Run(deps *Dependencies) error {
	engine, closeEngine, err := deps.Engines.NewEngine(&c.EngineFlags)
	if err != nil {
		return err
	}
	defer closeEngine()
	engine.NewPageStore = pageStores(StoreOptions{Dir: c.Out, Markdown: c.Markdown}, deps.Logger)

	sessions := crawl.NewSessions(engine, deps.Archive, deps.Logger)
	sessions.Retention = c.Retention
	defer sessions.Close()

	ln, err := net.Listen("tcp", c.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", c.Addr, err)
	}
	fmt.Fprintf(deps.Stdout, "Listening on http://%s\n", ln.Addr())

	server := schttp.NewServer(sessions, engine, deps.Logger)
	return server.Serve(deps.Ctx, ln)
}
