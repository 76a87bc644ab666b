package main

import (
	"fmt"
	"os"

	"github.com/fwojciec/siteclone/yaml"
)

// Run executes the detect command.
func (c *DetectCmd) Run(deps *Dependencies) error {
	engine, closeEngine, err := deps.Engines.NewEngine(&c.EngineFlags)
	if err != nil {
		return err
	}
	defer closeEngine()

	menus, err := engine.DetectMenus(deps.Ctx, c.URL)
	if err != nil {
		return err
	}

	if c.Out == "" {
		return yaml.EncodeMenus(deps.Stdout, menus)
	}

	f, err := os.Create(c.Out)
	if err != nil {
		return err
	}
	if err := yaml.EncodeMenus(f, menus); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	fmt.Fprintf(deps.Stdout, "Wrote %d menus to %s\n", len(menus), c.Out)
	return nil
}
