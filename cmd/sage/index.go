package main

import (
	"context"
	"fmt"
)

// IndexCmd re-embeds every page in the content source into the vector index.
type IndexCmd struct{}

func (c *IndexCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli.Config)
	if err != nil {
		return err
	}

	ctx := context.Background()
	app, err := buildApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	count, err := app.store.Reindex(ctx)
	if err != nil {
		return fmt.Errorf("reindex failed: %w", err)
	}

	fmt.Printf("Indexed %d pages.\n", count)
	return nil
}
