package main

import (
	"context"
	"fmt"

	"advocase/internal/db"
	"advocase/internal/store"

	"github.com/k0kubun/pp/v3"
	"github.com/urfave/cli/v2"
)

var dumpCommand = &cli.Command{
	Name:      "dump",
	Usage:     "Pretty-print a case row with its grants, for debugging",
	ArgsUsage: "<case-id>",
	Action:    dump,
}

func dump(cCtx *cli.Context) error {
	caseID := cCtx.Args().First()
	if caseID == "" {
		return fmt.Errorf("usage: advocase dump <case-id>")
	}

	config, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()

	pool, err := db.Connect(ctx, config)
	if err != nil {
		return err
	}
	defer pool.Close()

	c, err := store.NewCaseRepository(pool).Case(ctx, caseID)
	if err != nil {
		return err
	}

	grants, err := store.NewGrantRepository(pool).GrantsForCase(ctx, caseID)
	if err != nil {
		return err
	}

	pp.Println(c)
	pp.Println(grants)

	return nil
}
