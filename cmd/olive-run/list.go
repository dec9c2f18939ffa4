package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/wippyai/olive-bridge/bridge"
	"github.com/wippyai/olive-bridge/runtime"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the types and methods exported by a component",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Backend != bridge.BackendWasm {
			return fmt.Errorf("list supports wasm components only")
		}
		logger, err := newLogger(cfg.LogLevel)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx := context.Background()
		rt, err := runtime.New(ctx)
		if err != nil {
			return err
		}
		defer rt.Close(ctx)
		rt.WithLogger(logger)

		mod, err := rt.LoadFile(ctx, cfg.ComponentFile())
		if err != nil {
			return err
		}
		defer mod.Close(ctx)

		fmt.Printf("Component: %s\n", cfg.ComponentFile())
		types := mod.Types()
		if len(types) == 0 {
			fmt.Println("No types exported.")
			return nil
		}

		table := tablewriter.NewTable(os.Stdout,
			tablewriter.WithHeader([]string{"Type", "Method", "Params", "Results", "Analysis", "Status"}),
		)
		for _, name := range types {
			typ, err := mod.Type(name)
			if err != nil {
				return err
			}
			methods := typ.Methods()
			if len(methods) == 0 {
				table.Append([]string{name, "-", "-", "-", "-", "-"})
				continue
			}
			for _, m := range methods {
				table.Append([]string{name, m.Name, m.Params, m.Results, yesNo(m.Matches), yesNo(m.HasStatus)})
			}
		}
		table.Render()
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
