package main

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	olivebridge "github.com/wippyai/olive-bridge"
	"github.com/wippyai/olive-bridge/bridge"
)

var (
	dsmPath       string
	ndviPath      string
	shapefilePath string
	denoise       bool
	areaThreshold int32
	interactive   bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run one analysis through the boundary shim",
	Long: `Runs the analysis method of the component with the given rasters and
prints the status, fractional cover and mean NDVI. The status follows the
native entry point: the component's own status, 0 when it returns none,
or -1 on failure.`,
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&dsmPath, "dsm", "", "DSM raster path")
	analyzeCmd.Flags().StringVar(&ndviPath, "ndvi", "", "NDVI raster path")
	analyzeCmd.Flags().StringVar(&shapefilePath, "shapefile", "", "Shapefile (zip) path")
	analyzeCmd.Flags().BoolVar(&denoise, "denoise", false, "Denoise the DSM before analysis")
	analyzeCmd.Flags().Int32Var(&areaThreshold, "area-threshold", 0, "Minimum canopy area")
	analyzeCmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Interactive mode with TUI")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	req := olivebridge.Request{
		DSMPath:       dsmPath,
		NDVIPath:      ndviPath,
		ShapefilePath: shapefilePath,
		Denoise:       denoise,
		AreaThreshold: areaThreshold,
	}

	if interactive {
		if !term.IsTerminal(int(os.Stdout.Fd())) {
			return fmt.Errorf("interactive mode needs a terminal")
		}
		// logs would corrupt the alternate screen
		cfg.LogLevel = "off"
		if _, err := newLogger(cfg.LogLevel); err != nil {
			return err
		}
		return runInteractive(cfg, req)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	shim := bridge.New(cfg, bridge.WithLogger(logger))
	defer shim.Close(ctx)

	out, err := shim.Analyze(ctx, req)
	printOutcome(out, err)
	return err
}

func printOutcome(out olivebridge.Outcome, err error) {
	status := out.Status
	if err != nil {
		status = bridge.Status(err)
	}

	table := tablewriter.NewTable(os.Stdout,
		tablewriter.WithHeader([]string{"Status", "fCov", "Mean NDVI"}),
	)
	table.Append([]string{
		fmt.Sprintf("%d", status),
		fmt.Sprintf("%g", out.FCov),
		fmt.Sprintf("%g", out.MeanNDVI),
	})
	table.Render()
}
