package main

import (
	"fmt"
	"log"
	"os"

	stderrors "errors"

	"github.com/urfave/cli/v2"

	"github.com/dargueta/fat32resize/errors"
	"github.com/dargueta/fat32resize/resize"
	"github.com/dargueta/fat32resize/system"
)

// version, buildTime, and gitCommit are set at build time via
// -ldflags "-X main.version=... -X main.buildTime=... -X main.gitCommit=...".
var (
	version   = "0.1.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	app := cli.App{
		Name:  "fat32resize",
		Usage: "Grow a FAT32 filesystem in place to fill its backing device",
		Commands: []*cli.Command{
			{
				Name:      "info",
				Usage:     "Display information about a FAT32 filesystem",
				Action:    infoCommand,
				ArgsUsage: "DEVICE",
			},
			{
				Name:      "resize",
				Usage:     "Resize a FAT32 filesystem to fill its partition",
				Action:    resizeCommand,
				ArgsUsage: "DEVICE",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "show what would be done without making changes"},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "print every cluster move, not just a summary"},
					&cli.BoolFlag{Name: "force", Aliases: []string{"f"}, Usage: "suppress the non-root and backup-mismatch aborts"},
				},
			},
			{
				Name:   "version",
				Usage:  "Show version information",
				Action: versionCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func versionCommand(ctx *cli.Context) error {
	fmt.Printf("fat32resize %s (built %s, revision %s)\n", version, buildTime, gitCommit)
	return nil
}

func infoCommand(ctx *cli.Context) error {
	device := ctx.Args().First()
	if device == "" {
		return cli.Exit("a device path is required", 1)
	}

	report, err := resize.Info(device)
	if err != nil {
		return cli.Exit(fmt.Sprintf("failed to read filesystem info from %s: %s", device, err.Error()), 1)
	}

	printInfoReport(report)
	return nil
}

func printInfoReport(report *resize.FSInfoReport) {
	fmt.Printf("Device:              %s\n", report.DevicePath)
	fmt.Printf("Bytes per sector:    %d\n", report.BytesPerSector)
	fmt.Printf("Sectors per cluster: %d\n", report.SectorsPerCluster)
	fmt.Printf("Total sectors:       %d\n", report.TotalSectors)
	fmt.Printf("FAT size (sectors):  %d\n", report.FATSize)
	fmt.Printf("Number of FATs:      %d\n", report.NumFATs)
	fmt.Printf("Data clusters:       %d\n", report.DataClusters)
	if report.FreeClustersKnown {
		fmt.Printf("Free clusters:       %d\n", report.FreeClusters)
	} else {
		fmt.Printf("Free clusters:       unknown\n")
	}
	fmt.Printf("Current size:        %.2f MB (%d bytes)\n", megabytes(report.CurrentSizeBytes), report.CurrentSizeBytes)
	fmt.Printf("Backup boot sector:  %s\n", matchWord(report.BackupMatches))
	if report.CanGrow {
		fmt.Printf("Can grow to:         %.2f MB (%d bytes)\n", megabytes(report.MaxNewSizeBytes), report.MaxNewSizeBytes)
	} else {
		fmt.Printf("Can grow:            no, already fills the device\n")
	}
}

func resizeCommand(ctx *cli.Context) error {
	device := ctx.Args().First()
	if device == "" {
		return cli.Exit("a device path is required", 1)
	}

	opts := resize.Options{
		DevicePath: device,
		DryRun:     ctx.Bool("dry-run"),
		Verbose:    ctx.Bool("verbose"),
		Force:      ctx.Bool("force"),
	}

	if !opts.DryRun && !system.IsRoot() && !opts.Force {
		fmt.Fprintln(os.Stderr, "Warning: this tool requires root privileges to modify block devices.")
		fmt.Fprintln(os.Stderr, "         Use --dry-run to preview changes without root, or --force to proceed anyway.")
		return cli.Exit("run as root or use --force to continue anyway", 1)
	}

	if !opts.DryRun {
		if err := system.CheckNotMounted(device); err != nil {
			return cli.Exit(err.Error(), 1)
		}
	}

	before, beforeErr := resize.Info(device)
	switch {
	case beforeErr == nil:
		if !before.CanGrow {
			return cli.Exit(fmt.Sprintf(
				"filesystem is already at maximum size for the device (%d bytes)", before.CurrentSizeBytes), 1)
		}
		if !before.BackupMatches && !opts.Force {
			fmt.Fprintln(os.Stderr, "Warning: backup boot sector does not match the primary boot sector.")
			fmt.Fprintln(os.Stderr, "         This could indicate filesystem corruption.")
			return cli.Exit("use --force to proceed anyway", 1)
		}
		if opts.Verbose {
			fmt.Println("Current filesystem state:")
			printInfoReport(before)
			fmt.Println()
		}
		printResizePreview(device, before.CurrentSizeBytes, before.MaxNewSizeBytes)
	case stderrors.Is(beforeErr, errors.ErrInvalidatedFilesystem):
		fmt.Fprintln(os.Stderr, "Warning: boot sector appears to be invalidated.")
		fmt.Fprintln(os.Stderr, "         This may indicate an interrupted resize operation.")
		fmt.Fprintln(os.Stderr, "         Attempting recovery...")
		fmt.Fprintln(os.Stderr)
	default:
		return cli.Exit(fmt.Sprintf("failed to read filesystem info from %s: %s", device, beforeErr.Error()), 1)
	}

	if opts.DryRun {
		fmt.Println("DRY RUN MODE - No changes will be made")
		fmt.Println()
	}

	result, err := resize.Run(opts)
	if err != nil {
		if stderrors.Is(err, errors.ErrInvalidatedFilesystem) {
			return cli.Exit(
				"the filesystem was invalidated by an interrupted resize with no checkpoint to resume from; "+
					"automatic recovery is impossible, restore from backup", 1)
		}
		return cli.Exit(fmt.Sprintf("failed to resize filesystem on %s: %s", device, err.Error()), 1)
	}

	printResizeResult(opts.DryRun, result)
	return nil
}

func printResizePreview(device string, currentSize, newSize uint64) {
	increase := newSize - currentSize
	fmt.Println("Resize operation:")
	fmt.Printf("  Device: %s\n", device)
	fmt.Printf("  Current size: %.2f MB (%d bytes)\n", megabytes(currentSize), currentSize)
	fmt.Printf("  New size: %.2f MB (%d bytes)\n", megabytes(newSize), newSize)
	fmt.Printf("  Size increase: %.2f MB (%d bytes)\n", megabytes(increase), increase)
	fmt.Println()
}

func printResizeResult(dryRun bool, result *resize.Result) {
	fmt.Println()
	if dryRun {
		fmt.Println("Resize preview complete!")
	} else {
		fmt.Println("Resize complete!")
	}
	fmt.Println()
	fmt.Println("Operations performed:")
	for _, op := range result.Operations {
		fmt.Printf("  - %s\n", op)
	}
	fmt.Println()
	fmt.Println("Summary:")
	fmt.Printf("  Old size: %.2f MB\n", megabytes(result.OldSizeBytes))
	fmt.Printf("  New size: %.2f MB\n", megabytes(result.NewSizeBytes))
	fmt.Printf("  FAT tables grew: %t\n", result.FATGrew)
	if result.ClustersRelocated > 0 {
		fmt.Printf("  Clusters relocated: %d\n", result.ClustersRelocated)
	}

	if !dryRun {
		fmt.Println()
		fmt.Println("The filesystem has been resized successfully.")
	}
}

func megabytes(n uint64) float64 {
	return float64(n) / (1024.0 * 1024.0)
}

func matchWord(matches bool) string {
	if matches {
		return "matches primary"
	}
	return "DOES NOT MATCH primary"
}
