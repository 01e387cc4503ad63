package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jdefrancesco/dups/internal/config"
	"github.com/jdefrancesco/dups/internal/dlog"
	"github.com/jdefrancesco/dups/internal/dmap"
	"github.com/jdefrancesco/dups/internal/dscan"
	"github.com/jdefrancesco/dups/internal/ui"
	"github.com/jdefrancesco/dups/pkg/utils"

	"github.com/pterm/pterm"
	"github.com/pterm/pterm/putils"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// Version
const ver = "0.1.0"

// How often the spinner text is refreshed.
const progressInterval = 500 * time.Millisecond

var rootCmd = &cobra.Command{
	Use:   "dups",
	Short: "Find and optionally remove duplicate files",
	Long: `dups walks a directory tree, groups files with identical content and
reports every group. The first copy found is the original; the others are
redundant and can be deleted automatically or reviewed interactively.

Settings are read from a JSON config file (config.json by default). Any
setting can be overridden with a DUPS_<KEY> environment variable.`,
	Version:       ver,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDups,
}

func init() {
	rootCmd.Flags().StringP("config", "c", config.DefaultConfigFile, "path to the JSON config file")
	rootCmd.Flags().BoolP("delete", "d", false, "delete redundant copies (overrides delete_duplicates)")
	rootCmd.Flags().String("move-to", "", "move redundant copies into this directory instead of deleting them (overrides move_directory)")
	rootCmd.Flags().BoolP("interactive", "i", false, "review duplicates in a terminal UI instead of deleting automatically")
	rootCmd.Flags().Bool("no-banner", false, "do not show the banner")
	rootCmd.Flags().String("log-level", "", "log level (overrides log_level)")
	rootCmd.SetVersionTemplate("Version: {{.Version}}\n")
}

func runDups(cmd *cobra.Command, _ []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	forceDelete, _ := cmd.Flags().GetBool("delete")
	moveTo, _ := cmd.Flags().GetString("move-to")
	interactive, _ := cmd.Flags().GetBool("interactive")
	noBanner, _ := cmd.Flags().GetBool("no-banner")
	logLevel, _ := cmd.Flags().GetString("log-level")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return err
	}
	if forceDelete {
		cfg.DeleteDuplicates = true
	}
	if moveTo != "" {
		cfg.MoveDirectory = moveTo
	}
	if logLevel == "" {
		logLevel = cfg.LogLevel
	}

	if err := dlog.InitializeDlogger(cfg.LogFile); err != nil {
		return err
	}
	if err := dlog.SetLevel(logLevel); err != nil {
		pterm.Warning.Printfln("Ignoring log level: %v", err)
	}
	dlog.Dlogger.Info("Logger initialized")

	if !noBanner {
		showHeader()
	}

	setupSignalHandler()

	fsys := afero.NewOsFs()
	pterm.Info.Println("Press CTRL+C to stop dups at any time.")
	spinner, _ := pterm.DefaultSpinner.Start("Scanning " + cfg.ScanDirectory)

	var last time.Time
	res, err := dscan.Run(fsys, cfg, dscan.Options{
		// The review UI deletes on its own.
		SkipDelete: interactive,
		OnFile: func(n int, _ string) {
			if time.Since(last) < progressInterval {
				return
			}
			last = time.Now()
			spinner.UpdateText(fmt.Sprintf("Processed %d files...", n))
		},
	})
	if err != nil {
		_ = spinner.Stop()
		return err
	}
	spinner.Success(fmt.Sprintf("Total of %s files processed in %s",
		pterm.LightWhite(res.FilesSeen), pterm.LightWhite(res.Finished.Sub(res.Started).Round(time.Millisecond))))

	if interactive && len(res.Groups) > 0 {
		var target string
		if cfg.MoveDirectory != "" {
			target, _ = filepath.Abs(cfg.MoveDirectory)
		}
		out, err := ui.LaunchTUI(fsys, res, ui.Options{MoveTarget: target})
		res.Removed = append(res.Removed, out.Removed...)
		res.Moved = append(res.Moved, out.Moved...)
		res.Warnings = append(res.Warnings, out.Warnings...)
		if err != nil {
			return err
		}
	} else if err := dmap.ShowResults(res); err != nil {
		return err
	}

	dmap.ShowWarnings(res)
	if len(res.Groups) > 0 {
		pterm.Info.Printfln("%d redundant copies, %s reclaimable", res.DuplicateCount(), utils.DisplaySize(res.Wasted()))
	}
	if len(res.Removed) > 0 {
		pterm.Success.Printfln("Removed %d redundant files", len(res.Removed))
	}
	if len(res.Moved) > 0 {
		pterm.Success.Printfln("Moved %d redundant files to %s", len(res.Moved), filepath.Dir(res.Moved[0].To))
	}

	if cfg.TempFile != "" {
		if err := dmap.WriteRecords(cfg.TempFile, res.Records); err != nil {
			return fmt.Errorf("writing temp file: %w", err)
		}
		dlog.Dlogger.Infof("Intermediate results written to %s", cfg.TempFile)
	}
	if cfg.ReportFile != "" {
		written, err := dmap.WriteReport(fsys, cfg.ReportFile, res)
		if err != nil {
			return fmt.Errorf("writing report: %w", err)
		}
		pterm.Success.Printfln("Report written to %s", written)
	}

	return nil
}

// setupSignalHandler restores the terminal and quits on SIGINT or SIGTERM.
func setupSignalHandler() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		dlog.Dlogger.Infof("Signal received: %v", sig)

		// The terminal settings might be in a state that messes up
		// future output. To be safe I reset them.
		ui.Stop()

		fmt.Fprintf(os.Stderr, "\r[!] %v! Quitting...\n", sig)
		os.Exit(exitFailure)
	}()
}

// showHeader prints colorful dups banner.
func showHeader() {
	fmt.Println("")
	_ = pterm.DefaultBigText.WithLetters(
		putils.LettersFromStringWithStyle("d", pterm.NewStyle(pterm.FgLightGreen)),
		putils.LettersFromStringWithStyle("ups", pterm.NewStyle(pterm.FgLightWhite))).
		Render()
}
