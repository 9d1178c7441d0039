package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/walunjakarsachinedu/tab-navigator/internal/config"
	"github.com/walunjakarsachinedu/tab-navigator/internal/logging"
	"github.com/walunjakarsachinedu/tab-navigator/internal/reconcile"
	"github.com/walunjakarsachinedu/tab-navigator/internal/statedb"
	"github.com/walunjakarsachinedu/tab-navigator/internal/ui"
)

// commonFlags are shared by the one-shot tab commands.
type commonFlags struct {
	host    *string
	local   *bool
	timeout *time.Duration
}

func addCommonFlags(fs *flag.FlagSet) commonFlags {
	return commonFlags{
		host:    fs.String("host", "", "Run in-process with this tab source instead of a running server"),
		local:   fs.Bool("local", false, "Do not use a running server"),
		timeout: fs.Duration("timeout", 10*time.Second, "Give up after this long"),
	}
}

// parseOrExit parses args, exiting on errors and -h.
func parseOrExit(fs *flag.FlagSet, args []string) {
	if err := fs.Parse(normalizeArgs(fs, args)); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}

// open resolves the profile and config and connects.
func (c commonFlags) open(profile string) (context.Context, *session, func()) {
	profile = config.EffectiveProfile(profile)
	cfg := loadConfig(profile)
	if *c.host != "" {
		cfg.Host.Kind = *c.host
	}
	initLogging(profile, cfg, false)

	ctx, cancel := context.WithTimeout(context.Background(), *c.timeout)
	sess, err := connect(ctx, profile, cfg, *c.local || *c.host != "")
	if err != nil {
		cancel()
		logging.Shutdown()
		fail("%v", err)
	}
	return ctx, sess, func() {
		sess.close()
		cancel()
		logging.Shutdown()
	}
}

func handleList(profile string, args []string) {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	window := fs.String("window", "", "Only tabs of this window id, or \"current\"")
	query := fs.String("q", "", "Rank tabs against this query")
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	yamlOutput := fs.Bool("yaml", false, "Output as YAML")
	common := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Println("Usage: tabnav list [options] [query]")
		fmt.Println()
		fmt.Println("Print tabs most recently used first, or ranked against a query.")
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
		fmt.Println()
		fmt.Println("Examples:")
		fmt.Println("  tabnav list")
		fmt.Println("  tabnav list --window current")
		fmt.Println("  tabnav list --json gh issues")
	}
	parseOrExit(fs, args)

	format, err := outputFormat(*jsonOutput, *yamlOutput)
	if err != nil {
		fail("%v", err)
	}
	q := *query
	if fs.NArg() > 0 {
		q = strings.TrimSpace(q + " " + strings.Join(fs.Args(), " "))
	}

	ctx, sess, done := common.open(profile)
	err = runList(ctx, sess, os.Stdout, *window, q, format)
	done()
	if err != nil {
		fail("%v", err)
	}
}

// runList queries src and prints the result.
func runList(ctx context.Context, src ui.Source, w io.Writer, window, query, format string) error {
	results, err := src.Query(ctx, window, query)
	if err != nil {
		return err
	}
	return printTabs(w, format, results)
}

func handleActivate(profile string, args []string) {
	runTabAction("activate", "Focus a tab in the browser.", "Activated", profile, args, ui.Source.Activate)
}

func handleClose(profile string, args []string) {
	runTabAction("close", "Close a tab in the browser.", "Closed", profile, args, ui.Source.Close)
}

func runTabAction(name, summary, verb, profile string, args []string, act func(ui.Source, context.Context, int64) error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	jsonOutput := fs.Bool("json", false, "Output as JSON")
	common := addCommonFlags(fs)

	fs.Usage = func() {
		fmt.Printf("Usage: tabnav %s [options] <id>\n", name)
		fmt.Println()
		fmt.Println(summary)
		fmt.Println()
		fmt.Println("Options:")
		fs.PrintDefaults()
	}
	parseOrExit(fs, args)

	out := NewCLIOutput(*jsonOutput)
	id, err := parseTabID(fs.Args())
	if err != nil {
		out.Error(err.Error(), ErrCodeInvalidInput)
		os.Exit(1)
	}

	ctx, sess, done := common.open(profile)
	err = act(sess.Source, ctx, id)
	done()
	if err != nil {
		out.Error(fmt.Sprintf("%s tab %d: %v", name, id, err), errorCode(err))
		os.Exit(1)
	}
	out.Success(fmt.Sprintf("%s tab %d", verb, id), map[string]any{
		"success": true,
		"id":      id,
	})
}

func handleImport(profile string, args []string) {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Println("Usage: tabnav import <file>")
		fmt.Println()
		fmt.Println("Import a browser storage export (a JSON object such as")
		fmt.Println("{\"tabQueue\": \"[...]\"}) into the profile's state database.")
	}
	parseOrExit(fs, args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}

	profile = config.EffectiveProfile(profile)
	path, err := config.StatePath(profile)
	if err != nil {
		fail("%v", err)
	}
	if err := runImport(context.Background(), path, fs.Arg(0), os.Stdout); err != nil {
		fail("%v", err)
	}
}

// runImport copies the export at src into the database at dbPath and
// reports what the saved tab order holds.
func runImport(ctx context.Context, dbPath, src string, w io.Writer) error {
	db, err := statedb.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.Migrate(); err != nil {
		return err
	}

	keys, err := db.ImportJSON(ctx, src)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s Imported %d key(s): %s\n", successSymbol, len(keys), strings.Join(keys, ", "))

	blob, ok, err := db.Get(ctx, reconcile.Key)
	switch {
	case err != nil:
		return err
	case !ok:
		fmt.Fprintf(w, "No %s key; the tab order starts empty.\n", reconcile.Key)
	default:
		if recs, err := reconcile.Decode(blob); err != nil {
			fmt.Fprintf(w, "Warning: %s is malformed and will be ignored: %v\n", reconcile.Key, err)
		} else {
			fmt.Fprintf(w, "%s holds %d tab(s).\n", reconcile.Key, len(recs))
		}
	}
	return nil
}
