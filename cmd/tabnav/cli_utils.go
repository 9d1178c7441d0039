package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"
	"gopkg.in/yaml.v3"

	"github.com/walunjakarsachinedu/tab-navigator/internal/host"
	"github.com/walunjakarsachinedu/tab-navigator/internal/rank"
	"github.com/walunjakarsachinedu/tab-navigator/internal/tab"
	"github.com/walunjakarsachinedu/tab-navigator/internal/web"
)

// normalizeArgs reorders args so flags come before positional arguments.
// Go's flag package stops parsing at the first non-flag argument, which means
// "list gh --json" silently ignores --json.
func normalizeArgs(fs *flag.FlagSet, args []string) []string {
	boolFlags := make(map[string]bool)
	fs.VisitAll(func(f *flag.Flag) {
		if bf, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && bf.IsBoolFlag() {
			boolFlags[f.Name] = true
		}
	})

	var flags, positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		// "--" terminates flag processing
		if arg == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}

		if strings.HasPrefix(arg, "-") && arg != "-" {
			flags = append(flags, arg)

			name := strings.TrimLeft(arg, "-")
			if strings.Contains(name, "=") {
				continue
			}
			if !boolFlags[name] && i+1 < len(args) {
				i++
				flags = append(flags, args[i])
			}
		} else {
			positional = append(positional, arg)
		}
	}
	return append(flags, positional...)
}

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// outputFormat picks the format from --json/--yaml.
func outputFormat(jsonMode, yamlMode bool) (string, error) {
	switch {
	case jsonMode && yamlMode:
		return "", errors.New("--json and --yaml are mutually exclusive")
	case jsonMode:
		return formatJSON, nil
	case yamlMode:
		return formatYAML, nil
	}
	return formatTable, nil
}

// tabRow is the scripting shape of one listed tab.
type tabRow struct {
	ID         int64   `json:"id" yaml:"id"`
	WindowID   int64   `json:"windowId" yaml:"windowId"`
	Title      string  `json:"title" yaml:"title"`
	URL        string  `json:"url" yaml:"url"`
	Status     string  `json:"status,omitempty" yaml:"status,omitempty"`
	Rank       float64 `json:"rank,omitempty" yaml:"rank,omitempty"`
	TitleMatch []int   `json:"titleMatch,omitempty" yaml:"titleMatch,omitempty,flow"`
	URLMatch   []int   `json:"urlMatch,omitempty" yaml:"urlMatch,omitempty,flow"`
}

func toRows(results []rank.Result) []tabRow {
	rows := make([]tabRow, len(results))
	for i, r := range results {
		rows[i] = tabRow{
			ID:         r.ID,
			WindowID:   r.WindowID,
			Title:      r.Title,
			URL:        r.URL,
			Status:     r.Status,
			Rank:       r.Rank,
			TitleMatch: r.TitlePositions,
			URLMatch:   r.URLPositions,
		}
	}
	return rows
}

const titleWidth = 40

// printTabs writes results to w in format.
func printTabs(w io.Writer, format string, results []rank.Result) error {
	rows := toRows(results)
	switch format {
	case formatJSON:
		out, err := json.MarshalIndent(rows, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to format JSON: %w", err)
		}
		_, err = fmt.Fprintln(w, string(out))
		return err
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rows); err != nil {
			return fmt.Errorf("failed to format YAML: %w", err)
		}
		return enc.Close()
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No tabs.")
		return err
	}
	fmt.Fprintf(w, "%-12s %-8s %s  %s\n", "ID", "WINDOW", runewidth.FillRight("TITLE", titleWidth), "URL")
	for _, r := range rows {
		title := r.Title
		if title == "" {
			title = "(untitled)"
		}
		title = runewidth.FillRight(runewidth.Truncate(title, titleWidth, "…"), titleWidth)
		fmt.Fprintf(w, "%-12d %-8d %s  %s\n", r.ID, r.WindowID, title, tab.DisplayURL(r.URL))
	}
	return nil
}

// parseTabID parses the single positional tab id of activate and close.
func parseTabID(args []string) (int64, error) {
	if len(args) != 1 {
		return 0, errors.New("expected exactly one tab id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id < 0 {
		return 0, fmt.Errorf("invalid tab id %q", args[0])
	}
	return id, nil
}

// CLIOutput handles consistent output formatting across commands.
type CLIOutput struct {
	jsonMode bool
	out      io.Writer
	errOut   io.Writer
}

// NewCLIOutput writes to stdout and stderr.
func NewCLIOutput(jsonMode bool) *CLIOutput {
	return &CLIOutput{jsonMode: jsonMode, out: os.Stdout, errOut: os.Stderr}
}

// Success prints a success message or JSON response.
func (c *CLIOutput) Success(message string, data any) {
	if c.jsonMode {
		c.printJSON(data)
		return
	}
	fmt.Fprintf(c.out, "%s %s\n", successSymbol, message)
}

// Error prints an error message or JSON error response.
func (c *CLIOutput) Error(message, code string) {
	if c.jsonMode {
		c.printJSON(map[string]any{
			"success": false,
			"error":   message,
			"code":    code,
		})
		return
	}
	fmt.Fprintf(c.errOut, "Error: %s\n", message)
}

func (c *CLIOutput) printJSON(data any) {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(c.errOut, "Error: failed to format JSON: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, string(output))
}

const successSymbol = "✓"

// Error codes
const (
	ErrCodeNotFound     = "NOT_FOUND"
	ErrCodeUnavailable  = "UNAVAILABLE"
	ErrCodeInvalidInput = "INVALID_INPUT"
	ErrCodeFailed       = "FAILED"
)

// errorCode classifies err for JSON output.
func errorCode(err error) string {
	switch {
	case errors.Is(err, host.ErrUnknownTab):
		return ErrCodeNotFound
	case errors.Is(err, host.ErrNotConnected), errors.Is(err, web.ErrServerDown):
		return ErrCodeUnavailable
	}
	return ErrCodeFailed
}

// fail prints "Error: ..." and exits 1.
func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
