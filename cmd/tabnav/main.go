package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/sahilm/fuzzy"
)

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "0.3.0"

const (
	// debugEnv mirrors logs to stderr (serve) and forces debug level.
	debugEnv = "TABNAV_DEBUG"

	// colorEnv overrides colour detection: truecolor, 256, 16, none.
	colorEnv = "TABNAV_COLOR"
)

// commands lists the subcommands for help and suggestions.
var commands = []string{"pick", "serve", "list", "activate", "close", "import", "version", "help"}

// initColorProfile configures lipgloss color profile based on terminal capabilities.
// Prefers TrueColor, falls back to ANSI256.
func initColorProfile() {
	if v := os.Getenv(colorEnv); v != "" {
		switch strings.ToLower(v) {
		case "truecolor", "true", "24bit":
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		case "256", "ansi256":
			lipgloss.SetColorProfile(termenv.ANSI256)
			return
		case "16", "ansi", "basic":
			lipgloss.SetColorProfile(termenv.ANSI)
			return
		case "none", "off", "ascii":
			lipgloss.SetColorProfile(termenv.Ascii)
			return
		}
	}

	colorTerm := os.Getenv("COLORTERM")
	if colorTerm == "truecolor" || colorTerm == "24bit" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	term := os.Getenv("TERM")
	for _, t := range []string{"256color", "xterm-direct", "alacritty", "kitty", "wezterm"} {
		if strings.Contains(term, t) {
			lipgloss.SetColorProfile(termenv.TrueColor)
			return
		}
	}

	if os.Getenv("WT_SESSION") != "" || // Windows Terminal
		os.Getenv("ITERM_SESSION_ID") != "" ||
		os.Getenv("KONSOLE_VERSION") != "" {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}

	lipgloss.SetColorProfile(termenv.ANSI256)
}

func main() {
	// Extract global -p/--profile flag before subcommand dispatch
	profile, args := extractProfileFlag(os.Args[1:])

	if len(args) == 0 {
		handlePick(profile, nil)
		return
	}

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Printf("tabnav v%s\n", Version)
	case "help", "--help", "-h":
		printHelp()
	case "pick":
		handlePick(profile, args[1:])
	case "serve":
		handleServe(profile, args[1:])
	case "list", "ls":
		handleList(profile, args[1:])
	case "activate":
		handleActivate(profile, args[1:])
	case "close":
		handleClose(profile, args[1:])
	case "import":
		handleImport(profile, args[1:])
	default:
		if strings.HasPrefix(args[0], "-") {
			// Flags without a subcommand belong to pick.
			handlePick(profile, args)
			return
		}
		fmt.Fprintf(os.Stderr, "Error: unknown command %q\n", args[0])
		if s := suggestCommand(args[0]); s != "" {
			fmt.Fprintf(os.Stderr, "Did you mean %q?\n", s)
		}
		fmt.Fprintln(os.Stderr, "Run 'tabnav help' for usage.")
		os.Exit(1)
	}
}

// suggestCommand returns the closest known subcommand, or "".
func suggestCommand(name string) string {
	if name == "" {
		return ""
	}
	if matches := fuzzy.Find(name, commands); len(matches) > 0 {
		return matches[0].Str
	}
	// Transpositions like "lsit" are not subsequences; fall back to the
	// first letter, which is unique per command.
	for _, c := range commands {
		if c[0] == name[0] {
			return c
		}
	}
	return ""
}

// extractProfileFlag extracts -p or --profile from args, returning the profile and remaining args
func extractProfileFlag(args []string) (string, []string) {
	var profile string
	var remaining []string

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-p=") {
			profile = strings.TrimPrefix(arg, "-p=")
			continue
		}
		if strings.HasPrefix(arg, "--profile=") {
			profile = strings.TrimPrefix(arg, "--profile=")
			continue
		}

		if arg == "-p" || arg == "--profile" {
			if i+1 < len(args) {
				profile = args[i+1]
				i++
				continue
			}
		}

		remaining = append(remaining, arg)
	}

	return profile, remaining
}

func printHelp() {
	fmt.Printf("tabnav v%s\n", Version)
	fmt.Println("Most-recently-used browser tab navigator with fuzzy search.")
	fmt.Println()
	fmt.Println("Usage: tabnav [-p profile] [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  pick                 Open the navigator (default)")
	fmt.Println("  serve                Run the tracker and HTTP API")
	fmt.Println("  list [query]         Print tabs, most recently used first")
	fmt.Println("  activate <id>        Focus a tab")
	fmt.Println("  close <id>           Close a tab")
	fmt.Println("  import <file>        Import a browser storage export")
	fmt.Println("  version              Show version")
	fmt.Println("  help                 Show this help")
	fmt.Println()
	fmt.Println("Global options:")
	fmt.Println("  -p, --profile <name> Profile to use (default: $TABNAV_PROFILE or \"default\")")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  TABNAV_HOME          Base directory (default ~/.tab-navigator)")
	fmt.Println("  TABNAV_DEBUG         Verbose logging")
	fmt.Println("  TABNAV_COLOR         truecolor, 256, 16 or none")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tabnav serve --host cdp --cdp-url http://127.0.0.1:9222")
	fmt.Println("  tabnav list --window current gh")
	fmt.Println("  tabnav -p work pick --current")
}
