package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/term"

	"github.com/okhutch/claude-usage/internal/creds"
	"github.com/okhutch/claude-usage/internal/render"
	"github.com/okhutch/claude-usage/internal/tui"
	"github.com/okhutch/claude-usage/internal/usage"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// statusEndpoint overrides the usage endpoint in tests.
var statusEndpoint = ""

func run(args []string) int {
	if len(args) == 0 {
		return runStatus(nil)
	}

	switch args[0] {
	case "status":
		return runStatus(args[1:])
	case "watch":
		return runWatch(args[1:])
	case "doctor":
		return runDoctor(args[1:])
	case "completion":
		return runCompletion(args[1:])
	case "-h", "--help", "help":
		printRootUsage()
		return 0
	default:
		// Treat bare flags as status flags for better UX.
		if strings.HasPrefix(args[0], "-") {
			return runStatus(args)
		}
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", args[0])
		printRootUsage()
		return 2
	}
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	plain := fs.Bool("plain", false, "plain text output without bars or color")
	noColor := fs.Bool("no-color", false, "disable color styling")
	timeout := fs.Duration("timeout", 10*time.Second, "fetch timeout")
	verbose := fs.Bool("verbose", false, "log diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "error: --timeout must be > 0")
		return 2
	}

	logger := newLogger(*verbose)

	cred, err := creds.NewDefaultResolver(logger).Resolve()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	client := usage.NewClient(logger)
	if statusEndpoint != "" {
		client = usage.NewClientForEndpoint(statusEndpoint, logger)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	snapshot, err := client.Fetch(ctx, cred)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", fetchErrorMessage(err))
		return 1
	}

	if *plain {
		fmt.Print(render.RenderPlain(snapshot))
		return 0
	}
	color := !*noColor && term.IsTerminal(int(os.Stdout.Fd()))
	fmt.Print(render.Render(snapshot, time.Now(), !color))
	return 0
}

// fetchErrorMessage keeps the per-category guidance distinct: auth failures
// point at re-login, endpoint surprises carry diagnostics, everything else is
// a network problem.
func fetchErrorMessage(err error) string {
	var authErr *usage.AuthError
	if errors.As(err, &authErr) {
		return authErr.Error()
	}
	var respErr *usage.UnexpectedResponseError
	if errors.As(err, &respErr) {
		return respErr.Error()
	}
	return fmt.Sprintf("could not reach the usage endpoint: %v", err)
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	interval := fs.Duration("interval", 60*time.Second, "poll interval")
	timeout := fs.Duration("timeout", 10*time.Second, "per-poll fetch timeout")
	noColor := fs.Bool("no-color", false, "disable color styling")
	noAltScreen := fs.Bool("no-alt-screen", false, "disable alternate screen mode")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *interval <= 0 {
		fmt.Fprintln(os.Stderr, "error: --interval must be > 0")
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "error: --timeout must be > 0")
		return 2
	}

	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Fprintln(os.Stderr, "error: watch mode requires a TTY")
		return 1
	}

	logger := zerolog.Nop()
	client := usage.NewClient(logger)
	defer client.Close()

	err := tui.Run(tui.Options{
		Interval:  *interval,
		Timeout:   *timeout,
		NoColor:   *noColor,
		AltScreen: !*noAltScreen,
		Fetch: func(ctx context.Context) (*usage.Snapshot, error) {
			// Re-resolve each poll so a rotated token is picked up.
			cred, err := creds.NewDefaultResolver(logger).Resolve()
			if err != nil {
				return nil, err
			}
			return client.Fetch(ctx, cred)
		},
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOutput := fs.Bool("json", false, "output doctor report as JSON")
	timeout := fs.Duration("timeout", 20*time.Second, "doctor timeout")
	verbose := fs.Bool("verbose", false, "log diagnostics to stderr")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *timeout <= 0 {
		fmt.Fprintln(os.Stderr, "error: --timeout must be > 0")
		return 2
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report := usage.RunDoctor(ctx, newLogger(*verbose))

	if *jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "error: failed to encode JSON: %v\n", err)
			return 1
		}
	} else {
		printDoctorHuman(report)
	}

	if !report.Healthy() {
		return 1
	}
	return 0
}

func runCompletion(args []string) int {
	if len(args) > 1 {
		fmt.Fprintln(os.Stderr, "error: completion accepts zero or one shell argument (bash or zsh)")
		return 2
	}
	shell := "bash"
	if len(args) == 1 {
		shell = strings.TrimSpace(args[0])
	}
	script, err := completionScript(shell)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 2
	}
	fmt.Print(script)
	return 0
}

func newLogger(verbose bool) zerolog.Logger {
	if !verbose {
		return zerolog.Nop()
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger().
		Level(zerolog.DebugLevel)
}

func printDoctorHuman(report usage.DoctorReport) {
	fmt.Println("claude-usage doctor")
	fmt.Println()
	for _, c := range report.Checks {
		state := "FAIL"
		if c.OK {
			state = "PASS"
		}
		fmt.Printf("[%s] %s\n", state, c.Name)
		fmt.Printf("  %s\n", c.Details)
	}
}

func printRootUsage() {
	fmt.Println("claude-usage")
	fmt.Println()
	fmt.Println("Show Claude subscription quota as terminal progress bars.")
	fmt.Println("The tool is read-only: it queries the usage endpoint with the")
	fmt.Println("credentials Claude Code already stores and never mutates anything.")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  claude-usage                     Fetch and print current usage (default)")
	fmt.Println("  claude-usage status [flags]      Fetch and print current usage explicitly")
	fmt.Println("  claude-usage watch [flags]       Refresh continuously in a TUI")
	fmt.Println("  claude-usage doctor [flags]      Run credential and endpoint checks")
	fmt.Println("  claude-usage completion [shell]  Print shell completion script (bash or zsh)")
	fmt.Println()
	fmt.Println("Status flags:")
	fmt.Println("  --plain           Plain text output without bars or color")
	fmt.Println("  --no-color        Disable color styling")
	fmt.Println("  --timeout 10s     Fetch timeout")
	fmt.Println("  --verbose         Log diagnostics to stderr")
	fmt.Println()
	fmt.Println("Watch flags:")
	fmt.Println("  --interval 60s    Poll interval")
	fmt.Println("  --timeout 10s     Per-poll fetch timeout")
	fmt.Println("  --no-color        Disable color styling")
	fmt.Println("  --no-alt-screen   Disable alternate screen mode")
	fmt.Println()
	fmt.Println("Doctor flags:")
	fmt.Println("  --json            Output report as JSON")
	fmt.Println("  --timeout 20s     Doctor timeout")
	fmt.Println()
	fmt.Println("Credentials are resolved from " + creds.TokenEnvVar + ", then the OS")
	fmt.Println("secret store, then ~/.claude/.credentials.json.")
}

func completionScript(shell string) (string, error) {
	switch shell {
	case "bash":
		return `# bash completion for claude-usage
_claude_usage_completion() {
  local cur prev words cword
  _init_completion || return
  local commands="status watch doctor completion help"
  if [[ ${cword} -eq 1 ]]; then
    COMPREPLY=( $(compgen -W "${commands}" -- "${cur}") )
    return
  fi
  case "${words[1]}" in
    completion)
      COMPREPLY=( $(compgen -W "bash zsh" -- "${cur}") )
      ;;
    status)
      COMPREPLY=( $(compgen -W "--plain --no-color --timeout --verbose" -- "${cur}") )
      ;;
    watch)
      COMPREPLY=( $(compgen -W "--interval --timeout --no-color --no-alt-screen" -- "${cur}") )
      ;;
    doctor)
      COMPREPLY=( $(compgen -W "--json --timeout --verbose" -- "${cur}") )
      ;;
    *)
      COMPREPLY=( $(compgen -W "${commands}" -- "${cur}") )
      ;;
  esac
}
complete -F _claude_usage_completion claude-usage
`, nil
	case "zsh":
		return `#compdef claude-usage
_claude_usage() {
  local -a commands
  commands=(
    'status:fetch and print current usage'
    'watch:refresh continuously in a TUI'
    'doctor:run credential and endpoint checks'
    'completion:print shell completion script'
    'help:show help text'
  )
  if (( CURRENT == 2 )); then
    _describe 'command' commands
    return
  fi
  case "${words[2]}" in
    completion)
      _values 'shell' bash zsh
      ;;
    status)
      _values 'flag' --plain --no-color --timeout --verbose
      ;;
    watch)
      _values 'flag' --interval --timeout --no-color --no-alt-screen
      ;;
    doctor)
      _values 'flag' --json --timeout --verbose
      ;;
  esac
}
_claude_usage "$@"
`, nil
	default:
		return "", fmt.Errorf("unsupported shell %q (expected bash or zsh)", shell)
	}
}
