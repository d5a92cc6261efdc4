package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	hnix "github.com/TravisWhitaker/hnix"
)

const (
	appName    = "hnix"
	promptMain = "hnix> "
	promptCont = "  ... "
)

var (
	red  = color.New(color.FgRed).SprintFunc()
	blue = color.New(color.FgBlue).SprintFunc()
)

func main() {
	var (
		exprFlag   = flag.String("e", "", "evaluate an expression instead of a file")
		configFlag = flag.String("config", defaultConfigPath(), "path to the YAML config file")
		jsonFlag   = flag.Bool("json", false, "render the result as JSON")
		traceFlag  = flag.Bool("trace", false, "log file imports")
		checkFlag  = flag.Bool("check", false, "only run the free-variable check, compute nothing")
	)
	flag.Usage = usage
	flag.Parse()

	cfg, err := hnix.LoadConfig(*configFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", appName, err)
		os.Exit(1)
	}
	if *traceFlag {
		cfg.Trace = true
	}
	setupColor(cfg.Color)

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: false, Prefix: appName})
	logger.SetLevel(log.WarnLevel)
	if cfg.Trace {
		logger.SetLevel(log.DebugLevel)
	}

	ip := hnix.NewInterp(
		hnix.WithSearchPath(cfg.EffectiveSearchPath()),
		hnix.WithTrace(logger),
	)

	switch {
	case *exprFlag != "":
		os.Exit(evalOnce(ip, "<arg>", *exprFlag, *jsonFlag, *checkFlag))
	case flag.NArg() > 0:
		file := flag.Arg(0)
		src, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: cannot read %s: %v\n", appName, file, err)
			os.Exit(1)
		}
		os.Exit(evalOnce(ip, file, string(src), *jsonFlag, *checkFlag))
	case !isatty.IsTerminal(os.Stdin.Fd()):
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: read stdin: %v\n", appName, err)
			os.Exit(1)
		}
		os.Exit(evalOnce(ip, "<stdin>", string(src), *jsonFlag, *checkFlag))
	default:
		os.Exit(repl(ip, cfg))
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `%s — a Nix-language evaluator

Usage:
  %s [flags] <file.nix>     Evaluate a file.
  %s [flags] -e <expr>      Evaluate an expression.
  %s [flags]                Start a REPL (or evaluate stdin when piped).

Flags:
`, appName, appName, appName, appName)
	flag.PrintDefaults()
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hnix.yaml"
	}
	return filepath.Join(home, ".hnix.yaml")
}

func setupColor(mode string) {
	switch mode {
	case "always":
		color.NoColor = false
	case "never":
		color.NoColor = true
	default:
		color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())
	}
}

func evalOnce(ip *hnix.Interp, name, src string, asJSON, checkOnly bool) int {
	e, err := hnix.Parse(src)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(hnix.WrapErrorWithName(err, name, src).Error()))
		return 1
	}
	if err := ip.Check(e); err != nil {
		fmt.Fprintln(os.Stderr, red(hnix.WrapErrorWithName(err, name, src).Error()))
		return 1
	}
	if checkOnly {
		fmt.Println("ok")
		return 0
	}

	out, err := renderResult(ip, ip.Thunk(e), asJSON)
	if err != nil {
		fmt.Fprintln(os.Stderr, red(hnix.WrapErrorWithName(err, name, src).Error()))
		return 1
	}
	fmt.Println(out)
	return 0
}

// renderResult forces the thunk and renders it. Functions print opaquely in
// the Nix surface: normalizing a lambda that demands its parameters cannot
// succeed, so they are not normalized at all.
func renderResult(ip *hnix.Interp, t *hnix.Thunk, asJSON bool) (string, error) {
	v, err := ip.Force(t)
	if err != nil {
		return "", err
	}
	if !asJSON && (v.Tag == hnix.VTFun || v.Tag == hnix.VTBuiltin) {
		return v.String(), nil
	}
	nf, err := ip.Normalize(t)
	if err != nil {
		return "", err
	}
	if asJSON {
		return hnix.RenderJSON(nf)
	}
	return hnix.RenderNix(nf), nil
}

// -----------------------------------------------------------------------------
// REPL
// -----------------------------------------------------------------------------

func repl(ip *hnix.Interp, cfg hnix.Config) int {
	fmt.Printf("hnix REPL\nCtrl+C cancels input, Ctrl+D exits. Type :quit to exit.\n")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, cfg.HistoryFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigc)
	go func() {
		<-sigc
		ln.Close()
		os.Exit(130)
	}()

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	vars := map[string]*hnix.Thunk{}

	for {
		code, ok := readByParseProbe(ln)
		if !ok {
			fmt.Println()
			return 0
		}
		trimmed := strings.TrimSpace(code)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, ":") {
			switch strings.ToLower(trimmed) {
			case ":quit", ":q":
				return 0
			default:
				fmt.Println("unknown command. Type :quit to exit.")
			}
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(code, "\n", " "))

		// `name = expr` defines a session binding, evaluated lazily.
		if name, rhs, ok := splitBinding(trimmed); ok {
			t, err := ip.ParseThunk("<repl>", rhs, vars)
			if err != nil {
				fmt.Fprintln(os.Stderr, red(err.Error()))
				continue
			}
			vars[name] = t
			continue
		}

		t, err := ip.ParseThunk("<repl>", code, vars)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(err.Error()))
			continue
		}
		out, err := renderResult(ip, t, false)
		if err != nil {
			fmt.Fprintln(os.Stderr, red(hnix.WrapErrorWithName(err, "<repl>", code).Error()))
			continue
		}
		fmt.Println(blue(out))
	}
}

// readByParseProbe accumulates lines until the buffer parses or fails with a
// non-incomplete error; incomplete parses keep prompting.
func readByParseProbe(ln *liner.State) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			return "", true
		}
		if err != nil {
			return "", true
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if name, rhs, ok := splitBinding(strings.TrimSpace(src)); ok && name != "" {
			if _, perr := hnix.Parse(rhs); hnix.IsIncomplete(perr) {
				continue
			}
			return src, true
		}
		_, perr := hnix.Parse(src)
		if hnix.IsIncomplete(perr) {
			continue
		}
		return src, true
	}
}

// splitBinding recognizes a top-level `ident = expr` line. `==` and bindings
// inside a larger expression do not count.
func splitBinding(src string) (name, rhs string, ok bool) {
	i := strings.Index(src, "=")
	if i <= 0 || i+1 >= len(src) {
		return "", "", false
	}
	if src[i+1] == '=' {
		return "", "", false
	}
	name = strings.TrimSpace(src[:i])
	if name == "" || !isIdent(name) {
		return "", "", false
	}
	return name, strings.TrimSpace(src[i+1:]), true
}

func isIdent(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		letter := c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
		if i == 0 && !letter {
			return false
		}
		if !letter && !(c >= '0' && c <= '9') && c != '\'' && c != '-' {
			return false
		}
	}
	return len(s) > 0
}
