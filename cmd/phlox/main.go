package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	goerrors "errors"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"phlox/internal/builtins"
	"phlox/internal/bytecode"
	"phlox/internal/compiler"
	"phlox/internal/config"
	"phlox/internal/errors"
	"phlox/internal/parser"
	"phlox/internal/vm"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("phlox", flag.ContinueOnError)
	fs.SetOutput(stderr)
	dumpAST := fs.Bool("dump-ast", false, "print the parsed AST as JSON and exit")
	dumpBC := fs.Bool("dump-bytecode", false, "print the compiled bytecode and exit")
	strict := fs.Bool("strict", false, "treat the program as declare(strict_types=1)")
	cfgPath := fs.String("config", "phlox.toml", "path to the phlox.toml configuration")
	stats := fs.Bool("stats", false, "print compilation and execution statistics")
	showVersion := fs.Bool("version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return 255
	}
	if *showVersion {
		fmt.Fprintf(stdout, "phlox %s\n", version)
		return 0
	}
	if fs.NArg() < 1 {
		fmt.Fprintln(stderr, "usage: phlox [flags] <file>")
		return 255
	}

	file := fs.Arg(0)
	src, err := os.ReadFile(file)
	if err != nil {
		report(stderr, errors.New(errors.HostError, err.Error(), file, 0))
		return 255
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		report(stderr, errors.New(errors.HostError, err.Error(), *cfgPath, 0))
		return 255
	}

	parseStart := time.Now()
	tree, err := parser.Parse(string(src), file)
	if err != nil {
		e := errors.New(errors.ParseError, err.Error(), file, 0)
		report(stderr, e.WithSource(string(src)))
		return e.ExitCode()
	}
	if *strict || cfg.Runtime.Strict {
		tree.StrictTypes = true
	}

	if *dumpAST {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(tree); err != nil {
			report(stderr, errors.New(errors.HostError, err.Error(), file, 0))
			return 255
		}
		return 0
	}

	prog, err := compiler.Compile(tree)
	if err != nil {
		e := errors.New(errors.CompileError, err.Error(), file, 0)
		report(stderr, e.WithSource(string(src)))
		return e.ExitCode()
	}

	if *dumpBC {
		io.WriteString(stdout, bytecode.DisassembleProgram(prog))
		return 0
	}

	machine := vm.New(prog)
	machine.Stdout = stdout
	mgr := builtins.Install(machine)
	defer mgr.CloseAll()

	vm.LoadSource = loadSourceFile
	if dirs := cfg.ResolveAutoloadDirs(); len(dirs) > 0 {
		machine.RegisterAutoloader(vm.PSR4Autoloader(dirs))
	}
	for name, value := range cfg.Globals {
		machine.SetGlobal(name, value)
	}

	runStart := time.Now()
	runErr := machine.Run(prog)

	if *stats {
		printStats(stderr, prog, runStart.Sub(parseStart), time.Since(runStart))
	}

	if runErr != nil {
		var exit *vm.ExitError
		if goerrors.As(runErr, &exit) {
			return exit.Code
		}
		e := errors.New(errors.RuntimeError, runErr.Error(), file, 0)
		report(stderr, e)
		return e.ExitCode()
	}
	return 0
}

// loadSourceFile feeds autoloaded files through the same front end as the
// main program.
func loadSourceFile(machine *vm.VM, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	tree, err := parser.Parse(string(src), path)
	if err != nil {
		return err
	}
	prog, err := compiler.Compile(tree)
	if err != nil {
		return err
	}
	machine.Load(prog)
	return nil
}

const (
	colorRed   = "\x1b[31m"
	colorReset = "\x1b[0m"
)

func report(w io.Writer, e *errors.EngineError) {
	msg := e.Error()
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		fmt.Fprintf(w, "%s%s%s\n", colorRed, msg, colorReset)
		return
	}
	fmt.Fprintln(w, msg)
}

func printStats(w io.Writer, prog *bytecode.Program, compileTime, runTime time.Duration) {
	instrs := int64(len(prog.Main.Code))
	for _, fn := range prog.Functions {
		instrs += int64(len(fn.Code))
	}
	for _, cls := range prog.Classes {
		for _, fn := range cls.Methods {
			instrs += int64(len(fn.Code))
		}
		for _, fn := range cls.StaticMethods {
			instrs += int64(len(fn.Code))
		}
	}
	fmt.Fprintf(w, "functions:    %s\n", humanize.Comma(int64(len(prog.Functions))))
	fmt.Fprintf(w, "classes:      %s\n", humanize.Comma(int64(len(prog.Classes))))
	fmt.Fprintf(w, "instructions: %s\n", humanize.Comma(instrs))
	fmt.Fprintf(w, "front end:    %s\n", compileTime)
	fmt.Fprintf(w, "execution:    %s\n", runTime)
}
