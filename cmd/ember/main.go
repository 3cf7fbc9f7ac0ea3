// Command ember runs Ember source files and hosts an interactive REPL, in
// the spirit of the teacher's single-file driver but reworked around
// flag-based configuration (no framework, matching the flag-only CLI style
// seen across this corpus) and the three-way exit-status contract the
// bytecode VM reports through.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/emberlang/ember/config"
	"github.com/emberlang/ember/natives"
	"github.com/emberlang/ember/runtime"
)

const (
	exitOK            = 0
	exitUsage         = 64
	exitDataErr       = 65
	exitIOErr         = 74
	exitRuntimeFailed = 70
)

func main() {
	configPath := flag.String("config", "", "path to a JSON config file (defaults to $EMBER_CONFIG)")
	stressGC := flag.Bool("stress-gc", false, "collect garbage on every allocation")
	verboseGC := flag.Bool("verbose-gc", false, "log collector activity to stderr")
	dump := flag.Bool("dump", false, "disassemble the compiled script instead of running it")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ember: %v\n", err)
		os.Exit(exitIOErr)
	}
	if *stressGC {
		cfg.StressGC = true
	}
	if *verboseGC {
		cfg.VerboseGC = true
	}

	vm := runtime.New(cfg, os.Stdout, os.Stderr)
	natives.Install(vm)

	switch flag.NArg() {
	case 0:
		repl(vm)
	case 1:
		if *dump {
			dumpFile(vm, flag.Arg(0))
		} else {
			os.Exit(runFile(vm, flag.Arg(0)))
		}
	default:
		fmt.Fprintln(os.Stderr, "Usage: ember [options] [script]")
		os.Exit(exitUsage)
	}
}

// report prints whatever detail Interpret left behind for a non-OK result.
// Formatting lives here, at the edge, rather than inside runtime.VM.
func report(vm *runtime.VM, result runtime.InterpretResult) {
	switch result {
	case runtime.InterpretCompileError:
		for _, e := range vm.CompileErrors() {
			fmt.Fprintln(os.Stderr, e.Error())
		}
	case runtime.InterpretRuntimeError:
		fmt.Fprint(os.Stderr, vm.LastRuntimeError().Error())
	}
}

func dumpFile(vm *runtime.VM, path string) {
	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ember: %v\n", err)
		os.Exit(exitIOErr)
	}
	fn, errs := runtime.Compile(vm, string(source))
	if fn == nil {
		for _, e := range errs {
			fmt.Fprintln(os.Stderr, e.Error())
		}
		os.Exit(exitDataErr)
	}
	fmt.Print(runtime.Disassemble(fn.Chunk, "<script>"))
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	return config.FromEnv()
}

func repl(vm *runtime.VM) {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(">> ")
		if !scanner.Scan() {
			fmt.Println()
			return
		}
		report(vm, vm.Interpret(scanner.Text()))
	}
}

// runFile returns the process exit code instead of calling os.Exit itself,
// so the deferred Free actually runs before the caller tears the process
// down.
func runFile(vm *runtime.VM, path string) int {
	defer vm.Free()

	source, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ember: %v\n", err)
		return exitIOErr
	}

	result := vm.Interpret(string(source))
	report(vm, result)
	switch result {
	case runtime.InterpretCompileError:
		return exitDataErr
	case runtime.InterpretRuntimeError:
		return exitRuntimeFailed
	default:
		return exitOK
	}
}
