// Pushkin CLI - assembles, runs and serves stack machine programs
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chazu/pushkin/asm"
	"github.com/chazu/pushkin/bytecode"
	"github.com/chazu/pushkin/journal"
	"github.com/chazu/pushkin/manifest"
	"github.com/chazu/pushkin/server"
	"github.com/chazu/pushkin/vm"
)

func main() {
	verbose := flag.Bool("v", false, "Verbose output")
	interactive := flag.Bool("i", false, "Start interactive REPL")
	expr := flag.String("e", "", "Run an inline program (';' separates instructions)")
	compileMode := flag.Bool("c", false, "Assemble to bytecode instead of running")
	outPath := flag.String("o", "", "Output path for -c (default: input with .pkb extension)")
	disasmMode := flag.Bool("d", false, "Disassemble a bytecode file")
	dump := flag.Bool("dump", false, "Print stack state after the run")
	trace := flag.Bool("trace", false, "Trace each instruction as it executes")
	journalPath := flag.String("journal", "", "Journal database path (overrides pushkin.toml)")
	history := flag.Int("history", 0, "Show the last N journaled runs and exit")
	serveMode := flag.Bool("serve", false, "Start the execution service (Connect HTTP/JSON)")
	servePort := flag.Int("port", 8714, "Service port (used with -serve)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: pk [options] [file...]\n\n")
		fmt.Fprintf(os.Stderr, "Runs stack machine programs from assembly (.pka) or bytecode (.pkb) files.\n")
		fmt.Fprintf(os.Stderr, "Files given together run on one machine; stack and memory carry over.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  pk demo.pka                              # Assemble and run\n")
		fmt.Fprintf(os.Stderr, "  pk -e 'PUSH 2; PUSH 3; MUL; PRINT; HALT'\n")
		fmt.Fprintf(os.Stderr, "  pk -c demo.pka -o demo.pkb               # Compile to bytecode\n")
		fmt.Fprintf(os.Stderr, "  pk -d demo.pkb                           # Disassemble\n")
		fmt.Fprintf(os.Stderr, "  pk -i                                    # Start REPL\n")
		fmt.Fprintf(os.Stderr, "  pk -serve -port 8714                     # Start execution service\n")
		fmt.Fprintf(os.Stderr, "  pk -history 10                           # Show recent journaled runs\n")
	}
	flag.Parse()

	// Flags given on the command line win over pushkin.toml values.
	explicit := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	mf, err := manifest.FindAndLoad(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	hasManifest := mf != nil
	if mf == nil {
		mf = manifest.Default()
	}

	doTrace := mf.Run.Trace
	if explicit["trace"] {
		doTrace = *trace
	}
	doDump := mf.Run.Dump
	if explicit["dump"] {
		doDump = *dump
	}

	log := buildLogger(*verbose, doTrace)

	if *history > 0 {
		if err := showHistory(mf, explicit, *journalPath, hasManifest, *history); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *compileMode {
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "Error: -c takes exactly one assembly file")
			os.Exit(1)
		}
		if err := compileFile(flag.Arg(0), *outPath, *verbose); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *disasmMode {
		if flag.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "Error: -d takes exactly one bytecode file")
			os.Exit(1)
		}
		if err := disassembleFile(flag.Arg(0)); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *serveMode {
		addr := mf.Server.Addr
		if explicit["port"] {
			addr = fmt.Sprintf(":%d", *servePort)
		}
		if err := serve(mf, explicit, *journalPath, hasManifest, addr, log); err != nil {
			fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if *expr != "" || flag.NArg() > 0 {
		ok := runPrograms(mf, explicit, *journalPath, hasManifest, *expr, flag.Args(), doTrace, doDump, *verbose, log)
		if !ok {
			os.Exit(1)
		}
		return
	}

	if *interactive || flag.NArg() == 0 {
		runREPL(doTrace, log)
	}
}

// buildLogger configures the CLI logger. Trace mode needs the trace level
// open or per-instruction events are dropped.
func buildLogger(verbose, trace bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	if trace {
		level = zerolog.TraceLevel
	}
	return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger()
}

// openJournal opens the configured journal, or returns nil when neither a
// manifest nor -journal asks for one.
func openJournal(mf *manifest.Manifest, explicit map[string]bool, journalPath string, hasManifest bool) (*journal.Journal, error) {
	dsn := mf.JournalDSN()
	if explicit["journal"] {
		dsn = journalPath
	} else if !hasManifest {
		return nil, nil
	}
	return journal.Open(mf.Journal.Driver, dsn)
}

// loadProgramFile reads a .pka or .pkb file into a program. Bytecode is
// detected by content, not extension.
func loadProgramFile(path string) (vm.Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if bytecode.IsBytecode(data) {
		f, err := bytecode.Unmarshal(data)
		if err != nil {
			return nil, err
		}
		return f.Program()
	}
	prog, err := asm.Assemble(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return prog, nil
}

// runPrograms executes the inline expression and/or the given files on a
// single machine, journaling each run. Returns false if any run faulted.
func runPrograms(mf *manifest.Manifest, explicit map[string]bool, journalPath string, hasManifest bool, expr string, paths []string, trace, dump, verbose bool, log zerolog.Logger) bool {
	jnl, err := openJournal(mf, explicit, journalPath, hasManifest)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: journal disabled: %v\n", err)
		jnl = nil
	}
	if jnl != nil {
		defer jnl.Close()
	}

	var out io.Writer = os.Stdout
	var captured *strings.Builder
	if jnl != nil {
		captured = &strings.Builder{}
		out = io.MultiWriter(os.Stdout, captured)
	}

	machine := vm.NewMachine(
		vm.WithOutput(out),
		vm.WithLogger(log),
		vm.WithTrace(trace),
	)

	type job struct {
		name string
		prog vm.Program
	}
	var jobs []job

	if expr != "" {
		// Inline programs separate instructions with ';', which doubles
		// as the comment lead-in; rewrite before assembling.
		src := strings.ReplaceAll(expr, ";", "\n")
		prog, err := asm.Assemble(src)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		jobs = append(jobs, job{name: "inline", prog: prog})
	}
	for _, path := range paths {
		prog, err := loadProgramFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return false
		}
		jobs = append(jobs, job{name: filepath.Base(path), prog: prog})
	}

	ok := true
	for _, jb := range jobs {
		if verbose {
			fmt.Fprintf(os.Stderr, "Running %s (%d instructions)\n", jb.name, len(jb.prog))
		}
		if captured != nil {
			captured.Reset()
		}

		started := time.Now()
		machine.LoadProgram(jb.prog)
		machine.Run()
		duration := time.Since(started)

		if jnl != nil {
			entry := &journal.Entry{
				Program:   jb.name,
				Outcome:   outcomeOf(machine),
				PC:        machine.Engine().PC(),
				Output:    captured.String(),
				StartedAt: started,
				Duration:  duration,
			}
			if f := machine.Fault(); f != nil {
				entry.Fault = f.Error()
			}
			if err := jnl.Append(entry); err != nil {
				log.Error().Err(err).Msg("journal append failed")
			}
		}

		if machine.Fault() != nil {
			ok = false
			break
		}
	}

	if dump {
		machine.DumpState()
	}
	return ok
}

// outcomeOf classifies a finished run for the journal.
func outcomeOf(m *vm.Machine) string {
	switch {
	case m.Fault() != nil:
		return journal.OutcomeFault
	case m.Running():
		return journal.OutcomeCompleted
	default:
		return journal.OutcomeHalted
	}
}

// compileFile assembles a .pka file into a .pkb bytecode file.
func compileFile(inPath, outPath string, verbose bool) error {
	data, err := os.ReadFile(inPath)
	if err != nil {
		return err
	}
	prog, err := asm.Assemble(string(data))
	if err != nil {
		return fmt.Errorf("%s: %w", inPath, err)
	}

	name := strings.TrimSuffix(filepath.Base(inPath), ".pka")
	encoded, err := bytecode.Marshal(bytecode.FromProgram(name, prog))
	if err != nil {
		return err
	}

	if outPath == "" {
		outPath = strings.TrimSuffix(inPath, ".pka") + ".pkb"
	}
	if err := os.WriteFile(outPath, encoded, 0644); err != nil {
		return err
	}
	if verbose {
		fmt.Printf("Wrote %s (%d instructions, %d bytes)\n", outPath, len(prog), len(encoded))
	}
	return nil
}

// disassembleFile prints the listing for a .pkb bytecode file.
func disassembleFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	f, err := bytecode.Unmarshal(data)
	if err != nil {
		return err
	}
	prog, err := f.Program()
	if err != nil {
		return err
	}
	fmt.Print(asm.DisassembleWithName(prog, f.Name))
	return nil
}

// showHistory prints the most recent journaled runs and an outcome summary.
func showHistory(mf *manifest.Manifest, explicit map[string]bool, journalPath string, hasManifest bool, n int) error {
	jnl, err := openJournal(mf, explicit, journalPath, hasManifest)
	if err != nil {
		return err
	}
	if jnl == nil {
		fmt.Println("No journal configured (add a pushkin.toml or pass -journal).")
		return nil
	}
	defer jnl.Close()

	entries, err := jnl.Recent(n)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No journaled runs.")
		return nil
	}

	for _, e := range entries {
		fmt.Printf("%s  %-20s %-9s pc=%-4d %s\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"),
			e.Program, e.Outcome, e.PC, e.Fault)
	}

	counts, err := jnl.Summary()
	if err != nil {
		return err
	}
	fmt.Printf("\n%d halted, %d completed, %d faulted\n",
		counts[journal.OutcomeHalted], counts[journal.OutcomeCompleted], counts[journal.OutcomeFault])
	return nil
}

// serve starts the execution service.
func serve(mf *manifest.Manifest, explicit map[string]bool, journalPath string, hasManifest bool, addr string, log zerolog.Logger) error {
	jnl, err := openJournal(mf, explicit, journalPath, hasManifest)
	if err != nil {
		return err
	}

	opts := []server.Option{
		server.WithLogger(log),
		server.WithEvalTimeout(mf.Server.EvalTimeout.Duration),
	}
	if jnl != nil {
		defer jnl.Close()
		opts = append(opts, server.WithJournal(jnl))
	}

	srv := server.New(opts...)
	defer srv.Stop()
	return srv.ListenAndServe(addr)
}

// runREPL starts an interactive read-eval-print loop. Each line loads as
// its own program on the shared machine, so stack and memory carry from
// line to line.
func runREPL(trace bool, log zerolog.Logger) {
	machine := vm.NewMachine(
		vm.WithLogger(log),
		vm.WithTrace(trace),
	)

	fmt.Println("Pushkin REPL (type 'exit' to quit, ':help' for commands)")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print(">> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return
		case strings.HasPrefix(line, ":"):
			if !handleREPLCommand(machine, line) {
				return
			}
			continue
		}

		prog, err := asm.Assemble(line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		machine.LoadProgram(prog)
		machine.Run()
	}
}

// handleREPLCommand processes ':' commands. Returns false to exit.
func handleREPLCommand(machine *vm.Machine, cmd string) bool {
	switch cmd {
	case ":dump":
		machine.DumpState()
	case ":mem":
		fmt.Printf("Memory cells: %d\n", machine.Engine().Memory().Len())
	case ":pc":
		fmt.Printf("PC: %d (running: %v)\n", machine.Engine().PC(), machine.Running())
	case ":quit":
		return false
	case ":help":
		fmt.Println("Commands:")
		fmt.Println("  :dump   Print stack size and top value")
		fmt.Println("  :mem    Print populated memory cell count")
		fmt.Println("  :pc     Print program counter and run flag")
		fmt.Println("  :quit   Exit the REPL")
		fmt.Println("Any other line assembles and runs on the shared machine.")
	default:
		fmt.Printf("Unknown command %s (try :help)\n", cmd)
	}
	return true
}
