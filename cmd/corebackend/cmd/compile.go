package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/corebackend/backend/internal/compiler"
	"github.com/corebackend/backend/internal/textir"
	"github.com/corebackend/backend/pkg/config"
	"github.com/corebackend/backend/pkg/lir"
	"github.com/corebackend/backend/pkg/regalloc"
	"github.com/corebackend/backend/pkg/x64"
)

var (
	compileFile string
	dumpLIR     bool
	dumpAsm     bool
	runArgsRaw  string
)

// defaultIntegerClasses is the pool of general-purpose registers made
// available to allocation: RCX, RDX, RBX, RSI, RDI and R8-R11. RSP/RBP
// (frame pointers) and RAX (the return-value register lowerRet writes
// into) are never handed to the allocator, and R12-R15 are not in the
// pool.
var defaultIntegerClasses = regalloc.Classes{
	Integer: []int32{1, 2, 3, 6, 7, 8, 9, 10, 11},
}

var compileCmd = &cobra.Command{
	Use:   "compile",
	Short: "Compile a textual function description to machine code",
	Long: `compile reads a function written in the textual format
internal/textir documents, runs it through the full pipeline (critical-
edge splitting, liveness, conflict-map construction, register
allocation, code emission, installation), and optionally invokes the
result and dumps its LIR or disassembly.`,
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)

	compileCmd.Flags().StringVarP(&compileFile, "file", "f", "", "Path to the function description (required)")
	compileCmd.MarkFlagRequired("file")
	compileCmd.Flags().BoolVar(&dumpLIR, "dump-lir", false, "Print the function's LIR after lowering")
	compileCmd.Flags().BoolVar(&dumpAsm, "dump-asm", false, "Print the disassembly of the emitted machine code")
	compileCmd.Flags().StringVar(&runArgsRaw, "run", "", "Comma-separated int64 arguments to invoke the compiled function with")
}

func runCompile(cmd *cobra.Command, args []string) error {
	log := GetLogger()

	src, err := os.ReadFile(compileFile)
	if err != nil {
		return fmt.Errorf("reading %s: %w", compileFile, err)
	}

	fn, err := textir.Parse(string(src))
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	comp, err := compiler.NewCompilation(cfg, log)
	if err != nil {
		return err
	}
	defer comp.Close()

	pipeline := compiler.NewPipeline(comp, defaultIntegerClasses)
	result, err := pipeline.Run(context.Background(), fn.Name, fn)
	if err != nil {
		return fmt.Errorf("compiling %s: %w", fn.Name, err)
	}

	if dumpLIR {
		fmt.Println(lir.Print(result.Function))
	}
	if dumpAsm {
		for _, inst := range x64.Disassemble(result.Builder.Bytes()) {
			fmt.Println(inst.String())
		}
	}
	if verbose {
		fmt.Println("phase timings:")
		for _, rec := range result.Passes {
			fmt.Printf("  %-24s %s\n", rec.Name(), rec.Duration())
		}
	}

	if runArgsRaw != "" {
		runArgs, err := parseRunArgs(runArgsRaw)
		if err != nil {
			return err
		}
		fmt.Println(result.Installed.Invoke(runArgs...))
	}

	return nil
}

func parseRunArgs(raw string) ([]int64, error) {
	fields := strings.Split(raw, ",")
	out := make([]int64, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.ParseInt(strings.TrimSpace(f), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("--run: bad integer %q: %w", f, err)
		}
		out = append(out, n)
	}
	return out, nil
}
