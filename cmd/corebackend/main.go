// Command corebackend drives the compilation pipeline from the command
// line: the compile subcommand reads a textual function description,
// runs it through every analysis and transform pass, installs the
// resulting machine code into an in-process memory pool, and (on
// request) dumps the LIR or disassembly produced along the way.
package main

import "github.com/corebackend/backend/cmd/corebackend/cmd"

func main() {
	cmd.Execute()
}
