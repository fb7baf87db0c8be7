// Command swgldis disassembles the shader IR binary instruction
// stream produced by swglc -o back into a listing.
package main

import (
	"fmt"
	"os"

	"github.com/gogpu/swgl/ir"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: swgldis <file.bin>")
		os.Exit(1)
	}
	data, err := os.ReadFile(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	insts, err := ir.DecodeInstructions(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for i, inst := range insts {
		fmt.Printf("%4d: %s\n", i, inst.String())
	}
}
