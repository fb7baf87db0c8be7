// Command swglc is the swgl shader compiler CLI.
//
// Usage:
//
//	swglc [options] <input>
//
// Examples:
//
//	swglc shader.frag                  # Compile and list the IR
//	swglc -stage vertex shader.vert    # Compile as a vertex shader
//	swglc -o shader.bin shader.frag    # Write the binary instruction stream
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gogpu/swgl/glsl"
	"github.com/gogpu/swgl/ir"
)

var (
	output  = flag.String("o", "", "output file (default: stdout listing)")
	stage   = flag.String("stage", "", "shader stage: vertex or fragment (default: by file extension)")
	version = flag.Bool("version", false, "print version")
)

const swglVersion = "0.1.0-dev"

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		fmt.Printf("swglc version %s\n", swglVersion)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no input file specified")
		usage()
		os.Exit(1)
	}
	inputPath := args[0]

	source, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	kind := glsl.FragmentShaderKind
	switch {
	case *stage == "vertex":
		kind = glsl.VertexShaderKind
	case *stage == "fragment":
	case *stage == "":
		if strings.HasSuffix(inputPath, ".vert") || strings.HasSuffix(inputPath, ".vs") {
			kind = glsl.VertexShaderKind
		}
	default:
		fmt.Fprintf(os.Stderr, "Error: unknown stage %q\n", *stage)
		os.Exit(1)
	}

	result := glsl.Compile([]string{string(source)}, kind)
	if !result.OK {
		fmt.Fprint(os.Stderr, result.InfoLog)
		os.Exit(1)
	}
	if result.InfoLog != "" {
		fmt.Fprint(os.Stderr, result.InfoLog)
	}

	if *output == "" {
		fmt.Print(result.Program.Listing())
		return
	}
	data := ir.EncodeInstructions(result.Program.Instructions)
	if err := os.WriteFile(*output, data, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %d instructions (%d bytes) to %s\n",
		len(result.Program.Instructions), len(data), *output)
}

func usage() {
	fmt.Fprintf(os.Stderr, `swglc - GLSL ES shader compiler

Usage:
  swglc [options] <input>

Options:
  -o <file>       write the binary instruction stream instead of a listing
  -stage <name>   vertex or fragment (default: guessed from the extension)
  -version        print version

`)
}
