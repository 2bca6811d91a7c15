package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"

	"github.com/pkg/errors"

	"malasm/mal"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("malasm", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	format := fs.String("f", "binary", "output format: binary|text")
	output := fs.String("o", "", "output file (default a.out for binary, a.txt for text)")
	verbose := fs.Bool("v", false, "enable trace diagnostics on stderr")

	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: malasm [-f binary|text] [-o <output>] <input>")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 1
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return 1
	}
	if *format != "binary" && *format != "text" {
		fmt.Fprintf(os.Stderr, "malasm: unrecognized format %q, want binary|text\n", *format)
		return 1
	}

	outputPath := *output
	if outputPath == "" {
		if *format == "text" {
			outputPath = "a.txt"
		} else {
			outputPath = "a.out"
		}
	}

	mal.SetVerbose(*verbose)

	if err := assemble(fs.Arg(0), outputPath, *format); err != nil {
		fmt.Fprintf(os.Stderr, "malasm: %s\n", err)
		return 1
	}
	return 0
}

// assemble runs the lex → parse → build → allocate → emit pipeline and
// writes the result to outputPath, producing no partial output file on
// failure: the output is only opened once every stage before it has
// succeeded.
func assemble(inputPath, outputPath, format string) error {
	lines, err := readLines(inputPath)
	if err != nil {
		return mal.KindErrorf(mal.IOError, err, "reading %s", inputPath)
	}

	parsed, err := mal.Parse(lines)
	if err != nil {
		return err
	}

	prog, err := mal.Build(parsed)
	if err != nil {
		return err
	}

	if err := mal.Allocate(prog); err != nil {
		return err
	}

	var data []byte
	switch format {
	case "text":
		data = mal.EmitText(prog)
	case "binary":
		data = mal.EmitBinary(prog)
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return mal.KindErrorf(mal.IOError, err, "writing %s", outputPath)
	}
	return nil
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.WithStack(err)
	}
	return lines, nil
}
