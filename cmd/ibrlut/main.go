// ibrlut inspects and renders colormap lookup table files.
//
// Usage:
//
//	ibrlut list FILE
//	ibrlut check FILE [FILE ...]
//	ibrlut builtins [-out FILE]
//	ibrlut bar -table NAME [-lut FILE] -out FILE [-w 256] [-h 32]
//
// Commands:
//
//	list      print the tables of a file with their control point counts
//	check     validate files; exit code 1 if any file is invalid
//	builtins  write the built-in tables as JSON (stdout by default)
//	bar       render a table as a color bar image
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mrjoshuak/go-ibr/ibr"
	"github.com/mrjoshuak/go-ibr/ibrstore"
)

const version = "1.0.0"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  ibrlut list FILE\n")
	fmt.Fprintf(w, "  ibrlut check FILE [FILE ...]\n")
	fmt.Fprintf(w, "  ibrlut builtins [-out FILE]\n")
	fmt.Fprintf(w, "  ibrlut bar -table NAME [-lut FILE] -out FILE [-w 256] [-h 32]\n")
}

// run executes one command and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	var err error
	switch args[0] {
	case "list":
		err = list(args[1:], stdout)
	case "check":
		return check(args[1:], stdout, stderr, logger)
	case "builtins":
		err = builtins(args[1:], stdout, stderr)
	case "bar":
		err = bar(args[1:], stderr, logger)
	case "-h", "--help", "help":
		printUsage(stdout)
		return 0
	case "--version", "version":
		fmt.Fprintf(stdout, "ibrlut version %s\n", version)
		return 0
	default:
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 2
	}

	var usage usageError
	switch {
	case errors.As(err, &usage):
		fmt.Fprintf(stderr, "Error: %v\n", err)
		printUsage(stderr)
		return 2
	case err != nil:
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

type usageError string

func (e usageError) Error() string { return string(e) }

func list(args []string, stdout io.Writer) error {
	if len(args) != 1 {
		return usageError("list takes exactly one file")
	}
	lut := ibr.NewLookupTable()
	if err := lut.ReadFile(args[0]); err != nil {
		return err
	}
	for _, name := range lut.Names() {
		if name == ibr.IdentityTable {
			continue
		}
		e, _ := lut.Entry(name)
		fmt.Fprintf(stdout, "%-24s %-8s %3d points\n", e.Name, e.ColorSpace, len(e.Positions))
	}
	return nil
}

// check validates every file independently and reports each problem.
func check(args []string, stdout, stderr io.Writer, logger *slog.Logger) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Error: No input files specified")
		return 2
	}
	failed := 0
	for _, path := range args {
		lut := ibr.NewLookupTable()
		err := lut.ReadFile(path)
		if err == nil {
			fmt.Fprintf(stdout, "%s: OK (%d tables)\n", path, len(lut.Names())-1)
			continue
		}
		failed++
		var invalid *ibr.InvalidLUTFileError
		if errors.As(err, &invalid) {
			logger.Error("invalid lookup table", "file", path, "entry", invalid.Entry, "name", invalid.Name, "reason", invalid.Reason)
		} else {
			logger.Error("cannot read file", "file", path, "err", err)
		}
		fmt.Fprintf(stdout, "%s: INVALID\n", path)
	}
	if len(args) > 1 {
		fmt.Fprintf(stdout, "\n%d/%d files valid\n", len(args)-failed, len(args))
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func builtins(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("builtins", flag.ContinueOnError)
	fs.SetOutput(stderr)
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}

	if *out == "" {
		return ibr.WriteTables(stdout, ibr.BuiltinTables())
	}
	f, err := os.Create(*out)
	if err != nil {
		return err
	}
	if err := ibr.WriteTables(f, ibr.BuiltinTables()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func bar(args []string, stderr io.Writer, logger *slog.Logger) error {
	fs := flag.NewFlagSet("bar", flag.ContinueOnError)
	fs.SetOutput(stderr)
	table := fs.String("table", "", "table to render")
	lutPath := fs.String("lut", "", "lookup table file (default: built-in tables)")
	out := fs.String("out", "", "output image, format from extension")
	w := fs.Int("w", 256, "bar width")
	h := fs.Int("h", 32, "bar height")
	if err := fs.Parse(args); err != nil {
		return usageError(err.Error())
	}
	if *table == "" || *out == "" {
		return usageError("bar needs -table and -out")
	}
	if *w <= 0 || *h <= 0 {
		return usageError("bar size must be positive")
	}

	lut := ibr.NewBuiltinLookupTable()
	if *lutPath != "" {
		if err := lut.ReadFile(*lutPath); err != nil {
			return err
		}
	}
	if _, ok := lut.Entry(*table); !ok {
		return fmt.Errorf("unknown table %q", *table)
	}
	lut.Select(*table)

	if err := ibrstore.Encode(*out, lut.ColorBar(*w, *h)); err != nil {
		return err
	}
	logger.Info("wrote color bar", "table", *table, "out", *out)
	return nil
}
