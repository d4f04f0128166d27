package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/a3tai/label-extractor/internal/app"
	"github.com/a3tai/label-extractor/internal/pdf"
)

// errCheckFailed makes the exit status non-zero for an invalid PDF.
var errCheckFailed = errors.New("PDF check failed")

type options struct {
	format      string
	password    string
	maxFileSize int64
}

func main() {
	if err := app.LoadEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		if !errors.Is(err, errCheckFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	var opts options
	fs := pflag.NewFlagSet("pdfcheck", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.format, "format", "text", "Output format: text, json")
	fs.StringVar(&opts.password, "password", os.Getenv("LABEL_PDF_PASSWORD"), "Password for encrypted PDFs (env LABEL_PDF_PASSWORD)")
	fs.Int64Var(&opts.maxFileSize, "max-file-size", pdf.DefaultMaxFileSize, "Maximum PDF file size in bytes")
	fs.Usage = func() { printHelp(stderr, fs) }

	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unsupported output format: %s", opts.format)
	}
	if fs.NArg() == 0 || fs.NArg() > 2 {
		printUsage(stderr)
		return errors.New("PDF file path required")
	}

	in := fs.Arg(0)
	report, err := pdf.NewInspector(opts.maxFileSize).Inspect(in)
	if err != nil {
		return err
	}
	if err := outputReport(stdout, opts.format, report); err != nil {
		return err
	}

	if fs.NArg() == 2 {
		out := fs.Arg(1)
		sanitized, err := pdf.NewSanitizer(opts.maxFileSize).Sanitize(in, out, opts.password)
		if err != nil {
			return fmt.Errorf("sanitize %s: %w", in, err)
		}
		if opts.format == "text" {
			fmt.Fprintf(stdout, "\nSanitized copy written to %s\n", out)
		}
		return outputReport(stdout, opts.format, sanitized)
	}

	if !report.Valid && !report.Encrypted {
		return errCheckFailed
	}
	return nil
}

func printHelp(w io.Writer, fs *pflag.FlagSet) {
	fmt.Fprintln(w, "PDF Check - check a label PDF before it is sent for analysis")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Reports whether the file parses, whether it is encrypted and how many pages")
	fmt.Fprintln(w, "it has. With an output path, writes a decrypted and optimized copy.")
	fmt.Fprintln(w)
	printUsage(w)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "OPTIONS:")
	fs.PrintDefaults()
	fmt.Fprintln(w)
	fmt.Fprintln(w, "EXAMPLES:")
	fmt.Fprintln(w, "  pdfcheck label.pdf")
	fmt.Fprintln(w, "  pdfcheck --format json label.pdf")
	fmt.Fprintln(w, "  pdfcheck --password secret locked.pdf unlocked.pdf")
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "USAGE:")
	fmt.Fprintln(w, "  pdfcheck [OPTIONS] <pdf_file> [sanitized_output.pdf]")
}

func outputReport(w io.Writer, format string, report *pdf.Report) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}

	switch {
	case report.Valid && report.Encrypted:
		fmt.Fprintf(w, "🔒 %s is valid but encrypted\n", report.Path)
	case report.Valid:
		fmt.Fprintf(w, "✅ %s is a valid PDF\n", report.Path)
	case report.Encrypted:
		fmt.Fprintf(w, "🔒 %s is encrypted and needs a password\n", report.Path)
	default:
		fmt.Fprintf(w, "❌ %s failed the check\n", report.Path)
	}
	if report.Size > 0 {
		fmt.Fprintf(w, "Size: %d bytes\n", report.Size)
	}
	if report.PageCount > 0 {
		fmt.Fprintf(w, "Pages: %d\n", report.PageCount)
	}
	if report.Message != "" {
		fmt.Fprintf(w, "Message: %s\n", report.Message)
	}
	return nil
}
