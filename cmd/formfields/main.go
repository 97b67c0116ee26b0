// Command formfields lists the fields of a published form page so a link job
// can be set up without copying field ids by hand.
//
// Usage (fetch URL):
//
//	formfields -url "https://form.gov.sg/<form id>"
//
// Usage (stdin, spreadsheet template for link mode):
//
//	cat form.html | formfields -format csv > template.csv
//
// Debug (print outer HTML blocks, or text with -text):
//
//	cat form.html | formfields -selector "div.field" -text
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"prefill/internal/config"
	"prefill/internal/formschema"
	"prefill/internal/output"
	"prefill/internal/pipeline"
	"prefill/internal/schema"
)

func main() {
	os.Exit(run(
		context.Background(),
		os.Args[1:],
		os.Stdin,
		os.Stdout,
		os.Stderr,
		http.DefaultClient,
	))
}

// run returns a Unix-style exit code: 0 for success, 2 for usage errors and
// 1 for runtime errors.
func run(
	ctx context.Context,
	args []string,
	stdin io.Reader,
	stdout io.Writer,
	stderr io.Writer,
	httpClient *http.Client,
) int {
	fs := flag.NewFlagSet("formfields", flag.ContinueOnError)
	fs.SetOutput(stderr)

	urlFlag := fs.String("url", "", "Optional: fetch the form page from URL instead of stdin")
	rulesPath := fs.String("rules", "", "Optional: JSON rules file (field_selector, id_attr, id_match, label_selector)")
	format := fs.String("format", "json", "Output format: json|yaml|csv (csv is the link-mode spreadsheet template)")
	timeout := fs.Duration("timeout", 20*time.Second, "Timeout for -url fetch")
	debugSelector := fs.String("selector", "", "Debug: CSS selector to print matches for")
	onlyText := fs.Bool("text", false, "Debug: print text blocks for -selector matches")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	switch *format {
	case "json", "yaml", "csv":
	default:
		fmt.Fprintf(stderr, "invalid -format %q (want json, yaml or csv)\n", *format)
		return 2
	}

	rules := formschema.DefaultRules()
	if *rulesPath != "" {
		r, err := formschema.LoadRules(*rulesPath)
		if err != nil {
			fmt.Fprintf(stderr, "load rules: %v\n", err)
			return 2
		}
		rules = r
	}

	loader := formschema.NewLoader(httpClient, *timeout)
	html, err := loader.Load(ctx, formschema.Input{URL: *urlFlag, Stdin: stdin})
	if err != nil {
		fmt.Fprintf(stderr, "load html: %v\n", err)
		return 1
	}

	if *debugSelector != "" {
		if err := formschema.DebugPrintSelector(stdout, html, *debugSelector, *onlyText); err != nil {
			fmt.Fprintf(stderr, "debug selector: %v\n", err)
			return 1
		}
		return 0
	}

	fields, err := formschema.Extract(html, rules)
	if err != nil {
		fmt.Fprintf(stderr, "extract: %v\n", err)
		return 1
	}

	if err := write(stdout, *format, fields); err != nil {
		fmt.Fprintf(stderr, "write %s: %v\n", *format, err)
		return 1
	}
	return 0
}

func write(w io.Writer, format string, fields schema.FieldSet) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(struct {
			Fields schema.FieldSet `yaml:"fields"`
		}{fields}); err != nil {
			return err
		}
		return enc.Close()

	case "csv":
		job := config.Job{
			Mode: config.ModeLink,
			Link: config.LinkConfig{IDColumn: "FieldID", ValuesColumn: "values", DescriptionColumn: "description"},
		}
		return output.WriteCSV(w, pipeline.Template(job, pipeline.Result{Fields: fields}))

	default:
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		return enc.Encode(fields)
	}
}
