// Command htmlrewrite is a small CLI and reverse-proxy front end for the
// htmlrewriter package: it rewrites a document read from stdin (or
// proxied from an upstream server in -serve mode) according to an
// optional XML rule file and YAML settings file, and writes the result
// to stdout (or back to the proxied client).
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"

	"github.com/streamrewrite/htmlrewriter"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "htmlrewrite:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("htmlrewrite", flag.ContinueOnError)
	rulesPath := fs.String("rules", "", "XML rule file describing selector/mutation pairs")
	configPath := fs.String("config", "", "YAML file overriding default Settings")
	strict := fs.Bool("strict", false, "set Settings.Strict (the tokenizer does not act on it)")
	maxMemory := fs.Uint64("max-memory", htmlrewriter.DefaultMaxAllowedMemoryUsage, "memory ceiling in bytes")
	serveAddr := fs.String("serve", "", "listen address for reverse-proxy mode, e.g. :8080")
	upstream := fs.String("upstream", "", "upstream base URL to proxy in -serve mode")
	if err := fs.Parse(args); err != nil {
		return err
	}

	settings := htmlrewriter.Settings{
		Strict: *strict,
		Memory: htmlrewriter.MemorySettings{MaxAllowedMemoryUsage: *maxMemory},
	}
	settings, err := loadConfig(*configPath, settings)
	if err != nil {
		return err
	}

	var rules []rule
	if *rulesPath != "" {
		rules, err = loadRules(*rulesPath)
		if err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *serveAddr != "" {
		if *upstream == "" {
			return fmt.Errorf("-serve requires -upstream")
		}
		u, err := url.Parse(*upstream)
		if err != nil {
			return fmt.Errorf("parse -upstream: %w", err)
		}
		return runServe(serveConfig{
			addr:     *serveAddr,
			upstream: u,
			settings: settings,
			rules:    rules,
			logger:   logger,
		})
	}

	return rewriteStdio(settings, rules)
}

// rewriteStdio reads all of stdin, rewrites it, and writes the result to
// stdout — the one-shot convenience path for pipeline use.
func rewriteStdio(settings htmlrewriter.Settings, rules []rule) error {
	input, err := io.ReadAll(os.Stdin)
	if err != nil {
		return fmt.Errorf("read stdin: %w", err)
	}

	settings.ElementContentHandlers = handlers(rules)
	rw, err := htmlrewriter.NewRewriter(settings, func(p []byte) error {
		_, err := os.Stdout.Write(p)
		return err
	})
	if err != nil {
		return err
	}
	if err := rw.Write(input); err != nil {
		return err
	}
	return rw.End()
}
