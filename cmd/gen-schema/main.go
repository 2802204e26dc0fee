// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Passgate Contributors

// Command gen-schema writes the config file JSON Schema.
//
// With -check it exits non-zero if the committed schema is stale instead
// of rewriting it.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/passgate/passgate/internal/config"
)

func main() {
	outPath := flag.String("out", filepath.Join("schemas", "config.schema.json"), "output file")
	check := flag.Bool("check", false, "verify the output file is up to date")
	flag.Parse()

	if err := run(*outPath, *check); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(outPath string, check bool) error {
	schema, err := config.GenerateSchema()
	if err != nil {
		return fmt.Errorf("generating schema: %w", err)
	}
	schema = append(schema, '\n')

	if check {
		existing, err := os.ReadFile(outPath) //nolint:gosec // developer supplied path
		if err != nil {
			return fmt.Errorf("reading %s: %w", outPath, err)
		}
		if !bytes.Equal(existing, schema) {
			return fmt.Errorf("%s is stale; run go run ./cmd/gen-schema", outPath)
		}
		fmt.Printf("%s is up to date\n", outPath)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(outPath, schema, 0o600); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	fmt.Printf("Generated %s\n", outPath)
	return nil
}
