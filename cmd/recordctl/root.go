package main

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danmuck/tagwire/internal/config"
	"github.com/danmuck/tagwire/internal/protocol/text"
	"github.com/danmuck/tagwire/internal/records"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	format     string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:   "recordctl",
		Short: "Inspect, validate and transcode tagged wire records",
		Long: `recordctl converts records between their text form (JSON or YAML) and the
tagged little-endian wire format, validates text against record shapes, and
serves the same operations over HTTP.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "TOML config file (defaults apply when empty)")
	root.PersistentFlags().StringVarP(&flags.format, "format", "f", "", "text format: json or yaml (overrides config)")

	root.AddCommand(
		newTypesCmd(),
		newValidateCmd(flags),
		newEncodeCmd(flags),
		newDecodeCmd(flags),
		newSkipCmd(),
		newServeCmd(flags),
		newConfigCmd(),
	)
	return root
}

func (f *rootFlags) loadConfig() (config.Config, error) {
	if f.configPath == "" {
		return config.Default(), nil
	}
	return config.Load(f.configPath)
}

// options resolves codec options from the config file and flag overrides.
func (f *rootFlags) options() (records.Options, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return records.Options{}, err
	}
	if f.format != "" {
		cfg.Text.Format = f.format
	}
	engine, err := cfg.TextEngine()
	if err != nil {
		return records.Options{}, err
	}
	return records.Options{
		Text:   text.NewTranscoder(engine),
		Limits: cfg.BufferLimits(),
		Strict: cfg.Decode.StrictLength,
	}, nil
}

func readInput(cmd *cobra.Command, path string) ([]byte, error) {
	if path == "" || path == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// decodeHex accepts hex digits with arbitrary whitespace between them.
func decodeHex(data []byte) ([]byte, error) {
	out, err := hex.DecodeString(strings.Join(strings.Fields(string(data)), ""))
	if err != nil {
		return nil, fmt.Errorf("decode hex input: %w", err)
	}
	return out, nil
}
