package main

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/wire"
	"github.com/danmuck/tagwire/internal/records"
	"github.com/spf13/cobra"
)

func newTypesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List record types and their fields",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			for _, t := range records.Types() {
				fmt.Fprintln(out, t.Name())
				for _, f := range t.Shape().Fields {
					fmt.Fprintf(out, "  %3d  %-8s %s\n", f.Tag, f.Name, f.TypeName())
				}
			}
			return nil
		},
	}
}

func newValidateCmd(flags *rootFlags) *cobra.Command {
	var typeName, in string
	cmd := &cobra.Command{
		Use:   "validate --type <name>",
		Short: "Check text input against a record shape",
		Long: `Parse text input and check every present field against the record shape.

Example:
  echo '{"items":[{"x":1}]}' | recordctl validate --type Data`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := records.Lookup(typeName)
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			data, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			v, err := opts.Text.Parse(data)
			if err != nil {
				return err
			}
			if err := t.Validate(v); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "valid %s\n", t.Name())
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "record type name")
	cmd.Flags().StringVarP(&in, "in", "i", "", "input file (stdin when empty)")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newEncodeCmd(flags *rootFlags) *cobra.Command {
	var (
		typeName, in, out string
		asHex             bool
	)
	cmd := &cobra.Command{
		Use:   "encode --type <name>",
		Short: "Validate text input and encode it to wire bytes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := records.Lookup(typeName)
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			data, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			encoded, err := t.TextToWire(opts, data)
			if err != nil {
				return err
			}
			if asHex {
				encoded = []byte(hex.EncodeToString(encoded) + "\n")
			}
			return writeOutput(cmd, out, encoded)
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "record type name")
	cmd.Flags().StringVarP(&in, "in", "i", "", "input file (stdin when empty)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (stdout when empty)")
	cmd.Flags().BoolVar(&asHex, "hex", false, "write hex instead of raw bytes")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newDecodeCmd(flags *rootFlags) *cobra.Command {
	var (
		typeName, in  string
		asHex, strict bool
	)
	cmd := &cobra.Command{
		Use:   "decode --type <name>",
		Short: "Decode wire bytes to text",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := records.Lookup(typeName)
			if err != nil {
				return err
			}
			opts, err := flags.options()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				opts.Strict = strict
			}
			data, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			if asHex {
				if data, err = decodeHex(data); err != nil {
					return err
				}
			}
			s, used, err := t.WireToText(opts, data)
			if err != nil {
				return err
			}
			if extra := len(data) - used; extra > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %d trailing bytes after %s record (use --strict to reject)\n", extra, t.Name())
			}
			fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(s, "\n"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&typeName, "type", "t", "", "record type name")
	cmd.Flags().StringVarP(&in, "in", "i", "", "input file (stdin when empty)")
	cmd.Flags().BoolVar(&asHex, "hex", false, "input is hex text")
	cmd.Flags().BoolVar(&strict, "strict", false, "check length prefixes against consumed bytes and reject trailing bytes")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func newSkipCmd() *cobra.Command {
	var (
		in    string
		asHex bool
	)
	cmd := &cobra.Command{
		Use:   "skip",
		Short: "Walk concatenated records by their length prefixes",
		Long: `Print the offset and size of each record in a stream of concatenated records
without decoding any fields.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd, in)
			if err != nil {
				return err
			}
			if asHex {
				if data, err = decodeHex(data); err != nil {
					return err
				}
			}
			r := buffer.NewReader(data)
			for count := 0; r.Remaining() > 0; count++ {
				start := r.Pos()
				n, err := wire.Skip(r)
				if err != nil {
					return fmt.Errorf("record %d at offset %d: %w", count, start, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "record %d offset=%d bytes=%d\n", count, start, n)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "", "input file (stdin when empty)")
	cmd.Flags().BoolVar(&asHex, "hex", false, "input is hex text")
	return cmd
}
