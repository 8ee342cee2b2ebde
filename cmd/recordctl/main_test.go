package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danmuck/tagwire/internal/protocol/schema"
	"github.com/danmuck/tagwire/internal/protocol/text"
	"github.com/danmuck/tagwire/internal/records"
	"github.com/danmuck/tagwire/internal/testutil/testlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestTypesCommand(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "", "types")
	require.NoError(t, err)
	assert.Contains(t, out, "Data\n")
	assert.Contains(t, out, "sequence<Item>")
	assert.Contains(t, out, "float64")
}

func TestValidateCommand(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, `{"items":[{"x":1}]}`, "validate", "--type", "Data")
	require.NoError(t, err)
	assert.Equal(t, "valid Data\n", out)

	_, err = run(t, `{"items":[{"x":"1"}]}`, "validate", "--type", "Data")
	assert.ErrorIs(t, err, schema.ErrShape)

	_, err = run(t, "  ", "validate", "--type", "Data")
	assert.ErrorIs(t, err, text.ErrFormat)

	_, err = run(t, "x: 1\n", "validate", "--type", "Item", "--format", "yaml")
	assert.NoError(t, err)

	_, err = run(t, "{}", "validate", "--type", "Nope")
	assert.ErrorIs(t, err, records.ErrUnknownType)

	_, err = run(t, "{}", "validate")
	assert.Error(t, err)
}

func TestEncodeDecodeHexRoundTrip(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, `{}`, "encode", "--type", "Item", "--hex")
	require.NoError(t, err)
	assert.Equal(t, "0100000000\n", out)

	encoded, err := run(t, `{"items":[{"x":1},{"y":2.5}]}`, "encode", "--type", "Data", "--hex")
	require.NoError(t, err)

	out, err = run(t, encoded, "decode", "--type", "Data", "--hex")
	require.NoError(t, err)
	assert.Equal(t, "{\"items\":[{\"x\":1},{\"y\":2.5}]}\n", out)

	tampered := "07000000 01 01000000 00 00"
	_, err = run(t, tampered, "decode", "--type", "Item", "--hex")
	require.NoError(t, err)
	_, err = run(t, tampered, "decode", "--type", "Item", "--hex", "--strict")
	assert.Error(t, err)

	_, err = run(t, "zz", "decode", "--type", "Item", "--hex")
	assert.Error(t, err)
}

func TestDecodeTrailingBytes(t *testing.T) {
	testlog.Start(t)
	out, err := run(t, "0100000000 ff", "decode", "--type", "Item", "--hex")
	require.NoError(t, err)
	assert.Contains(t, out, "warning: 1 trailing bytes after Item record")
	assert.Contains(t, out, "{}\n")

	_, err = run(t, "0100000000 ff", "decode", "--type", "Item", "--hex", "--strict")
	assert.ErrorIs(t, err, records.ErrTrailingBytes)

	out, err = run(t, "0100000000", "decode", "--type", "Item", "--hex", "--strict")
	require.NoError(t, err)
	assert.Equal(t, "{}\n", out)
}

func TestEncodeRejectsTrailingText(t *testing.T) {
	testlog.Start(t)
	_, err := run(t, `{"x":1}{"x":2}`, "encode", "--type", "Item", "--hex")
	assert.ErrorIs(t, err, text.ErrFormat)
}

func TestEncodeToFileAndSkip(t *testing.T) {
	testlog.Start(t)
	dir := t.TempDir()
	first := filepath.Join(dir, "a.bin")
	second := filepath.Join(dir, "b.bin")

	_, err := run(t, `{"x":1}`, "encode", "--type", "Item", "--out", first)
	require.NoError(t, err)
	_, err = run(t, `{"items":[]}`, "encode", "--type", "Data", "--out", second)
	require.NoError(t, err)

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	stream := filepath.Join(dir, "stream.bin")
	require.NoError(t, os.WriteFile(stream, append(a, b...), 0o600))

	out, err := run(t, "", "skip", "--in", stream)
	require.NoError(t, err)
	assert.Equal(t, "record 0 offset=0 bytes=10\nrecord 1 offset=10 bytes=10\n", out)

	_, err = run(t, "0a000000 01", "skip", "--hex")
	assert.Error(t, err)
}

func TestConfigCommands(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "recordctl.toml")

	out, err := run(t, "", "config", "init", "--output", path)
	require.NoError(t, err)
	assert.Contains(t, out, path)

	_, err = run(t, "", "config", "init", "--output", path)
	assert.Error(t, err)

	out, err = run(t, "", "config", "check", "--input", path)
	require.NoError(t, err)
	assert.Contains(t, out, "store=memory")

	out, err = run(t, "x: 2\n", "--config", path, "--format", "yaml", "encode", "--type", "Item", "--hex")
	require.NoError(t, err)
	assert.Equal(t, "060000000102000000"+"00\n", out)
}
