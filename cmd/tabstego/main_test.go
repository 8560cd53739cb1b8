package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/urfave/cli.v1"
)

// writeCSV creates a CSV file with a header and n distinct rows.
func writeCSV(t *testing.T, n int) string {
	t.Helper()
	rng := rand.New(rand.NewPCG(uint64(n), 42))
	var b strings.Builder
	b.WriteString("id,name,score\n")
	for i := range n {
		fmt.Fprintf(&b, "%d,user%d,%d\n", i, rng.IntN(1_000_000), rng.IntN(100))
	}
	path := filepath.Join(t.TempDir(), "in.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

type result struct {
	stdout string
	stderr string
	code   int
	err    error
}

// run executes the CLI in-process. Exit codes raised through cli.ExitError
// are captured instead of terminating the test binary.
func run(t *testing.T, args ...string) result {
	t.Helper()
	var stdout, stderr bytes.Buffer
	res := result{}
	oldExiter, oldErrWriter := cli.OsExiter, cli.ErrWriter
	cli.OsExiter = func(code int) { res.code = code }
	cli.ErrWriter = &stderr
	defer func() {
		cli.OsExiter, cli.ErrWriter = oldExiter, oldErrWriter
	}()

	res.err = newApp(&stdout, &stderr).Run(append([]string{"tabstego"}, args...))
	if res.err != nil && res.code == 0 {
		res.code = 1
	}
	res.stdout, res.stderr = stdout.String(), stderr.String()
	return res
}

func TestEncodeDecode(t *testing.T) {
	in := writeCSV(t, 3000)
	out := filepath.Join(t.TempDir(), "out.csv")

	r := run(t, "encode", "--message", "hello sacha", "--seed", "7", in, out)
	require.NoError(t, r.err)
	require.Contains(t, r.stdout, "Packets")

	r = run(t, "decode", out)
	require.NoError(t, r.err)
	require.Equal(t, "hello sacha\n", r.stdout)

	// Header line is kept and the row multiset is unchanged.
	orig, err := os.ReadFile(in)
	require.NoError(t, err)
	enc, err := os.ReadFile(out)
	require.NoError(t, err)
	origLines := strings.Split(strings.TrimSpace(string(orig)), "\n")
	encLines := strings.Split(strings.TrimSpace(string(enc)), "\n")
	require.Equal(t, origLines[0], encLines[0])
	require.ElementsMatch(t, origLines, encLines)
	require.NotEqual(t, origLines, encLines)
}

func TestDecodeToFile(t *testing.T) {
	in := writeCSV(t, 3000)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")
	payload := filepath.Join(dir, "payload.bin")
	require.NoError(t, os.WriteFile(payload, []byte{0, 1, 2, 0xFF, 0xFE}, 0o644))

	r := run(t, "encode", "--payload-file", payload, "--password", "pw", in, out)
	require.NoError(t, r.err)

	got := filepath.Join(dir, "got.bin")
	r = run(t, "decode", "--password", "pw", "--out", got, out)
	require.NoError(t, r.err)
	b, err := os.ReadFile(got)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 1, 2, 0xFF, 0xFE}, b)
}

func TestDecodeNoPayload(t *testing.T) {
	in := writeCSV(t, 600)
	r := run(t, "decode", in)
	require.Error(t, r.err)
	require.Equal(t, exitNoPayload, r.code)
	require.Contains(t, r.stderr, "no payload found")
}

func TestDecodeJSON(t *testing.T) {
	in := writeCSV(t, 3000)
	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, run(t, "encode", "--message", "json", in, out).err)

	r := run(t, "--json", "decode", out)
	require.NoError(t, r.err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &rec))
	require.Equal(t, true, rec["success"])
	require.Equal(t, "json", rec["payload"])
	require.Greater(t, rec["valid_packets"], float64(0))
}

func TestEncodeCapacityExit(t *testing.T) {
	in := writeCSV(t, 100)
	out := filepath.Join(t.TempDir(), "out.csv")
	r := run(t, "encode", "--message", "too much for a hundred rows", in, out)
	require.Error(t, r.err)
	require.Equal(t, exitCapacity, r.code)
	require.NoFileExists(t, out)
}

func TestEncodeNeedsPayload(t *testing.T) {
	in := writeCSV(t, 100)
	out := filepath.Join(t.TempDir(), "out.csv")
	r := run(t, "encode", in, out)
	require.ErrorContains(t, r.err, "--message")

	r = run(t, "encode", "--message", "a", "--payload-file", in, in, out)
	require.ErrorContains(t, r.err, "mutually exclusive")
}

func TestEncodeUsage(t *testing.T) {
	r := run(t, "encode", "--message", "a", "only-one.csv")
	require.Error(t, r.err)
	require.Equal(t, 1, r.code)
	require.Contains(t, r.stderr, "usage:")
}

func TestConfigFile(t *testing.T) {
	in := writeCSV(t, 3000)
	dir := t.TempDir()
	out := filepath.Join(dir, "out.csv")
	conf := filepath.Join(dir, "tabstego.toml")
	require.NoError(t, os.WriteFile(conf, []byte("BitPerRow = 4\nPassword = \"from-file\"\n"), 0o644))

	require.NoError(t, run(t, "--config", conf, "encode", "--message", "configured", in, out).err)

	r := run(t, "--config", conf, "decode", out)
	require.NoError(t, r.err)
	require.Equal(t, "configured\n", r.stdout)

	// A flag overrides the file.
	r = run(t, "--config", conf, "decode", "--password", "other", out)
	require.Equal(t, exitNoPayload, r.code)
}

func TestConfigFileUnknownField(t *testing.T) {
	in := writeCSV(t, 100)
	conf := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(conf, []byte("BitsPerRow = 4\n"), 0o644))

	r := run(t, "--config", conf, "capacity", in)
	require.ErrorContains(t, r.err, "not defined")
}

func TestInvalidFlags(t *testing.T) {
	in := writeCSV(t, 100)
	tests := [][]string{
		{"capacity", "--bit-per-row", "3", in},
		{"capacity", "--hash", "crc32", in},
		{"capacity", "--fountain", "tornado", in},
		{"capacity", "--seed", "4294967296", in},
		{"capacity", "--block-size", "250", in},
	}
	for _, args := range tests {
		require.Error(t, run(t, args...).err, "args %v", args)
	}
}

func TestCapacityReport(t *testing.T) {
	in := writeCSV(t, 2000)

	r := run(t, "capacity", in)
	require.NoError(t, r.err)
	require.Contains(t, r.stdout, "METRIC")
	require.Contains(t, r.stdout, "Rows per packet")
	require.Contains(t, r.stdout, "184")

	r = run(t, "--json", "capacity", "--bit-per-row", "1", in)
	require.NoError(t, r.err)
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &rep))
	require.Equal(t, float64(2000), rep["rows"])
	require.Equal(t, float64(368), rep["rows_per_packet"])
	require.Len(t, rep["buckets"], 2)
}

func TestCapacityNoHeader(t *testing.T) {
	in := writeCSV(t, 500)
	r := run(t, "--json", "capacity", "--no-header", in)
	require.NoError(t, r.err)
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &rep))
	require.Equal(t, float64(501), rep["rows"])
}

func TestTolerance(t *testing.T) {
	in := writeCSV(t, 2000)
	out := filepath.Join(t.TempDir(), "out.csv")
	require.NoError(t, run(t, "encode", "--message", "hi", "--parity-size", "0", in, out).err)

	r := run(t, "--json", "tolerance", "--message", "hi", "--parity-size", "0",
		"--trials", "2", "--step", "10", out)
	require.NoError(t, r.err)
	var rep map[string]any
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &rep))
	require.Equal(t, float64(2), rep["trials"])
	require.Len(t, rep["tolerated"], 2)
	require.GreaterOrEqual(t, rep["median"], float64(10))
}
