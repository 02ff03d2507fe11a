package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/devapps/pkg/codec"
	"github.com/ssargent/devapps/pkg/config"
	"github.com/ssargent/devapps/pkg/stream"
)

const sampleJSONL = `{"device": {"type": "idfa", "id": "e7e1a50c0ec2747ca56cd9e1558c0d7c"}, "lat": 67.7835424444, "lon": -22.8044005471, "apps": [42, 43, 44]}
{"device": {"type": "gaid", "id": "e7e1a50c0ec2747ca56cd9e1558c0d7d"}, "apps": []}
`

// run executes the command tree and returns what it printed. Status
// messages and data share the output writer once one is set.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer

	root := NewRootCmd()
	root.SetArgs(args)
	root.SetIn(strings.NewReader(stdin))
	root.SetOut(&stdout)
	root.SetErr(&stderr)

	err := root.Execute()
	return stdout.String(), err
}

// setupConfig writes a config rooted in a temporary directory
func setupConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	configPath := filepath.Join(dir, "devapps.yaml")

	cfg := config.DefaultConfig()
	cfg.DataDir = filepath.Join(dir, "files")
	cfg.StoreDir = filepath.Join(dir, "store")
	cfg.Logging.Level = "error"
	require.NoError(t, config.SaveConfig(cfg, configPath))
	return configPath, cfg
}

func TestInitCommand(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	output, err := run(t, "", "init", "--config", configPath, "--data-dir", filepath.Join(dir, "data"), "--print-key")
	require.NoError(t, err)
	assert.Contains(t, output, "Configuration created at "+configPath)
	assert.Contains(t, output, "API key: ")

	cfg, err := config.LoadConfig(configPath)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "data", "files"), cfg.DataDir)
	assert.Len(t, cfg.Security.APIKey, 64)

	t.Run("existing config is kept", func(t *testing.T) {
		output, err := run(t, "", "init", "--config", configPath)
		require.NoError(t, err)
		assert.Contains(t, output, "already exists")

		again, err := config.LoadConfig(configPath)
		require.NoError(t, err)
		assert.Equal(t, cfg.Security.APIKey, again.Security.APIKey)
	})

	t.Run("force overwrites", func(t *testing.T) {
		_, err := run(t, "", "init", "--config", configPath, "--force")
		require.NoError(t, err)

		again, err := config.LoadConfig(configPath)
		require.NoError(t, err)
		assert.NotEqual(t, cfg.Security.APIKey, again.Security.APIKey)
	})
}

func TestWriteAndReadCommands(t *testing.T) {
	configPath, cfg := setupConfig(t)
	out := filepath.Join(cfg.DataDir, "sample.pb.gz")

	output, err := run(t, sampleJSONL, "write", "--config", configPath, out)
	require.NoError(t, err)
	assert.Contains(t, output, "Wrote ")

	records, err := stream.ReadFile(out)
	require.NoError(t, err)
	require.Len(t, records, 2)

	stdout, err := run(t, "", "read", "--config", configPath, out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, `{"device":{"id":"e7e1a50c0ec2747ca56cd9e1558c0d7c","type":"idfa"},"lat":67.7835424444,"lon":-22.8044005471,"apps":[42,43,44]}`, lines[0])
	assert.Equal(t, `{"device":{"id":"e7e1a50c0ec2747ca56cd9e1558c0d7d","type":"gaid"},"apps":[]}`, lines[1])
}

func TestWriteCommand_FromFile(t *testing.T) {
	configPath, cfg := setupConfig(t)
	in := filepath.Join(t.TempDir(), "in.jsonl")
	require.NoError(t, os.WriteFile(in, []byte(sampleJSONL), 0600))
	out := filepath.Join(cfg.DataDir, "from-file.pb.gz")

	_, err := run(t, "", "write", "--config", configPath, "--level", "9", out, in)
	require.NoError(t, err)

	records, err := stream.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestWriteCommand_InvalidRecord(t *testing.T) {
	configPath, cfg := setupConfig(t)
	out := filepath.Join(cfg.DataDir, "bad.pb.gz")
	input := sampleJSONL + `{"device": {"type": "idfa", "id": "abc"}}` + "\n"

	_, err := run(t, input, "write", "--config", configPath, out)
	require.Error(t, err)
	assert.ErrorIs(t, err, codec.ErrValidation)
	assert.Contains(t, err.Error(), "line 3: missing apps")

	// Records before the failure are kept
	records, err := stream.ReadFile(out)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestReadCommand_Truncated(t *testing.T) {
	configPath, cfg := setupConfig(t)
	out := filepath.Join(cfg.DataDir, "t.pb.gz")
	_, err := run(t, sampleJSONL, "write", "--config", configPath, out)
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(out, data[:len(data)/2], 0600))

	_, err = run(t, "", "read", "--config", configPath, out)
	assert.ErrorIs(t, err, codec.ErrTruncatedFrame)
}

func TestConvertLoadGetCommands(t *testing.T) {
	configPath, cfg := setupConfig(t)
	inDir := t.TempDir()

	f, err := os.Create(filepath.Join(inDir, "apps.tsv.gz"))
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("idfa\t1rfw452y52g2gq4g\t55.55\t42.42\t1423,43,567,3,7,23\n" +
		"gaid\t7rfw452y52g2gq4g\t55.55\t42.42\t7423,424\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	output, err := run(t, "", "convert", "--config", configPath, "--pattern", filepath.Join(inDir, "*.tsv.gz"), "--dot-rename")
	require.NoError(t, err)
	assert.Contains(t, output, "OK ")
	assert.FileExists(t, filepath.Join(inDir, ".apps.tsv.gz"))

	converted := filepath.Join(cfg.DataDir, "apps.pb.gz")
	output, err = run(t, "", "load", "--config", configPath, converted)
	require.NoError(t, err)
	assert.Contains(t, output, "Loaded 2 records")

	stdout, err := run(t, "", "get", "--config", configPath, "gaid", "7rfw452y52g2gq4g")
	require.NoError(t, err)
	assert.JSONEq(t, `{"device":{"id":"7rfw452y52g2gq4g","type":"gaid"},"lat":55.55,"lon":42.42,"apps":[7423,424]}`, stdout)

	_, err = run(t, "", "get", "--config", configPath, "gaid", "missing")
	assert.Error(t, err)
}

func TestConvertCommand_NoMatches(t *testing.T) {
	configPath, _ := setupConfig(t)

	output, err := run(t, "", "convert", "--config", configPath, "--pattern", filepath.Join(t.TempDir(), "*.tsv.gz"))
	require.NoError(t, err)
	assert.Contains(t, output, "No files match")
}

func TestConvertCommand_HighErrorRate(t *testing.T) {
	configPath, _ := setupConfig(t)
	inDir := t.TempDir()

	f, err := os.Create(filepath.Join(inDir, "bad.tsv.gz"))
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte("garbage\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	output, err := run(t, "", "convert", "--config", configPath, "--pattern", filepath.Join(inDir, "*.tsv.gz"))
	assert.ErrorIs(t, err, errConversionFailed)
	assert.Contains(t, output, "FAIL ")
}

func TestRootCommand_BadConfig(t *testing.T) {
	_, err := run(t, "", "read", "--config", "/non/existent/config.yaml", "x.pb.gz")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config file does not exist")
}

func TestRootCommand_BadLogLevel(t *testing.T) {
	configPath, _ := setupConfig(t)

	_, err := run(t, "", "read", "--config", configPath, "--log-level", "loud", "x.pb.gz")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize logger")
}
