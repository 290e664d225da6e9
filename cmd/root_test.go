package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markexpr/internal/config"
	"markexpr/internal/models"
)

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, sub := range cmd.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv(config.EnvConfigPath, "")
	t.Setenv("MARKEXPR_TITLE", "")

	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func writeSource(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestSplitMethod(t *testing.T) {
	obj, name, err := splitMethod("window.analytics.fire")
	require.NoError(t, err)
	assert.Equal(t, "window.analytics", obj)
	assert.Equal(t, "fire", name)

	for _, bad := range []string{"fire", ".fire", "window."} {
		_, _, err := splitMethod(bad)
		assert.ErrorIs(t, err, config.ErrInvalidConfig, bad)
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "markexpr dev")
}

func TestAnnotateCommand(t *testing.T) {
	path := writeSource(t, t.TempDir(), "app.js", "track('a');\nthis.emit(1);\n")

	out, err := execute(t, "", "annotate", path, "-f", "track", "-m", "this.emit", "--title", "Marks")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "/*---BEGIN Marks---\n"))
	assert.Contains(t, out, `"type":"method","object":"this","method":"emit"`)
	assert.True(t, strings.HasSuffix(out, "track('a');\nthis.emit(1);\n"))
}

func TestAnnotateStdin(t *testing.T) {
	out, err := execute(t, "import(/* lazy: true */ './m');\n", "annotate", "-", "--filename", "in.ts", "--dynamic-import", "lazy", "--format", "tuple")
	require.NoError(t, err)
	assert.Contains(t, out, `[["import",[{"lazy":true}],["./m"],"in.ts:1:25"]]`)

	_, err = execute(t, "x", "annotate", "-")
	assert.Error(t, err)
}

func TestAnnotateWriteThenInspect(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "app.js", "track(1.5, [true]);\n")

	_, err := execute(t, "", "annotate", "--write", path, "-f", "track", "--title", "T")
	require.NoError(t, err)

	out, err := execute(t, "", "inspect", path, "--title", "T")
	require.NoError(t, err)

	var records []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "track", records[0]["name"])
	assert.Equal(t, []interface{}{1.5, []interface{}{true}}, records[0]["args"])
}

func TestScanCommandJSON(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "a.js", "track(1);\n")
	writeSource(t, dir, "b.ts", "noop();\n")

	out, err := execute(t, "", "scan", dir, "--json", "-f", "track")
	require.NoError(t, err)

	var report models.RunReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, models.Summary{Files: 2, Annotated: 1, Records: 1}, report.Summary)
}

func TestScanCommandReportsFailures(t *testing.T) {
	dir := t.TempDir()
	writeSource(t, dir, "bad.js", "track(\n")

	out, err := execute(t, "", "scan", dir, "-f", "track")
	assert.Error(t, err)
	assert.Contains(t, out, "✗ ")
	assert.Contains(t, out, "1 failed")
}

func TestConfigFileAndOverrides(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeSource(t, dir, "markexpr.yaml", "title: FromFile\nfunctions: [track]\n")
	path := writeSource(t, dir, "app.js", "track(1); send(2);\n")

	out, err := execute(t, "", "annotate", path, "--config", cfgPath, "-f", "send")
	require.NoError(t, err)
	assert.Contains(t, out, "---BEGIN FromFile---")
	assert.Contains(t, out, `"name":"track"`)
	assert.Contains(t, out, `"name":"send"`)

	_, err = execute(t, "", "annotate", path, "--format", "xml")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}
