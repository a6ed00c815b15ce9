package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlis/astmsim/astm"
	"github.com/openlis/astmsim/lis1"
	"github.com/openlis/astmsim/simulator"
	"github.com/openlis/astmsim/template"
)

// resetCommandState returns every flag in the command tree to its default so
// runs within one test process do not leak values or changed marks into each
// other.
func resetCommandState(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}

	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetCommandState(sub)
	}
}

// executeCLI runs the root command with args and captures its output.
func executeCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()

	resetCommandState(rootCmd)
	t.Cleanup(func() { resetCommandState(rootCmd) })

	out := &bytes.Buffer{}
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()

	return out.String(), err
}

func TestTemplatesCommand_ListsBuiltins(t *testing.T) {
	out, err := executeCLI(t, "templates")
	require.NoError(t, err)

	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "HEMATOLOGY")
	assert.Contains(t, out, "Sysmex XN-1000")
	assert.Contains(t, out, "CHEMISTRY")
	assert.Contains(t, out, "IMMUNOLOGY")
	assert.Contains(t, out, "MICROBIOLOGY")
	assert.Contains(t, out, "ASTM LIS2-A2")
}

func TestTemplatesCommand_LoadsDirectory(t *testing.T) {
	dir := t.TempDir()
	doc := `{
  "analyzer": {"type": "GENEXPERT", "name": "Cepheid GeneXpert IV"},
  "protocol": {"type": "ASTM", "version": "LIS2-A2"},
  "fields": [
    {"name": "MTB", "code": "MTB", "type": "QUALITATIVE", "possibleValues": ["DETECTED", "NOT DETECTED"]}
  ]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "genexpert.json"), []byte(doc), 0o644))

	out, err := executeCLI(t, "templates", "--templates", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "GENEXPERT")
	assert.Contains(t, out, "Cepheid GeneXpert IV")
	assert.Contains(t, out, "HEMATOLOGY")
}

func TestGenerateCommand_ASTM(t *testing.T) {
	out, err := executeCLI(t, "generate", "--seed", "7")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 9)
	assert.True(t, strings.HasPrefix(lines[0], `H|\^&|||Sysmex^XN-1000^V1.0`), "header: %q", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "P|1|"), "patient: %q", lines[1])
	assert.True(t, strings.HasPrefix(lines[2], "O|1|"), "order: %q", lines[2])
	assert.Contains(t, lines[3], "WBC^White Blood Cell Count")
	assert.Equal(t, "L|1|N", lines[8])
}

func TestGenerateCommand_HL7(t *testing.T) {
	out, err := executeCLI(t, "generate", "--format", "hl7", "-t", "chemistry")
	require.NoError(t, err)

	require.NotContains(t, out, "\r")
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	assert.True(t, strings.HasPrefix(lines[0], `MSH|^~\&|BECKMAN|CHEMISTRY|OpenELIS|LAB|`), "msh: %q", lines[0])
	assert.Contains(t, lines[0], "ORU^R01")

	var obx int
	for _, line := range lines {
		if strings.HasPrefix(line, "OBX|") {
			obx++
		}
	}
	assert.Equal(t, 6, obx)
}

func TestGenerateCommand_File(t *testing.T) {
	dir := t.TempDir()

	out, err := executeCLI(t, "generate", "--format", "file", "--output", dir)
	require.NoError(t, err)

	path := strings.TrimSpace(out)
	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "HEMATOLOGY_"), "file name: %q", path)
	assert.True(t, strings.HasSuffix(path, ".csv"), "file name: %q", path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "Sample Name,Target,Result,Timestamp\n"))
}

func TestGenerateCommand_UnknownFormat(t *testing.T) {
	_, err := executeCLI(t, "generate", "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown format")
}

func TestAnalyzerTypePrecedence(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("analyzer_type: CHEMISTRY\n"), 0o644))

	// Config file over the built-in default.
	out, err := executeCLI(t, "generate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Beckman^AU5800^V2.1")

	// Environment over the config file.
	t.Setenv("ANALYZER_TYPE", "IMMUNOLOGY")
	out, err = executeCLI(t, "generate", "--config", cfgPath)
	require.NoError(t, err)
	assert.Contains(t, out, "Roche^Cobas^V1.5")

	// Flag over the environment.
	out, err = executeCLI(t, "generate", "--config", cfgPath, "-t", "MICROBIOLOGY")
	require.NoError(t, err)
	assert.Contains(t, out, "BD^Phoenix^V2.0")
}

func TestConfigFile_MissingNamedFile(t *testing.T) {
	_, err := executeCLI(t, "templates", "--config", filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestConfigFile_InvalidEnvNumber(t *testing.T) {
	t.Setenv("ASTM_PORT", "not-a-port")

	_, err := executeCLI(t, "templates")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASTM_PORT")
}

func TestServeCommand_RejectsSerialWithAPIPort(t *testing.T) {
	_, err := executeCLI(t, "serve", "--serial", "/dev/ttyUSB0", "--api-port", "8080")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "control API")
}

func TestPushCommand_LinkDelivery(t *testing.T) {
	received := make(chan *astm.Message, 4)
	srv, err := simulator.NewServer(template.Builtins().Get(template.TypeHematology),
		simulator.WithListenAddr("127.0.0.1:0"),
		simulator.WithSessionOptions(lis1.WithResponseDelay(0)),
		simulator.WithMessageHandler(func(msg *astm.Message) { received <- msg }),
	)
	require.NoError(t, err)
	require.NoError(t, srv.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	out, err := executeCLI(t,
		"push", "--target", srv.Addr(), "--count", "2", "--interval", "0s", "--response-delay", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "pushed 2 message(s): 2 delivered, 0 failed")

	for i := 0; i < 2; i++ {
		select {
		case msg := <-received:
			assert.Equal(t, 9, msg.Len())
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for pushed message")
		}
	}
}

func TestPushCommand_HTTPDelivery(t *testing.T) {
	var path atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path.Store(r.URL.Path)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	out, err := executeCLI(t,
		"push", "--protocol", "http", "--target", server.URL, "--interval", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "pushed 1 message(s): 1 delivered, 0 failed")
	assert.Equal(t, "/api/OpenELIS-Global/analyzer/astm", path.Load())
}

func TestPushCommand_FailureSetsExitError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(server.Close)

	out, err := executeCLI(t,
		"push", "--protocol", "http", "--target", server.URL, "--interval", "0s")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 1 pushes failed")
	assert.Contains(t, out, "0 delivered, 1 failed")
	assert.Contains(t, out, "message 1:")
}

func TestPushCommand_UnknownProtocol(t *testing.T) {
	_, err := executeCLI(t, "push", "--target", "localhost:5000", "--protocol", "smtp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown protocol")
}
