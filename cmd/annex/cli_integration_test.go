package main_test

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBinary compiles the annex binary into t.TempDir().
func buildBinary(t *testing.T) string {
	t.Helper()
	binName := "annex"
	if runtime.GOOS == "windows" {
		binName += ".exe"
	}
	bin := filepath.Join(t.TempDir(), binName)
	cmd := exec.Command("go", "build", "-o", bin, ".")
	cmd.Dir = filepath.Join(projectRoot(t), "cmd", "annex")
	cmd.Env = append(os.Environ(), "CGO_ENABLED=1")
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "build failed: %s", string(out))
	return bin
}

// projectRoot walks up from the test file's directory to go.mod.
func projectRoot(t *testing.T) string {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	require.True(t, ok, "runtime.Caller failed")
	dir := filepath.Dir(filename)
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		require.NotEqual(t, parent, dir, "could not find project root")
		dir = parent
	}
}

const (
	ordersJava = `package com.acme;

import org.eclipse.microprofile.faulttolerance.Retry;

@Retry(maxRetries = 3)
public class Orders {
    private String region;

    public String place(int qty) { return region; }
}
`
	auditJava = `package com.acme;

@Marker
public class Audit extends Orders {
}
`
	annexYAML = `scripts_dir: scripts
sources: [src]
extensions:
  - script: audit.risor
    phase: enhancement
    target: classes
    mode: each
    annotated_with: [com.acme.Marker]
`
	auditScript = `for _, e := range elements {
    add_annotation(e["name"], "com.acme.Audited", {"level": 2})
    info("audited", e["name"])
}
`
)

// createFixture lays out a repository with two Java classes, a config file
// and one script extension.
func createFixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))
	pkg := filepath.Join(dir, "src", "com", "acme")
	require.NoError(t, os.MkdirAll(pkg, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "Orders.java"), []byte(ordersJava), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(pkg, "Audit.java"), []byte(auditJava), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scripts", "audit.risor"), []byte(auditScript), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "annex.yaml"), []byte(annexYAML), 0o644))
	return dir
}

type cliResult struct {
	Command string          `json:"command"`
	Results json.RawMessage `json:"results"`
	Error   string          `json:"error"`
}

func runCLI(t *testing.T, bin, dir string, args ...string) (cliResult, error) {
	t.Helper()
	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	var res cliResult
	if len(out) > 0 {
		require.NoError(t, json.Unmarshal(out, &res), "output: %s", string(out))
	}
	return res, err
}

func TestCLI_IndexRunShowQuery(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	bin := buildBinary(t)
	dir := createFixture(t)

	_, err := runCLI(t, bin, dir, "index")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, ".annex", "index.db"))

	res, err := runCLI(t, bin, dir, "run", "--export", "out/result.json")
	require.NoError(t, err, res.Error)
	var run struct {
		Failed      bool           `json:"failed"`
		Invocations map[string]int `json:"invocations"`
		Modified    int            `json:"modified_declarations"`
	}
	require.NoError(t, json.Unmarshal(res.Results, &run))
	assert.False(t, run.Failed)
	assert.Equal(t, 2, run.Modified)
	assert.FileExists(t, filepath.Join(dir, "out", "result.json"))

	res, err = runCLI(t, bin, dir, "show", "com.acme.Orders")
	require.NoError(t, err)
	var anns []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(res.Results, &anns))
	require.Len(t, anns, 2)
	assert.Equal(t, "org.eclipse.microprofile.faulttolerance.Retry", anns[0].Name)
	assert.Equal(t, "io.smallrye.faulttolerance.FaultToleranceBinding", anns[1].Name)

	res, err = runCLI(t, bin, dir, "query", "classes", "--subtype-of", "com.acme.Orders")
	require.NoError(t, err)
	var classes []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(res.Results, &classes))
	require.Len(t, classes, 1)
	assert.Equal(t, "com.acme.Audit", classes[0].Name)

	res, err = runCLI(t, bin, dir, "query", "methods", "--exact", "com.acme.Orders", "--return-type", "java.lang.String")
	require.NoError(t, err)
	var methods []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal(res.Results, &methods))
	require.Len(t, methods, 1)
	assert.Equal(t, "com.acme.Orders#place(int)", methods[0].Name)
}

func TestCLI_ShowWithoutDatabase(t *testing.T) {
	if testing.Short() {
		t.Skip("builds the binary")
	}
	bin := buildBinary(t)
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	res, err := runCLI(t, bin, dir, "show", "com.acme.Orders")
	require.Error(t, err)
	assert.Contains(t, res.Error, "run 'annex index' first")
}
