// Package testutil provides shared helpers for integration-style tests:
// a thread-safe log buffer and a harness that writes fixture files to a
// temporary directory and runs the full synthesis pipeline over them.
package testutil

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vk/stackform/internal/app"
	"github.com/vk/stackform/internal/registry"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// HarnessResult holds the outcomes of a synthesis test run.
type HarnessResult struct {
	Output string
	Err    error
	App    *app.App
}

// RunSynthesisTest writes the given fixture files below a temporary root,
// then runs the full pipeline over them. Schema manifests go under
// "schemas/", stack declarations under "stack/"; a "defaults.yaml" entry
// becomes the tier defaults file. Everything the app writes, logs
// included, is captured in the result.
func RunSynthesisTest(t *testing.T, files map[string]string, mutators ...func(*app.Config)) *HarnessResult {
	t.Helper()
	return RunSynthesisTestWithModules(t, files, nil, mutators...)
}

// RunSynthesisTestWithModules is RunSynthesisTest with explicit rule
// modules instead of the default catalog.
func RunSynthesisTestWithModules(t *testing.T, files map[string]string, modules []registry.Module, mutators ...func(*app.Config)) *HarnessResult {
	t.Helper()

	tmpDir := t.TempDir()
	schemasDir := filepath.Join(tmpDir, "schemas")
	stackDir := filepath.Join(tmpDir, "stack")
	require.NoError(t, os.Mkdir(schemasDir, 0755))
	require.NoError(t, os.Mkdir(stackDir, 0755))

	for name, content := range files {
		filePath := filepath.Join(tmpDir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
		require.NoError(t, os.WriteFile(filePath, []byte(content), 0644))
	}

	cfg := app.Config{
		SchemasPath: schemasDir,
		StackPath:   stackDir,
		LogLevel:    "debug",
		LogFormat:   "text",
	}
	if _, ok := files["defaults.yaml"]; ok {
		cfg.DefaultsPath = filepath.Join(tmpDir, "defaults.yaml")
	}
	for _, mutate := range mutators {
		mutate(&cfg)
	}

	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	out := &SafeBuffer{}
	testApp, err := app.NewApp(out, appConfig, modules...)
	if err != nil {
		return &HarnessResult{Output: out.String(), Err: err}
	}

	runErr := testApp.Run(context.Background())
	return &HarnessResult{
		Output: out.String(),
		Err:    runErr,
		App:    testApp,
	}
}
