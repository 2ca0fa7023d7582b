//go:build integration

package scenarios

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/florinutz/rowsync/testutil"
)

func TestScenario_CLIValidation(t *testing.T) {
	t.Run("version", func(t *testing.T) {
		output, err := runRowsync(t, "version")
		if err != nil {
			t.Fatalf("version: %v\n%s", err, output)
		}
		if !strings.HasPrefix(output, "rowsync ") {
			t.Errorf("unexpected output: %s", output)
		}
	})

	t.Run("init prints a config", func(t *testing.T) {
		output, err := runRowsync(t, "init")
		if err != nil {
			t.Fatalf("init: %v\n%s", err, output)
		}
		for _, want := range []string{"source:", "destination:", "poll_interval: 10s", "identity_column: raw_id"} {
			if !strings.Contains(output, want) {
				t.Errorf("init output missing %q", want)
			}
		}
	})

	t.Run("missing source file", func(t *testing.T) {
		cfg := writeConfig(t, filepath.Join(t.TempDir(), "gone.mdb"), filepath.Join(t.TempDir(), "dest.db"))
		output, err := runRowsync(t, "run", "--config", cfg)
		if err == nil {
			t.Fatal("expected error for missing source file")
		}
		if !strings.Contains(output, "does not exist") {
			t.Errorf("unexpected output: %s", output)
		}
	})

	t.Run("unknown destination driver", func(t *testing.T) {
		src := testutil.NewSwipeSource(t)
		cfg := writeConfig(t, src.Path, filepath.Join(t.TempDir(), "dest.db"))
		output, err := runRowsyncEnv(t, []string{"ROWSYNC_DESTINATION_DRIVER=oracle"}, "validate", "--config", cfg)
		if err == nil {
			t.Fatal("expected error for unknown destination driver")
		}
		if !strings.Contains(output, "unknown destination driver") || !strings.Contains(output, "FAIL") {
			t.Errorf("unexpected output: %s", output)
		}
	})

	t.Run("validate reports every component", func(t *testing.T) {
		src := testutil.NewSwipeSource(t)
		cfg := writeConfig(t, src.Path, filepath.Join(t.TempDir(), "dest.db"))
		output, err := runRowsync(t, "validate", "--config", cfg)
		if err != nil {
			t.Fatalf("validate: %v\n%s", err, output)
		}
		for _, want := range []string{"config", "source/sqlite", "destination/sqlite", "cursor"} {
			if !strings.Contains(output, want) {
				t.Errorf("validate output missing %q:\n%s", want, output)
			}
		}
	})

	t.Run("init --sql", func(t *testing.T) {
		src := testutil.NewSwipeSource(t)
		cfg := writeConfig(t, src.Path, filepath.Join(t.TempDir(), "dest.db"))
		output, err := runRowsync(t, "init", "--sql", "--config", cfg)
		if err != nil {
			t.Fatalf("init --sql: %v\n%s", err, output)
		}
		if !strings.Contains(output, "CREATE TABLE") || !strings.Contains(output, "read_date") {
			t.Errorf("unexpected output: %s", output)
		}
	})
}

func runRowsyncEnv(t *testing.T, env []string, args ...string) (string, error) {
	t.Helper()
	cmd := exec.Command(rowsyncBinary(t), args...)
	cmd.Env = append(os.Environ(), env...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// writeConfig writes a rowsync.yaml copying the swipe table at sourcePath
// into the SQLite destination destDSN.
func writeConfig(t *testing.T, sourcePath, destDSN string) string {
	t.Helper()
	var mapping strings.Builder
	for _, f := range testutil.SwipeFields {
		mapping.WriteString("  " + f + ": " + testutil.SwipeMapping[f] + "\n")
	}
	body := `source:
  driver: sqlite
  file_path: ` + sourcePath + `
  fields: [` + strings.Join(testutil.SwipeFields, ", ") + `]
destination:
  driver: sqlite
  url: "` + destDSN + `"
mapping:
` + mapping.String() + `poll_interval: 1
recovery_backoff: 1s
`
	path := filepath.Join(t.TempDir(), "rowsync.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}
