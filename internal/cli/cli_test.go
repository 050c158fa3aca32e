package cli

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spec-kit/service-ticket/internal/service"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	body := fmt.Sprintf(`store:
  driver: sqlite
  sqlite_path: %s
redis:
  addr: ""
logger:
  level: error
csv:
  dir: %s
`, filepath.Join(dir, "tickets.db"), filepath.Join(dir, "exports"))
	path := filepath.Join(dir, "ticketctl.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestVersion(t *testing.T) {
	SetVersion("1.2.3")
	t.Cleanup(func() { SetVersion("dev") })

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if out != "ticketctl 1.2.3\n" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestTransitions(t *testing.T) {
	out, err := execute(t, "transitions")
	if err != nil {
		t.Fatalf("transitions: %v", err)
	}
	for _, want := range []string{
		"initial: DRAFT",
		"DRAFT     -> REVIEW, PENDING, OPEN",
		"OPEN      -> PENDING, CLOSED",
		"CLOSED    -> OPEN",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestSQLiteCommands(t *testing.T) {
	cfgPath := writeConfig(t)
	dir := filepath.Dir(cfgPath)

	out, err := execute(t, "--config", cfgPath, "migrate")
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if !strings.Contains(out, "schema up to date (sqlite)") {
		t.Fatalf("unexpected migrate output %q", out)
	}

	out, err = execute(t, "--config", cfgPath, "user", "create",
		"--username", "mgr", "--email", "mgr@example.com", "--password", "s3cret-pass", "--role", "manager")
	if err != nil {
		t.Fatalf("user create: %v", err)
	}
	if !strings.Contains(out, "created MANAGER mgr") {
		t.Fatalf("unexpected user output %q", out)
	}

	exportPath := filepath.Join(dir, "pending.csv")
	out, err = execute(t, "--config", cfgPath, "export", "--status", "pending", "--out", exportPath)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(out, "exported 0 tickets") {
		t.Fatalf("unexpected export output %q", out)
	}
	data, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if header := strings.SplitN(string(data), "\n", 2)[0]; header != strings.Join(service.ExportColumns, ",") {
		t.Fatalf("unexpected header %q", header)
	}

	importPath := filepath.Join(dir, "updates.csv")
	if err := os.WriteFile(importPath, []byte("Ticket Number,Status\nTKT-2026-999999,OPEN\n"), 0o600); err != nil {
		t.Fatalf("write import: %v", err)
	}
	out, err = execute(t, "--config", cfgPath, "import", importPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !strings.Contains(out, "processed 1 rows, updated 0") || !strings.Contains(out, "row 1: Ticket not found: TKT-2026-999999") {
		t.Fatalf("unexpected import output %q", out)
	}

	out, err = execute(t, "--config", cfgPath, "automate")
	if err != nil {
		t.Fatalf("automate: %v", err)
	}
	if !strings.Contains(out, "processed 0 tickets, updated 0") {
		t.Fatalf("unexpected automate output %q", out)
	}
}

func TestExportRejectsUnknownStatus(t *testing.T) {
	cfgPath := writeConfig(t)
	_, err := execute(t, "--config", cfgPath, "export", "--status", "archived", "--out", "")
	if err == nil || !strings.Contains(err.Error(), "invalid status") {
		t.Fatalf("expected invalid status error, got %v", err)
	}
}
