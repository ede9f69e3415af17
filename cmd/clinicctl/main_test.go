package main

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"recordcore/internal/config"
)

var createdID = regexp.MustCompile(`\(([^)]+)\)\s*$`)

type session struct {
	t    *testing.T
	base []string
}

func newSession(t *testing.T) *session {
	t.Helper()
	t.Setenv(config.EnvBlobDriver, "memory")
	t.Setenv(config.EnvStockThreshold, "5")
	dir := t.TempDir()
	return &session{t: t, base: []string{"--storage", "sqlite", "--sqlite-path", filepath.Join(dir, "clinic.db")}}
}

func (s *session) run(args ...string) (string, string, int) {
	s.t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append(append([]string{}, s.base...), args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), code
}

func (s *session) ok(args ...string) (string, string) {
	s.t.Helper()
	out, errOut, code := s.run(args...)
	if code != 0 {
		s.t.Fatalf("clinicctl %v exited %d: %s", args, code, errOut)
	}
	return out, errOut
}

func (s *session) id(args ...string) string {
	s.t.Helper()
	out, _ := s.ok(args...)
	m := createdID.FindStringSubmatch(out)
	if m == nil {
		s.t.Fatalf("no id in output %q", out)
	}
	return m[1]
}

func TestVisitWorkflowAcrossInvocations(t *testing.T) {
	s := newSession(t)

	owner := s.id("owner", "add", "--name", "Ana", "--phone", "555-0101")
	rex := s.id("animal", "add", "--name", "Rex", "--species", "dog", "--sex", "M", "--owner", owner)
	vet := s.id("vet", "add", "--name", "Dr. Vera", "--password", "s3cret")
	s.ok("product", "add", "--name", "Vaccine-A", "--type", "medicine", "--quantity", "10", "--price", "25.00")
	_, warn := s.ok("product", "add", "--name", "Antiseptic", "--quantity", "2", "--price", "10,50")
	if !strings.Contains(warn, "warning:") || !strings.Contains(warn, "Antiseptic") {
		t.Fatalf("expected low stock warning, got %q", warn)
	}

	appt := s.id("appointment", "schedule", "--animal", rex, "--vet", vet, "--at", "2025-03-10 09:00", "--type", "vaccination")
	if out, _ := s.ok("appointment", "confirm", "--id", appt); !strings.Contains(out, "appointment confirmed") {
		t.Fatalf("unexpected confirm output %q", out)
	}

	out, warn := s.ok("visit", "close", "--appointment", appt, "--fee", "80",
		"--item", "Vaccine-A:2:25.00", "--item", "Bandage:1:3", "--notes", "booster")
	if !strings.Contains(out, "visit closed by Dr. Vera") {
		t.Fatalf("unexpected close output %q", out)
	}
	if !strings.Contains(warn, "Bandage") {
		t.Fatalf("expected missing product warning, got %q", warn)
	}

	if _, errOut, code := s.run("visit", "close", "--appointment", appt, "--fee", "80"); code != 1 || !strings.Contains(errOut, "Error:") {
		t.Fatalf("expected second close to fail, got %d: %s", code, errOut)
	}

	out, _ = s.ok("appointment", "list", "--status", "performed")
	if !strings.Contains(out, "Rex") || !strings.Contains(out, "Ana") || !strings.Contains(out, "Dr. Vera") {
		t.Fatalf("unexpected appointment list %q", out)
	}

	out, _ = s.ok("history", "--performer", vet)
	if !strings.Contains(out, "Rex") || !strings.Contains(out, "booster") {
		t.Fatalf("unexpected history %q", out)
	}
	out, _ = s.ok("history", "--to", "2025-03-09")
	if strings.Contains(out, "Rex") {
		t.Fatalf("history outside the window should be empty: %q", out)
	}

	out, _ = s.ok("product", "movements")
	if !strings.Contains(out, "Vaccine-A") || !strings.Contains(out, "out") {
		t.Fatalf("unexpected movements %q", out)
	}
	out, _ = s.ok("product", "low", "--threshold", "2")
	if !strings.Contains(out, "Antiseptic") || strings.Contains(out, "Vaccine-A") {
		t.Fatalf("unexpected low stock list %q", out)
	}

	pdf := filepath.Join(t.TempDir(), "rex.pdf")
	out, _ = s.ok("record", "render", "--animal", rex, "--ordinal", "1", "--out", pdf)
	if !strings.Contains(out, "archived as exports/documents/") {
		t.Fatalf("unexpected render output %q", out)
	}
	raw, err := os.ReadFile(pdf)
	if err != nil || !bytes.HasPrefix(raw, []byte("%PDF-")) {
		t.Fatalf("expected a pdf at %s: %v", pdf, err)
	}
	if _, errOut, code := s.run("record", "render", "--animal", rex, "--ordinal", "2", "--out", pdf); code != 1 || !strings.Contains(errOut, "not found") {
		t.Fatalf("expected missing ordinal to fail, got %d: %s", code, errOut)
	}
}

func TestStockAdjustmentsAndExport(t *testing.T) {
	s := newSession(t)
	id := s.id("product", "add", "--name", "Collar", "--type", "accessory", "--quantity", "8", "--price", "12")

	if out, _ := s.ok("product", "receive", "--id", id, "--quantity", "4"); !strings.Contains(out, "in 4 Collar: 8 -> 12") {
		t.Fatalf("unexpected receive output %q", out)
	}
	out, warn := s.ok("product", "adjust", "--id", id, "--counted", "3")
	if !strings.Contains(out, "out 9 Collar: 12 -> 3") || !strings.Contains(warn, "warning:") {
		t.Fatalf("unexpected adjust output %q / %q", out, warn)
	}
	if out, _ := s.ok("product", "adjust", "--id", id, "--counted", "3"); !strings.Contains(out, "quantity unchanged") {
		t.Fatalf("unexpected no-op adjust output %q", out)
	}

	target := filepath.Join(t.TempDir(), "stock.xlsx")
	out, _ = s.ok("product", "list", "--xlsx", target)
	if !strings.Contains(out, "archived as exports/spreadsheets/") {
		t.Fatalf("unexpected export output %q", out)
	}
	if info, err := os.Stat(target); err != nil || info.Size() == 0 {
		t.Fatalf("expected spreadsheet at %s: %v", target, err)
	}
}

func TestLoginWithHashedPasswords(t *testing.T) {
	s := newSession(t)
	t.Setenv(config.EnvHashPasswords, "true")
	s.ok("vet", "add", "--name", "Dr. Otto", "--password", "pa55")

	if out, _ := s.ok("login", "--name", " dr. otto ", "--password", "pa55"); !strings.Contains(out, "authenticated as Dr. Otto") {
		t.Fatalf("unexpected login output %q", out)
	}
	_, errOut, code := s.run("login", "--name", "Dr. Otto", "--password", "wrong")
	if code != 1 || !strings.Contains(errOut, "authentication failed") {
		t.Fatalf("expected authentication failure, got %d: %s", code, errOut)
	}
	if out, _ := s.ok("vet", "list"); strings.Contains(out, "pa55") || strings.Contains(out, "$2") {
		t.Fatalf("vet list leaked a password: %q", out)
	}
}

func TestMainExitsWithCommandStatus(t *testing.T) {
	t.Setenv(config.EnvBlobDriver, "memory")
	t.Setenv(config.EnvStorageDriver, "memory")

	var codes []int
	old := exitFunc
	exitFunc = func(code int) { codes = append(codes, code) }
	defer func() { exitFunc = old }()

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"clinicctl", "vet", "list"}
	main()
	os.Args = []string{"clinicctl", "appointment", "confirm", "--id", "missing"}
	main()

	if len(codes) != 2 || codes[0] != 0 || codes[1] != 1 {
		t.Fatalf("unexpected exit codes %v", codes)
	}
}
