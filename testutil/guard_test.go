package testutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/tools/go/packages"
)

type recordingFatal struct {
	msg string
}

func (r *recordingFatal) Fatalf(format string, args ...any) {
	r.msg = fmt.Sprintf(format, args...)
}

func writeGo(t *testing.T, dir, name, src string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(src), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestInternalImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"recordcore/internal/core", true},
		{"recordcore/internal/infra/persistence/sqlite", true},
		{"recordcore/pkg/domain", false},
		{"recordcore/internalx", false},
		{"crypto/internal/fips140/sha256", false},
		{"golang.org/x/text/internal/tag", false},
		{"example.com/some/internal/deep/path", false},
		{"", false},
	}
	for _, c := range cases {
		if got := InternalImportForbidden(c.in); got != c.want {
			t.Fatalf("InternalImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestDriverImportForbidden(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"modernc.org/sqlite", true},
		{"modernc.org/sqlite/lib", true},
		{"github.com/jackc/pgx/v5/stdlib", true},
		{"go.mongodb.org/mongo-driver/mongo", true},
		{"github.com/aws/aws-sdk-go-v2/service/s3", true},
		{"github.com/xuri/excelize/v2", true},
		{"github.com/go-pdf/fpdf", true},
		{"github.com/shopspring/decimal", false},
		{"database/sql", false},
		{"database/sql/driver", false},
		{"modernc.org/sqlitex", false},
	}
	for _, c := range cases {
		if got := DriverImportForbidden(c.in); got != c.want {
			t.Fatalf("DriverImportForbidden(%q)=%v want %v", c.in, got, c.want)
		}
	}
}

func TestAnyOf(t *testing.T) {
	pred := AnyOf(InternalImportForbidden, DriverImportForbidden)
	if !pred("recordcore/internal/cli") || !pred("modernc.org/sqlite") {
		t.Fatalf("expected combined predicate to match both kinds")
	}
	if pred("recordcore/pkg/derive") {
		t.Fatalf("expected pure package to pass")
	}
	if AnyOf()("anything") {
		t.Fatalf("empty AnyOf must match nothing")
	}
}

func TestDirectImportViolationsIgnoreTestsAndSubdirs(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "x.go", "package tmp\nimport \"fmt\"\nfunc X() { fmt.Println(1) }\n")
	writeGo(t, dir, "x_test.go", "package tmp\nimport \"modernc.org/sqlite\"\n")
	writeGo(t, dir, "notes.txt", "import \"modernc.org/sqlite\"")
	sub := filepath.Join(dir, "sub")
	if err := os.Mkdir(sub, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writeGo(t, sub, "s.go", "package sub\nimport \"github.com/jackc/pgx/v5\"\n")

	AssertNoDirectImports(t, dir, DriverImportForbidden, "drivers")
}

func TestDirectImportViolationsReported(t *testing.T) {
	dir := t.TempDir()
	writeGo(t, dir, "store.go", "package tmp\nimport (\n\t\"database/sql\"\n\t\"fmt\"\n\n\t_ \"modernc.org/sqlite\"\n)\nvar _ = sql.ErrNoRows\nvar _ = fmt.Sprint\n")

	viols, err := directImportViolations(dir, DriverImportForbidden)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(viols) != 1 || viols[0] != "modernc.org/sqlite (in store.go)" {
		t.Fatalf("unexpected violations %v", viols)
	}

	rec := &recordingFatal{}
	failIfViolations(rec, "forbidden direct imports", "drivers", viols)
	if !strings.Contains(rec.msg, "forbidden direct imports detected (drivers)") || !strings.Contains(rec.msg, "store.go") {
		t.Fatalf("unexpected failure message %q", rec.msg)
	}
}

func TestDirectImportViolationsErrors(t *testing.T) {
	if _, err := directImportViolations(filepath.Join(t.TempDir(), "missing"), DriverImportForbidden); err == nil {
		t.Fatalf("expected error for missing dir")
	}
	dir := t.TempDir()
	writeGo(t, dir, "broken.go", "package tmp\nimport (\n")
	if _, err := directImportViolations(dir, DriverImportForbidden); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTransitiveDependencyViolationsWalksGraph(t *testing.T) {
	orig := loadPackages
	defer func() { loadPackages = orig }()

	fips := &packages.Package{PkgPath: "crypto/internal/fips140/sha256", Imports: map[string]*packages.Package{}}
	sqlDriver := &packages.Package{PkgPath: "database/sql/driver", Imports: map[string]*packages.Package{}}
	sqlite := &packages.Package{PkgPath: "modernc.org/sqlite", Imports: map[string]*packages.Package{"database/sql/driver": sqlDriver}}
	store := &packages.Package{PkgPath: "recordcore/internal/core", Imports: map[string]*packages.Package{"modernc.org/sqlite": sqlite}}
	decimal := &packages.Package{PkgPath: "github.com/shopspring/decimal", Imports: map[string]*packages.Package{"database/sql/driver": sqlDriver}}
	root := &packages.Package{PkgPath: "recordcore/pkg/derive", Imports: map[string]*packages.Package{
		"recordcore/internal/core":       store,
		"github.com/shopspring/decimal":  decimal,
		"crypto/internal/fips140/sha256": fips,
	}}
	loadPackages = func(string) ([]*packages.Package, error) { return []*packages.Package{root}, nil }

	viols, err := transitiveDependencyViolations("recordcore/pkg/derive", AnyOf(InternalImportForbidden, DriverImportForbidden))
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if strings.Join(viols, ",") != "modernc.org/sqlite,recordcore/internal/core" {
		t.Fatalf("unexpected violations %v", viols)
	}

	loadPackages = func(string) ([]*packages.Package, error) { return nil, errors.New("boom") }
	if _, err := transitiveDependencyViolations("x", DriverImportForbidden); err == nil {
		t.Fatalf("expected load error")
	}
}

func TestPurePackagesStayPure(t *testing.T) {
	AssertNoTransitiveDependency(t, "recordcore/pkg/...", AnyOf(InternalImportForbidden, DriverImportForbidden), "pkg/ must stay free of internal packages and drivers")
}
