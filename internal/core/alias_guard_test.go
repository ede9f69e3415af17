package core

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"
	"path/filepath"
	"strings"
	"testing"
)

const domainPkgPath = "recordcore/pkg/domain"

// TestRecordShapesLiveInDomain keeps entity and store shapes in pkg/domain:
// core may neither alias them nor declare a local type under a domain name.
func TestRecordShapesLiveInDomain(t *testing.T) {
	pkg := loadCorePackage(t)

	var domainPkg *types.Package
	for _, imp := range pkg.Types.Imports() {
		if imp.Path() == domainPkgPath {
			domainPkg = imp
		}
	}
	if domainPkg == nil {
		t.Fatalf("core no longer imports %s", domainPkgPath)
	}
	domainNames := map[string]bool{}
	for _, name := range domainPkg.Scope().Names() {
		if _, ok := domainPkg.Scope().Lookup(name).(*types.TypeName); ok {
			domainNames[name] = true
		}
	}

	var offenders []string
	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			gen, ok := decl.(*ast.GenDecl)
			if !ok || gen.Tok != token.TYPE {
				continue
			}
			for _, spec := range gen.Specs {
				ts, ok := spec.(*ast.TypeSpec)
				if !ok {
					continue
				}
				pos := pkg.Fset.Position(ts.Pos())
				where := fmt.Sprintf("%s:%d", filepath.Base(pos.Filename), pos.Line)
				switch {
				case ts.Assign.IsValid():
					offenders = append(offenders, fmt.Sprintf("%s alias %s", where, ts.Name.Name))
				case domainNames[ts.Name.Name]:
					offenders = append(offenders, fmt.Sprintf("%s redeclares domain.%s", where, ts.Name.Name))
				}
			}
		}
	}

	if len(offenders) > 0 {
		t.Fatalf("record shapes belong in %s; core declares %d copies:\n%s", domainPkgPath, len(offenders), strings.Join(offenders, "\n"))
	}
}
