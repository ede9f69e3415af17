package derive

import (
	"testing"

	"recordcore/testutil"
)

func TestDeriveStaysPure(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.AnyOf(testutil.InternalImportForbidden, testutil.DriverImportForbidden), "derivation rules must not depend on storage or the service layer")
}
