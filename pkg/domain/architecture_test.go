package domain

import (
	"testing"

	"bandkeeper/testutil"
)

// Clients depend on this package alone, so it must not pull in any
// implementation package or third-party module.
func TestDomainImportBoundaries(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", testutil.InternalImportForbidden, "pkg/domain must stay implementation free")
	testutil.AssertNoTransitiveDependency(t, ".", testutil.ThirdParty, "pkg/domain depends on the standard library only")
}
