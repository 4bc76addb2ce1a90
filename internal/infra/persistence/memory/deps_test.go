package memory

import (
	"strings"
	"testing"

	"bandkeeper/testutil"
)

func TestImportsAreDomainOrStdlib(t *testing.T) {
	testutil.AssertNoDirectImports(t, ".", func(path string) bool {
		return strings.HasPrefix(path, testutil.Module+"/") && path != testutil.Module+"/pkg/domain"
	}, "the memory backend only knows the domain model")
	testutil.AssertNoDirectImports(t, ".", testutil.ThirdParty, "the memory backend is dependency free")
}
