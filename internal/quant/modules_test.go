//go:build !nogpu

package quant

import "testing"

// Every compute kernel must compile and link into its pipeline without
// error; this is the cheapest possible smoke test that the WGSL sources
// and their bind group layouts agree with each other.
func TestNewModulesCompilesAllPipelines(t *testing.T) {
	p := testProcessor(t)
	defer p.Close()

	if p.modules == nil {
		t.Fatal("expected non-nil Modules after New")
	}
}

func TestModulesCloseIdempotent(t *testing.T) {
	p := testProcessor(t)
	p.Close()
	p.Close() // must not panic
}
