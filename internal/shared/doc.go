// Package shared holds helpers used by more than one layer of the sea level
// service. At the moment that is only the testutil subpackage.
//
// # Test Utilities
//
// testutil provides:
//
//   - A buffered slog handler for asserting on log output
//   - Dataset fixtures built from exact linear relations
//   - CSV builders in the EPA sea level layout
//
// Example usage:
//
//	func TestSomething(t *testing.T) {
//	    logger, logs := testutil.NewTestLogger(t)
//	    ds := testutil.LinearDataset(1880, 2013, 0.063, -119.07)
//	    // ...
//	    testutil.AssertNoErrors(t, logs)
//	}
package shared
