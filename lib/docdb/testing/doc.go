// Package testing provides standardised tests and benchmarks for
// document store engines that satisfy the docdb.IDatabase interface.
//
// The package contains:
//   - testing: A conformance suite for the reference, snapshot and change feed contract
//   - benchmark: Performance tests for the common read, write and subscribe paths
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func(tb testing.TB) docdb.IDatabase {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunDocDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunDocDBBenchmarks(b, "MyDatabase", factory)
package testing
