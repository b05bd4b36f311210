// Package util provides building blocks for document store engines that
// satisfy the docdb.IDatabase interface.
//
// The package contains:
//   - queue: An unbounded, lock-free multi-producer single-consumer queue. Engines
//     use it to decouple writers from the goroutine that delivers change batches
//     to a subscription, so that slow handlers never block writes.
package util
