// Package shell contains the infrastructure shared by the lending feature slices:
// the command and query handler contracts, the retry loop for concurrency conflicts,
// the explicit handler result used for observability, and the metric, span and log
// helpers the observable wrappers are built from.
//
// In Hexagonal Architecture terminology, this is the 'imperative shell' around the
// pure core package.
package shell
