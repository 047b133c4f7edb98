// Package core contains the pure lending decisions used by the feature slices:
// building a new loan with its due date, and projecting borrow records together
// with their book and user summaries into the views returned by the listings.
//
// Nothing in here performs I/O or reads the clock, the shell passes "now" in.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'domain' layer.
package core
