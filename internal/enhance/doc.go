// Package enhance drives one enhancement run per build-completion event.
//
// A run moves through a fixed sequence of states:
//
//	Idle -> Expanding -> Resolving -> Transforming -> Committing -> Idle
//
// Expanding unions the input artifacts with their companions. Resolving
// builds a fresh resolver and class loader scoped to that working set and
// applies the package manifest. Transforming reads each class from its own
// file and runs the pass pipeline over it on a bounded worker pool.
// Committing writes back only the classes a pass changed.
//
// Per-class problems (unreadable file, failing pass, failed write) become
// failed outcomes and are reported through Diagnostics; they never stop the
// other classes. Setup problems (classpath or manifest) abort the run before
// Transforming, and no file is modified.
//
// Thread-safety: a Runner may be shared. Runs touching the same output root
// are serialised; runs on disjoint roots proceed in parallel. Resolver and
// loader state is owned by a single run and discarded when it ends.
package enhance
