// Package memory provides the low-level primitives the reclamation
// engine and its clients build on: a bounded FIFO ring used to hold
// sealed callback batches, and a typed object pool that recycles
// objects once the engine has proven nobody can still reach them.
//
// The package is dependency-free. Neither type knows about epochs;
// deciding WHEN something may be recycled is the job of infra/rcu.
package memory
