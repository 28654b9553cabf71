// Package workspace describes the project an asset build runs in and manages
// the scratch directories a build writes through.
//
// Info is detected once at startup (workspace root, Go module path, command
// packages, build-target root) and passed explicitly to the components that
// need it.
//
// Manager supports two modes. Staging mode creates a unique timestamped
// directory (e.g. images-20251214-122336-1234) that a stage fills and then
// swaps into the output tree. Persistent mode uses a fixed path (e.g.
// target/packler/sass) that is emptied at the start of each run.
//
// Lock takes the exclusive per-output-root lock that keeps two packler
// processes from interleaving writes to the same dist directory.
package workspace
