// Package artifact models the class files produced by one build.
//
// A CompiledArtifact is recorded when the compiler reports a generated
// .class file. The Collector accumulates artifacts between build-completion
// events, and the Expander enlarges each artifact into its generated
// companions (query beans and association query beans by default) using
// fixed naming templates relative to the same output root.
//
// Artifacts are not re-validated after they are recorded. A caller must not
// hold an artifact across a deletion of its file.
package artifact
