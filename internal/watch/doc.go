// Package watch defines the core types shared across the page watcher: the
// persisted watch state, extraction results, run outcomes, the collaborator
// interfaces wired together by the orchestrator, and the change classifier.
package watch
