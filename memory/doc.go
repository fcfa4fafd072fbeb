// Package memory defines the data model and collaborator contracts for the
// Conductor memory engine.
//
// A project accumulates LearningItems (distilled patterns, decisions,
// invariants, antipatterns, and golden paths) extracted from conversations.
// The engine curates that working set and ranks it for injection into
// future LLM calls.
//
// Architecture:
//   - Provider: embedding lifecycle (lazy model load, single-flight, retry)
//   - Store: persistence backend (SQLite for local use)
//   - MessageSource: read access to a project's recent conversation messages
//   - InteractionLog: aggregate positive/total interaction outcomes
//
// The curation subsystems live in sibling packages: classify (domain
// signal), compact (duplicate merging), links (co-occurrence graph),
// confidence (project trust score), and lens (ranking for injection).
// Each depends only on this package and the embedding provider; there are
// no cycles between them.
package memory
