// Package memory implements the persistent memory store: a SQLite-backed
// table of short natural-language notes with vector embeddings, hybrid
// (vector + keyword) retrieval with usage-based re-ranking, and the
// config guard that binds a store to a single embedding identity.
//
// The core collaborators are wired together by the caller: Store (SQLite
// ownership), Retriever (hybrid search), Service (record lifecycle), and
// EmbeddingProvider (the external embedding backend). Importer, NoteWatcher,
// and Maintenance build on them for markdown note ingestion and periodic
// index upkeep.
package memory
