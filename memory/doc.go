// Package memory is the persona's long-term knowledge: durable,
// embedded records of facts, experiences, preferences, and emotionally
// significant moments, namespaced per persona.
//
// Architecture:
//   - Store: vector storage backend (chromem-go locally, pgvector in
//     production behind the same interface)
//   - Embedder: text-to-vector conversion (ONNX locally, API-based in
//     production, ristretto-cached either way)
//   - Ranker: orders search candidates by combined similarity and
//     importance, deterministically
//   - Extractor: turns completed exchanges into new records with
//     structured generation, deduplicating against existing memories
//   - Manager: orchestrates retrieval, manual adds, and extraction
//
// Integration with the conversation engine:
//   - Retrieve phase: rank relevant records before composing the prompt
//   - Record phase: extract and store new records after the reply is
//     delivered, off the request path
package memory
