// Package flowengine provides a durable, concurrency-limited execution
// engine for long-running, multi-step "flows" that each stream intermediate
// elements and a final result.
//
// Flowengine is designed for backend services that need reliable
// asynchronous, streaming operations without external infrastructure. It
// runs fully in Go and supports multiple persistence backends.
//
// # Core Concepts
//
//  1. Engine
//  2. Flow
//  3. Worker (internal, driven by the Engine's background dispatcher)
//
// # Engine
//
// The Engine accepts submissions, persists every run and its elements,
// schedules runs under a global concurrency cap, enforces a visibility
// timeout so stuck runs are retried, supports cancellation, and exposes
// query endpoints for status, streamed elements, and final result.
//
// Engines can be backed by different storage systems:
//
//   - In-memory (non-durable, best for tests and local development)
//   - SQLite (embedded durability, see internal/store/sqlite)
//   - Postgres, Redis, MongoDB (see the postgres/, redis/, mongo/ submodules)
//
// # Flow
//
// A Flow is a user-registered, named procedure that consumes a typed input,
// lazily produces a sequence of intermediate elements over a channel, and
// optionally sets one terminal result before its stream ends. Flow authors
// who want strong typing can build on flow.Typed instead of implementing
// the erased flow.Flow interface directly.
//
// # Summary
//
// Flowengine's goal is an embeddable streaming job engine that feels like
// Go: explicit channels for streaming, context for cancellation, and no
// operational overhead beyond whatever persistence backend you choose.
package flowengine
