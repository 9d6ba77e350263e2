// Package drafting turns a prompt into a reply body using a local Ollama
// model.
//
// Calls go through a circuit breaker: while Ollama is down the breaker
// opens and drafts fail fast instead of waiting on every email of a
// cycle.
package drafting
