// Package ledger tracks the Gmail message ids the assistant has already
// looked at, so no email is processed twice.
//
// Two implementations are provided:
//   - Memory: a process-lifetime set (the default). A restart forgets every
//     id, so unread mail that is still unread may be drafted again.
//   - SQLite: the same set, loaded from and written through to a SQLite
//     database so the ledger survives restarts. Uses github.com/mattn/go-sqlite3
//     (CGO required).
package ledger
