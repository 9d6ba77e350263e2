// Package assistant implements the poll cycle of the inbox assistant.
//
// A Scheduler drives a small state machine:
//
//	Checking --(no new mail)--> Waiting
//	Checking --(new mail)-----> Drafting --> Waiting
//	Waiting  --(interval)-----> Checking
//
// Checking runs the Ingester, which turns the unread search into a batch
// of EmailRecords and records every id in the ledger. Drafting runs the
// Rules (relevance filter, then action filter) and hands the survivors to
// the Coordinator, which drafts and sends one reply per email, in order.
//
// Stop requests are only observed after Waiting, so a cycle that has
// started always completes.
package assistant
