// Package orders implements the order workflow: placement against locked
// stock, the status audit trail, cancellation, and the credit decision
// state machine.
//
// Every function takes the caller explicitly and runs its writes in a
// single transaction. Product rows are always locked in ascending id
// order so concurrent multi-product checkouts cannot deadlock.
package orders
