// Package audit records lifecycle events (onboard, offboard, rotate,
// reconcile) as an append-only JSON Lines file. The core never reads it
// back for decisions; reporting tools consume the raw log.
package audit
