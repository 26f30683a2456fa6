// Package reconcile drives every governed document's envelope toward the
// recipient set the registry derives for it. Work is spread over a
// bounded worker pool with a per-document timeout; failures are collected
// into a report rather than aborting the batch.
package reconcile
