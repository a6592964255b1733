// Package watcher turns native filesystem notifications into throttled
// batches delivered to per-subscription callbacks.
//
// A Manager owns a Registry of subscriptions. Each subscription holds one
// native handle and one throttler: raw events are buffered until the watched
// tree has been quiet for the throttle interval, then delivered as a single
// ordered batch. Batches are not de-duplicated.
//
// The Manager API is safe for concurrent use. Once StopWatch returns no new
// callback invocation starts for that subscription.
package watcher
