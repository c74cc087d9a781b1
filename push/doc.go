// Package push dispatches fire-and-forget push notifications to the
// notification relay. Delivery is strictly best-effort: the relay being
// slow or down never propagates into the messaging pipeline; failures
// are logged and swallowed by the caller.
package push
