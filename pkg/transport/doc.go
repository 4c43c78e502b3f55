// Package transport executes rendered vendor requests over HTTP.
//
// [Client.Execute] issues one request and returns a canonical response,
// either from a buffered JSON body or by accumulating a server-sent event
// stream. Incremental snapshots are pushed to an optional observer while the
// stream is still open; each snapshot extends the previous one.
//
// Every failure leaves this package as an *api.Error: HTTP statuses of 400
// and above are classified into the canonical taxonomy with the raw body
// captured, network failures become upstream errors, and context
// cancellation becomes a cancelled error. The transport never retries.
package transport
