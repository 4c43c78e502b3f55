// Package provider defines the vendor adapter contract and the registry that
// selects an adapter by provider ID.
//
// Adapters are pure translators: they turn an [api.MoveRequestContext] into a
// [WireRequest] and decode vendor payloads into an [api.CanonicalResponse].
// They never perform network I/O; the transport package executes requests.
// Vendor-specific behavior lives only in the adapter subpackages.
package provider
