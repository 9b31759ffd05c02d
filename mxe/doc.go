// Package mxe submits encrypted moves to the confidential computation program
// and resolves their outcome.
//
// A move is encrypted under a CipherSession shared with the cluster, packed
// into a mine call and sent as a transaction. The client then races the
// cluster's finalization against a timer and decodes the settlement event from
// the finalizing receipt. Outcomes that could not be settled are handed to a
// FallbackResolver by the caller.
package mxe
