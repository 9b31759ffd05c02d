/*
Package httpserver implements the move daemon's HTTP server.

The daemon plays moves on behalf of identities it holds in a keyring. Clients
connect an identity, which derives or loads its cipher keys, then submit moves
that are encrypted, queued with the computation cluster and resolved from the
settlement log.

# Moves

  - Moves are numbered cells 1..9.
  - At most one move per identity is in flight; a concurrent move gets 409.
  - Moves are rate limited per identity (429).
  - A move without ready keys gets 412 and is not decided.
  - An unsettled move (timeout, missing event, dispatch failure) is answered
    with 200, the unsettled outcome and a fallback decision.

# Health

/livez, /readyz, /drain and /undrain report and toggle readiness. While
draining, new moves are rejected with 503 and session routes keep working.
Metrics are served separately on the metrics address.
*/
package httpserver
