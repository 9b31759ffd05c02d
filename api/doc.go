/*
Package api defines the wire contract of the move daemon.

It holds the server configuration, the request and response types of every
route and, in the clients subpackage, a Go client for the daemon.

# Routes

  - POST /api/v1/session/connect - derive or load keys for a held identity
  - POST /api/v1/session/disconnect - purge keys of an identity
  - GET /api/v1/session/{identity} - key lifecycle state
  - POST /api/v1/move - encrypt and submit a move, resolve its outcome
  - POST /api/v1/admin/keys/clear - purge every stored key record (admin only)

A move whose outcome could not be settled within budget is still answered
with 200: the response carries the unsettled outcome together with a locally
drawn decision and Fallback set.
*/
package api
