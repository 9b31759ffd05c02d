/*
Mined serves the move API for the identities it holds.

	mined --program 0x... --private-key 0x... \
	    --store file:///var/lib/mined/keys --store vault://vault:8200/secret/mine

The vault key comes from --vault-key or MPC_ENCRYPTION_KEY and is required.
See package httpserver for the routes.
*/
package main
