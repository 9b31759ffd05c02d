/*
Mineclient plays a single encrypted move.

	mineclient play --program 0x... --private-key 0x... --move 5
	mineclient remote --server http://127.0.0.1:8080 --identity 0x... --move 5
	mineclient keys status --private-key 0x...
	mineclient keys clear
*/
package main
