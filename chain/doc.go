// Package chain talks to a Bitcoin node: it fetches the output a spend
// consumes and broadcasts the signed transaction.
package chain
