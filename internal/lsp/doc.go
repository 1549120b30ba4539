// Package lsp manages the JSON language server process and its JSON-RPC
// connection.
//
// A Server owns one child process speaking LSP over stdio. Requests the
// server sends back to the client are dispatched through handlers registered
// with OnRequest before Start; unregistered methods get the standard
// method-not-found reply. Custom methods beyond the LSP core (schema
// association pushes, document sorting) go through Notify and Call directly.
package lsp
