/*
Package lsp bootstraps the Syntheto language server and talks to it over
JSON-RPC 2.0 with LSP framing.

The Client keeps diagnostics per document, forwards server log messages to the
logger and doubles as a ports.ExecutionHandler: executing a cell sends the
workspace/executeCommand request "midas.a" with the execution request as its
only argument. A Watcher forwards changes of *.synth files in the workspace as
workspace/didChangeWatchedFiles notifications.
*/
package lsp
