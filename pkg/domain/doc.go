/*
Package domain contains the core models of the notebook toolkit.

It defines notebooks and their cells, the live editable document, and the
execution request/response protocol exchanged with an external handler when a
cell runs. The package is free of I/O and persistence concerns.

# Key Entities

  - Cell: a Code or Markup unit with text and optional outputs.
  - Notebook: an ordered, immutable snapshot of cells plus opaque metadata.
  - Document: the live notebook; edits address cells by in-memory identity.
  - ExecutionRequest / ExecutionResponse: the message pair sent to a handler.
  - CellExecution: the outcome of running a single cell.
*/
package domain
