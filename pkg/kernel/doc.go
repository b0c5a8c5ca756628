/*
Package kernel runs notebook cells against an external execution handler.

For each cell it builds an ExecutionRequest from a snapshot of the document,
dispatches it under a timeout, and routes the tagged response back into the
live document:

  - success: the message becomes the cell output.
  - transformation: the message becomes the output and the returned code is
    inserted as a fenced Markup cell right after the executed cell.
  - anything else: the message becomes the output and the execution fails.

Cells of a batch run strictly one after another.
*/
package kernel
