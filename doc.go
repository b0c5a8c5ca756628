/*
Package mnb stores, executes and exports MIDAS notebooks.

A notebook is an ordered list of Markup and Code cells persisted as JSON
(see package codec). Code cells are written in Syntheto and executed by an
external handler: the Syntheto language server, a remote execution server or
a local process. Each execution receives the cell's code together with every
Code cell above it, and may answer with a transformation whose code is
inserted as a new cell below the executed one.

# Usage

	eng, err := mnb.New(
		mnb.WithStore(file.New("./notebooks")),
		mnb.WithHandler(handler),
	)
	if err != nil {
		log.Fatal(err)
	}
	defer eng.Close()

	// Run every Code cell of demo.mnb and persist the outputs.
	execs, err := eng.Execute(ctx, "demo", nil)

	// Concatenate the Code cells into a .synth file.
	err = eng.ExportFile(ctx, "demo", "demo.synth")

Engine.Run executes an in-memory notebook without touching the store.

# Adapters

Stores (package adapters/file, adapters/memory, adapters/redis), handlers
(adapters/lsp, adapters/http, adapters/process, adapters/memory) and the
execution journal (adapters/sqlite, adapters/memory) are plugged in through
the interfaces in package ports.
*/
package mnb
