/*
Package codec converts notebooks to and from the persisted notebook file format.

A notebook file is a UTF-8 JSON document pretty-printed with two-space indentation:

	{
	  "cells": [
	    {
	      "kind": 2,
	      "language": "syntheto",
	      "value": "function f() ...",
	      "editable": true,
	      "outputMime": "text/plain",
	      "outputData": "ok"
	    }
	  ]
	}

Kind 1 is a Markup cell and kind 2 a Code cell. Only the first output of a cell is
written. outputData holds the output bytes decoded as UTF-8 text and is re-encoded
the same way on read; it is not base64.

Deserialize never fails: a file that cannot be decoded opens as an empty notebook.
Decode is the strict variant for callers that want to surface the reason.
*/
package codec
