package domain

// Language identifiers used by cells.
const (
	LanguageSyntheto = "syntheto"
	LanguageMarkdown = "markdown"
)

// Output mime types.
const (
	MimeTextPlain = "text/plain"
	MimeError     = "application/vnd.code.notebook.error"
)

// ExecuteCommand is the language server command that runs a cell.
const ExecuteCommand = "midas.a"

// Placeholders used when a response omits a field.
const (
	PlaceholderSuccess        = "empty response"
	PlaceholderMessage        = "no response"
	PlaceholderTransformation = "here should be the\n transformed function code"
)

// NotebookExtension is the file extension of persisted notebooks.
const NotebookExtension = ".mnb"
