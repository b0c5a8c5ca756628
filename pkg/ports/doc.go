/*
Package ports defines the driven ports (interfaces) for the notebook toolkit.

These interfaces decouple the kernel and the engine from the concrete execution
backends, storage backends and lock providers.

# Key Interfaces

  - ExecutionHandler: runs one cell execution request (language server, HTTP, process).
  - NotebookStore: persists notebooks by name (file, memory, redis).
  - DistributedLocker: provides distributed locking for concurrent notebook access.
  - ExecutionJournal: records cell executions for later inspection.
*/
package ports
