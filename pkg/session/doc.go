/*
Package session serialises access to stored notebooks.

Operations on one notebook name run one at a time within a process, through
reference-counted mutexes, and optionally across replicas through a
ports.DistributedLocker.
*/
package session
