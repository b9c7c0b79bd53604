// Package shmvars provides a process-local store of named variables that can
// be synchronized across OS processes on the same machine through a
// fixed-size shared memory segment, without a broker in between.
//
// The root package carries the shared contracts: the Result outcome type
// returned by every public operation, the ErrorCode taxonomy, the fault
// tracker that turns raised errors into uniform failures, the Marshaler
// formats used on the wire, and small utilities (UUID, retry, logging
// setup). The store package implements the variable table and its segment
// sync operations; the shm package implements the OS segment, the bounded
// handle cache and the frame codec.
//
// Cross-process synchronization is last-sync-wins over the whole table.
// Concurrent writers to the same segment without the optional cross-process
// lock may lose updates; that is a documented property, not a defect.
package shmvars
