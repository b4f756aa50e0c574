/*
Package ports defines the driven ports (interfaces) of strata.

These interfaces decouple the storage service, the workflow patcher and the
install sequence from external implementations.

# Key Interfaces

  - Repository: items, samples, workflow definitions and settings (memory, file, redis, SQL).
  - PatchLoader: source of workflow patch documents (Loam, memory).
  - DistributedLocker: exclusive lock held by the install sequence.
  - BlobSink: destination of exported snapshots.
*/
package ports
