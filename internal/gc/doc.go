// Package gc implements bloom filter based garbage collection of orphaned
// blobs.
//
// # Algorithm
//
// A run collects the ids of one bucket that are neither referenced nor
// recent:
//
//  1. Every id yielded by the registered [ReferenceSource]s is inserted,
//     prefixed by a per-run random salt, into a bloom filter sized for the
//     expected blob count and false positive probability.
//  2. The bucket is listed. Each id is decoded as a generation tagged id.
//  3. An id is deleted only when it is outside the active generation window
//     AND the filter reports it absent. False positives retain a blob; they
//     never cause a deletion. The salt changes every run so a blob retained
//     by a false positive is eventually collected.
//  4. Deletable ids are grouped into windows of DeletionWindowSize and each
//     window is removed with one bulk delete. At most MaxInFlightBatches
//     windows are deleted concurrently.
//
// A run never fails: any error degrades its [task.Result] to Partial, and a
// failure while reading references aborts the run before anything is
// deleted.
//
// # Usage
//
//	collector := gc.NewCollector(dao, generationFactory, sources)
//	t, err := gc.NewTask(collector, gc.RunConfig{
//	    Bucket:                blob.DefaultBucket,
//	    ExpectedBlobCount:     1_000_000,
//	    AssociatedProbability: 0.01,
//	    DeletionWindowSize:    1000,
//	})
//	result := task.Execute(ctx, t, logger)
//
// [Worker] runs a task periodically.
package gc
