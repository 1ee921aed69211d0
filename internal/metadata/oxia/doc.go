// Package oxia implements the metadata.Store interface using Oxia.
//
// Oxia is a distributed metadata store with hierarchical key ordering. The
// blob engine keeps one record per (reference source, blob) pair in it, so
// reference enumeration during garbage collection is a paged range scan.
//
// Usage:
//
//	store, err := oxia.New(ctx, oxia.Config{
//	    ServiceAddress: "localhost:6648",
//	    Namespace:      "default",
//	})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Put(ctx, "/blobstore/refs/mailbox/1_20000_sha256:9f86...", nil)
//	page, err := store.List(ctx, "/blobstore/refs/mailbox/", "", 1000)
package oxia
