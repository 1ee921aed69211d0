package health

import (
	"context"
	"errors"

	"github.com/dray-io/blobstore/internal/metadata"
	"github.com/dray-io/blobstore/internal/objectstore"
)

// probeKey is read by MetadataStoreChecker. It never exists.
const probeKey = "/blobstore/v1/health-check"

// MetadataStoreChecker verifies the reference registry store responds.
type MetadataStoreChecker struct {
	store metadata.Store
}

// NewMetadataStoreChecker creates a new MetadataStoreChecker.
func NewMetadataStoreChecker(store metadata.Store) *MetadataStoreChecker {
	return &MetadataStoreChecker{store: store}
}

func (c *MetadataStoreChecker) Name() string {
	return "metadata_store"
}

// CheckReady performs a Get of a key that does not exist; a missing key is
// a successful answer.
func (c *MetadataStoreChecker) CheckReady(ctx context.Context) error {
	if c.store == nil {
		return errors.New("metadata store not configured")
	}
	_, err := c.store.Get(ctx, probeKey)
	return err
}

// ObjectStoreChecker verifies the blob backend responds by listing its
// buckets.
type ObjectStoreChecker struct {
	dao objectstore.DAO
}

// NewObjectStoreChecker creates a new ObjectStoreChecker.
func NewObjectStoreChecker(dao objectstore.DAO) *ObjectStoreChecker {
	return &ObjectStoreChecker{dao: dao}
}

func (c *ObjectStoreChecker) Name() string {
	return "object_store"
}

func (c *ObjectStoreChecker) CheckReady(ctx context.Context) error {
	if c.dao == nil {
		return errors.New("object store not configured")
	}
	_, err := c.dao.ListBuckets(ctx)
	return err
}

// FuncChecker wraps a function as a ReadinessChecker.
type FuncChecker struct {
	name  string
	check func(context.Context) error
}

// NewFuncChecker creates a new FuncChecker with the given name and check function.
func NewFuncChecker(name string, check func(context.Context) error) *FuncChecker {
	return &FuncChecker{name: name, check: check}
}

func (c *FuncChecker) Name() string {
	return c.name
}

func (c *FuncChecker) CheckReady(ctx context.Context) error {
	if c.check == nil {
		return nil
	}
	return c.check(ctx)
}
