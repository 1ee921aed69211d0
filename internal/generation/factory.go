package generation

import (
	"strconv"
	"strings"

	"github.com/benbjohnson/clock"

	"github.com/dray-io/blobstore/internal/blob"
)

// Factory mints generation tagged ids around a delegate factory.
type Factory struct {
	delegate blob.Factory
	clock    clock.Clock
	cfg      Config
}

// NewFactory validates cfg and returns a factory. A nil clock uses the wall clock.
func NewFactory(delegate blob.Factory, clk clock.Clock, cfg Config) (*Factory, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if clk == nil {
		clk = clock.New()
	}
	return &Factory{delegate: delegate, clock: clk, cfg: cfg}, nil
}

// Config returns the factory's generation configuration.
func (f *Factory) Config() Config {
	return f.cfg
}

func (f *Factory) Random() blob.ID {
	return f.decorate(f.delegate.Random())
}

func (f *Factory) ForPayload(data []byte) blob.ID {
	return f.decorate(f.delegate.ForPayload(data))
}

func (f *Factory) decorate(delegate blob.ID) ID {
	return ID{
		Family:     f.cfg.Family,
		Generation: ComputeGeneration(f.cfg, f.clock.Now()),
		Delegate:   delegate,
	}
}

func (f *Factory) Parse(s string) (blob.ID, error) {
	id, err := f.ParseID(s)
	if err != nil {
		return nil, err
	}
	return id, nil
}

// ParseID decodes s. Strings lacking the tag structure, or carrying
// non-canonical, non-positive family or negative generation fields, decode
// as untagged ids wrapping the whole string, so String always returns s.
// Only a delegate parse failure is returned as an error.
func (f *Factory) ParseID(s string) (ID, error) {
	parts := strings.SplitN(s, separator, 3)
	if len(parts) == 3 {
		family, famErr := strconv.Atoi(parts[0])
		gen, genErr := strconv.ParseInt(parts[1], 10, 64)
		if famErr == nil && genErr == nil && family > NoFamily && gen >= 0 &&
			canonical(parts[0], int64(family)) && canonical(parts[1], gen) {
			delegate, err := f.delegate.Parse(parts[2])
			if err != nil {
				return ID{}, err
			}
			return ID{Family: family, Generation: gen, Delegate: delegate}, nil
		}
	}
	return f.untagged(s)
}

// canonical reports whether field is the decimal form String produces for n,
// rejecting signs and leading zeros.
func canonical(field string, n int64) bool {
	return field == strconv.FormatInt(n, 10)
}

func (f *Factory) untagged(s string) (ID, error) {
	delegate, err := f.delegate.Parse(s)
	if err != nil {
		return ID{}, err
	}
	return ID{Family: NoFamily, Generation: NoGeneration, Delegate: delegate}, nil
}

var _ blob.Factory = (*Factory)(nil)
