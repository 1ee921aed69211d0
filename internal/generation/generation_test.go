package generation

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dray-io/blobstore/internal/blob"
)

var now = time.Date(2026, time.March, 14, 9, 26, 53, 0, time.UTC)

func newTestFactory(t *testing.T, cfg Config) (*Factory, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	clk.Set(now)
	f, err := NewFactory(blob.NewDigestFactory(), clk, cfg)
	require.NoError(t, err)
	return f, clk
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		family   int
		wantErr  bool
	}{
		{name: "default", duration: DefaultDuration, family: DefaultFamily},
		{name: "one second", duration: time.Second, family: 7},
		{name: "zero duration", duration: 0, family: 1, wantErr: true},
		{name: "negative duration", duration: -time.Hour, family: 1, wantErr: true},
		{name: "sub second duration", duration: 500 * time.Millisecond, family: 1, wantErr: true},
		{name: "zero family", duration: time.Hour, family: 0, wantErr: true},
		{name: "negative family", duration: time.Hour, family: -2, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewConfig(tt.duration, tt.family)
			if tt.wantErr {
				assert.True(t, errors.Is(err, ErrInvalidConfig))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 30*24*time.Hour, cfg.Duration)
	assert.Equal(t, 1, cfg.Family)
	assert.NoError(t, cfg.Validate())
}

func TestComputeGeneration(t *testing.T) {
	cfg := Config{Duration: time.Hour, Family: 1}

	assert.Equal(t, int64(0), ComputeGeneration(cfg, time.Unix(0, 0)))
	assert.Equal(t, int64(0), ComputeGeneration(cfg, time.Unix(3599, 0)))
	assert.Equal(t, int64(1), ComputeGeneration(cfg, time.Unix(3600, 0)))
	assert.Equal(t, now.Unix()/3600, ComputeGeneration(cfg, now))
}

func TestFactoryTagsWithCurrentGeneration(t *testing.T) {
	cfg := Config{Duration: time.Hour, Family: 3}
	f, _ := newTestFactory(t, cfg)

	id := f.ForPayload([]byte("body")).(ID)

	assert.Equal(t, 3, id.Family)
	assert.Equal(t, ComputeGeneration(cfg, now), id.Generation)
	assert.Equal(t, blob.NewDigestFactory().ForPayload([]byte("body")), id.Delegate)
	assert.Equal(t, fmt.Sprintf("3_%d_%s", id.Generation, id.Delegate), id.String())
}

func TestNoFamilySerializesAsDelegate(t *testing.T) {
	id := ID{Family: NoFamily, Generation: NoGeneration, Delegate: blob.PlainID("abc")}
	assert.Equal(t, "abc", id.String())
}

func TestParseRoundTrip(t *testing.T) {
	f, _ := newTestFactory(t, DefaultConfig())
	r := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 200; i++ {
		want := ID{
			Family:     1 + r.IntN(1000),
			Generation: r.Int64N(1 << 40),
			Delegate:   blob.NewDigestFactory().Random(),
		}
		got, err := f.ParseID(want.String())
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestParseFallsBackToNoGeneration(t *testing.T) {
	f, _ := newTestFactory(t, DefaultConfig())

	inputs := []string{
		"abc",
		"abc_def",
		"abc_def_ghi",
		"1_abc_ghi",
		"abc_12_ghi",
		"0_12_ghi",
		"-1_12_ghi",
		"1_-12_ghi",
		"99999999999999999999_1_x",
		"01_5_x",
		"+1_5_x",
		"1_05_x",
		"1_+5_x",
		"1_-0_x",
		"sha256:" + "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := f.ParseID(in)
			require.NoError(t, err)
			assert.Equal(t, NoFamily, got.Family)
			assert.Equal(t, NoGeneration, got.Generation)
			assert.Equal(t, in, got.Delegate.String())
			assert.Equal(t, in, got.String())
		})
	}
}

func TestParseRejectsUnparsableDelegate(t *testing.T) {
	f, _ := newTestFactory(t, DefaultConfig())

	_, err := f.Parse("")
	assert.True(t, errors.Is(err, blob.ErrInvalidID))

	_, err = f.Parse("1_2_sha256:zz")
	assert.True(t, errors.Is(err, blob.ErrInvalidID))

	id, err := f.Parse("1_2_has space")
	assert.Nil(t, id)
	assert.Error(t, err)
}

func TestInActiveGeneration(t *testing.T) {
	cfg := Config{Duration: 24 * time.Hour, Family: 1}
	f, clk := newTestFactory(t, cfg)

	fresh := f.Random().(ID)
	assert.True(t, fresh.InActiveGeneration(cfg, clk.Now()), "blob created now")

	assert.True(t, fresh.InActiveGeneration(cfg, clk.Now().Add(24*time.Hour)),
		"previous generation is still active")

	assert.False(t, fresh.InActiveGeneration(cfg, clk.Now().Add(2*24*time.Hour+time.Second)),
		"older than two windows")

	otherFamily := fresh
	otherFamily.Family = 2
	assert.False(t, otherFamily.InActiveGeneration(cfg, clk.Now()))

	legacy := ID{Family: NoFamily, Delegate: blob.PlainID("legacy")}
	assert.False(t, legacy.InActiveGeneration(cfg, clk.Now()))
}

func TestActiveGenerationMonotonicity(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))

	for i := 0; i < 200; i++ {
		cfg := Config{Duration: time.Duration(1+r.IntN(86400)) * time.Second, Family: 1 + r.IntN(5)}
		created := now.Add(-time.Duration(r.Int64N(int64(365 * 24 * time.Hour))))

		clk := clock.NewMock()
		clk.Set(created)
		f, err := NewFactory(blob.NewDigestFactory(), clk, cfg)
		require.NoError(t, err)
		id := f.Random().(ID)

		assert.True(t, id.InActiveGeneration(cfg, created))

		later := created.Add(2*cfg.Duration + time.Duration(1+r.IntN(3600))*time.Second)
		assert.False(t, id.InActiveGeneration(cfg, later), "cfg=%+v created=%s", cfg, created)
	}
}
