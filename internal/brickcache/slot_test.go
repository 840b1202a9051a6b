package brickcache

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/voxcache/gpu"
	"github.com/hupe1980/voxcache/internal/hub"
	"github.com/hupe1980/voxcache/internal/resource"
	"github.com/hupe1980/voxcache/testutil"
	"github.com/hupe1980/voxcache/volume"
)

func testEnv(drv *testutil.Driver, hubSize int) *Env {
	return &Env{
		Driver: drv,
		Hub:    hub.New(hubSize),
		Res:    resource.NewController(resource.Config{}),
	}
}

func key(i uint64) volume.BrickKey {
	return volume.BrickKey{LOD: 0, Index: i}
}

func TestNewSlotPopulates(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 0)

	dims := volume.Dims{X: 4, Y: 4, Z: 4}
	data := testutil.NewRNG(1).Brick(int(dims.VoxelCount()))
	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), data)

	s, err := NewSlot(env, ds, key(0), Flags{}, Recency{Frame: 1, Intra: 1})
	require.NoError(t, err)

	assert.Equal(t, 1, s.Users(), "fresh slot starts with one grant")
	require.NotNil(t, s.Texture())

	tex := s.Texture().(*testutil.Texture)
	assert.Equal(t, data, tex.Data)
	assert.Equal(t, gpu.FormatR, tex.Desc.Format)
	assert.Equal(t, gpu.SampleUint8, tex.Desc.Type)
	assert.Equal(t, int64(64), env.Res.MemoryUsage())
}

func TestNewSlotUsesHubForSmallBricks(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 1024)

	dims := volume.Dims{X: 4, Y: 4, Z: 4}
	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), make([]byte, 64))

	_, err := NewSlot(env, ds, key(0), Flags{}, Recency{})
	require.NoError(t, err)

	// A brick bigger than the hub must still load via a private buffer.
	big := volume.Dims{X: 16, Y: 16, Z: 16}
	ds2 := testutil.NewDataset("b.uvf", big).AddBrick(key(0), make([]byte, 4096))

	_, err = NewSlot(env, ds2, key(0), Flags{}, Recency{})
	require.NoError(t, err)
	assert.Equal(t, 2, drv.Live())
}

func TestNewSlotPadsToPow2(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 0)

	dims := volume.Dims{X: 5, Y: 5, Z: 5}
	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), make([]byte, dims.VoxelCount()))

	s, err := NewSlot(env, ds, key(0), Flags{PadPow2: true}, Recency{})
	require.NoError(t, err)

	tex := s.Texture().(*testutil.Texture)
	assert.Equal(t, uint32(8), tex.Desc.Width)
	assert.Equal(t, uint32(8), tex.Desc.Height)
	assert.Equal(t, uint32(8), tex.Desc.Depth)
	assert.Equal(t, int64(512), env.Res.MemoryUsage())
}

func TestNewSlotDownsamples16To8(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 0)

	dims := volume.Dims{X: 2, Y: 1, Z: 1}
	raw := make([]byte, 4)
	binary.NativeEndian.PutUint16(raw[0:], 0)
	binary.NativeEndian.PutUint16(raw[2:], 4095)

	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), raw)
	ds.Width = 16
	ds.Max = 4095

	s, err := NewSlot(env, ds, key(0), Flags{Downsample8: true}, Recency{})
	require.NoError(t, err)

	tex := s.Texture().(*testutil.Texture)
	assert.Equal(t, gpu.SampleUint8, tex.Desc.Type)
	assert.Equal(t, []byte{0, 255}, tex.Data)
}

func TestNewSlotSwapsForeignEndianness(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 0)

	dims := volume.Dims{X: 1, Y: 1, Z: 1}
	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), []byte{0x12, 0x34})
	ds.Width = 16
	ds.BigEndian = true

	s, err := NewSlot(env, ds, key(0), Flags{}, Recency{})
	require.NoError(t, err)

	tex := s.Texture().(*testutil.Texture)
	assert.Equal(t, []byte{0x34, 0x12}, tex.Data)
	assert.Equal(t, gpu.SampleUint16, tex.Desc.Type)
}

func TestNewSlotFailures(t *testing.T) {
	dims := volume.Dims{X: 2, Y: 2, Z: 2}

	t.Run("read failure", func(t *testing.T) {
		drv := testutil.NewDriver()
		env := testEnv(drv, 0)
		ds := testutil.NewDataset("a.uvf", dims)
		ds.FailReads = true

		_, err := NewSlot(env, ds, key(0), Flags{}, Recency{})
		var re *BrickReadError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, 0, drv.Live())
		assert.Equal(t, int64(0), env.Res.MemoryUsage())
	})

	t.Run("unsupported component count", func(t *testing.T) {
		drv := testutil.NewDriver()
		env := testEnv(drv, 0)
		ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), make([]byte, 16))
		ds.Components = 2

		_, err := NewSlot(env, ds, key(0), Flags{}, Recency{})
		require.Error(t, err)
		assert.Equal(t, 0, drv.Live())
	})

	t.Run("driver create failure", func(t *testing.T) {
		drv := testutil.NewDriver()
		drv.FailCreate = true
		env := testEnv(drv, 0)
		ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), make([]byte, 8))

		_, err := NewSlot(env, ds, key(0), Flags{}, Recency{})
		var ae *AllocationError
		require.ErrorAs(t, err, &ae)
		assert.Equal(t, int64(0), env.Res.MemoryUsage(), "failed create releases its reservation")
	})

	t.Run("memory limit exceeded", func(t *testing.T) {
		drv := testutil.NewDriver()
		env := testEnv(drv, 0)
		env.Res = resource.NewController(resource.Config{GPUMemoryLimitBytes: 4})
		ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), make([]byte, 8))

		_, err := NewSlot(env, ds, key(0), Flags{}, Recency{})
		var ae *AllocationError
		require.ErrorAs(t, err, &ae)
		require.ErrorIs(t, err, resource.ErrGPUMemoryLimitExceeded)
		assert.Equal(t, 0, drv.Live())
	})
}

func TestSlotMatches(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 0)

	dims := volume.Dims{X: 2, Y: 2, Z: 2}
	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), make([]byte, 8))
	other := testutil.NewDataset("b.uvf", dims).AddBrick(key(0), make([]byte, 8))

	s, err := NewSlot(env, ds, key(0), Flags{PadPow2: true}, Recency{})
	require.NoError(t, err)

	assert.True(t, s.Matches(ds, key(0), Flags{PadPow2: true}))
	assert.False(t, s.Matches(ds, key(1), Flags{PadPow2: true}), "different key")
	assert.False(t, s.Matches(other, key(0), Flags{PadPow2: true}), "different dataset")
	assert.False(t, s.Matches(ds, key(0), Flags{}), "different flags")
}

func TestSlotEvictionCandidate(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 0)

	dims := volume.Dims{X: 2, Y: 2, Z: 2}
	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), make([]byte, 8))

	rec := Recency{Frame: 3, Intra: 7}
	s, err := NewSlot(env, ds, key(0), Flags{}, rec)
	require.NoError(t, err)

	// In use: not a candidate.
	_, ok := s.EvictionCandidate(dims, Flags{})
	assert.False(t, ok, "slot with outstanding grant is not evictable")

	require.True(t, s.Release())
	got, ok := s.EvictionCandidate(dims, Flags{})
	require.True(t, ok)
	assert.Equal(t, rec, got)

	_, ok = s.EvictionCandidate(volume.Dims{X: 4, Y: 2, Z: 2}, Flags{})
	assert.False(t, ok, "dimension mismatch")

	_, ok = s.EvictionCandidate(dims, Flags{Downsample8: true})
	assert.False(t, ok, "flag mismatch")
}

func TestSlotRepurposeReusesTexture(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 0)

	dims := volume.Dims{X: 2, Y: 2, Z: 2}
	a := testutil.NewRNG(1).Brick(8)
	b := testutil.NewRNG(2).Brick(8)
	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), a).AddBrick(key(1), b)

	s, err := NewSlot(env, ds, key(0), Flags{}, Recency{Frame: 1})
	require.NoError(t, err)
	tex := s.Texture().(*testutil.Texture)
	require.True(t, s.Release())

	err = s.Repurpose(env, ds, key(1), Flags{}, Recency{Frame: 2})
	require.NoError(t, err)

	assert.Same(t, tex, s.Texture().(*testutil.Texture), "texture object reused in place")
	assert.Equal(t, b, tex.Data)
	assert.Equal(t, 1, tex.Uploads)
	assert.Equal(t, 1, s.Users(), "repurpose grants one use")
	assert.Equal(t, key(1), s.Key())
	assert.Equal(t, 1, len(drv.Created), "no reallocation")
	assert.Equal(t, int64(8), env.Res.MemoryUsage(), "usage flat across repurpose")
}

func TestSlotRepurposeFailureReleasesTexture(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 0)

	dims := volume.Dims{X: 2, Y: 2, Z: 2}
	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), make([]byte, 8))

	s, err := NewSlot(env, ds, key(0), Flags{}, Recency{})
	require.NoError(t, err)
	require.True(t, s.Release())

	ds.FailReads = true
	err = s.Repurpose(env, ds, key(1), Flags{}, Recency{})
	require.Error(t, err)

	assert.Nil(t, s.Texture(), "no handle left in undefined state")
	assert.Equal(t, 0, drv.Live())
	assert.Equal(t, int64(0), env.Res.MemoryUsage())
}

func TestSlotAccessAndRelease(t *testing.T) {
	drv := testutil.NewDriver()
	env := testEnv(drv, 0)

	dims := volume.Dims{X: 2, Y: 2, Z: 2}
	ds := testutil.NewDataset("a.uvf", dims).AddBrick(key(0), make([]byte, 8))

	s, err := NewSlot(env, ds, key(0), Flags{}, Recency{Frame: 1, Intra: 1})
	require.NoError(t, err)

	tex := s.Access(Recency{Frame: 2, Intra: 5})
	assert.NotNil(t, tex)
	assert.Equal(t, 2, s.Users())
	assert.Equal(t, Recency{Frame: 2, Intra: 5}, s.LastTouched())

	assert.True(t, s.Release())
	assert.True(t, s.Release())
	assert.False(t, s.Release(), "unbalanced release reports false")
	assert.Equal(t, 0, s.Users())
}
