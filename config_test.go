package ordkv

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "ordkv.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
dir: /var/lib/ordkv
engine: pebble
sync_writes: true
gc_reclaim_interval: 10m
gc_discard_ratio: 0.7
bloom_expected_keys: 1000
bloom_false_positive_rate: 0.001
sweep_interval: 30s
`)

	c, err := LoadConfig(path)
	require.NoError(t, err)
	require.Equal(t, PersistentConfig{
		Dir:                    "/var/lib/ordkv",
		Engine:                 EnginePebble,
		SyncWrites:             true,
		GCReclaimInterval:      10 * time.Minute,
		GCDiscardRatio:         0.7,
		BloomExpectedKeys:      1000,
		BloomFalsePositiveRate: 0.001,
		SweepInterval:          30 * time.Second,
	}, c)
}

func TestLoadConfigDefaults(t *testing.T) {
	c, err := LoadConfig(writeConfig(t, "dir: data\n"))
	require.NoError(t, err)

	c = c.withDefaults()
	require.Equal(t, "data", c.Dir)
	require.Equal(t, EngineBadger, c.Engine)
	require.Equal(t, GCReclaimIntervalDefault, c.GCReclaimInterval)
	require.Equal(t, GCDiscardRatioDefault, c.GCDiscardRatio)
	require.Equal(t, BloomExpectedKeysDefault, c.BloomExpectedKeys)
	require.Equal(t, BloomFalsePositiveRateDefault, c.BloomFalsePositiveRate)
	require.Equal(t, SweepIntervalDefault, c.SweepInterval)
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadConfig(writeConfig(t, "engine: leveldb\n"))
	require.ErrorIs(t, err, ErrUnknownEngine)

	_, err = LoadConfig(writeConfig(t, "sweep_interval: soon\n"))
	require.Error(t, err)
}

func TestMemoryConfigDefaults(t *testing.T) {
	c := MemoryConfig{SweepInterval: -1}.withDefaults()
	require.Equal(t, BTreeDegreeDefault, c.Degree)
	require.Equal(t, time.Duration(-1), c.SweepInterval)
	require.Equal(t, BloomExpectedKeysDefault, c.BloomExpectedKeys)
}

func TestOpenOptions(t *testing.T) {
	_, err := defaultOpenOptions().apply([]OpenOption{WithClock(nil)})
	require.Error(t, err)

	_, err = defaultOpenOptions().apply([]OpenOption{WithComparator(nil)})
	require.Error(t, err)
}
