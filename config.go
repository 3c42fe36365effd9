package ordkv

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/ostafen/ordkv/internal/keyrange"
	"github.com/ostafen/ordkv/serial"
	"github.com/rs/zerolog"
)

const (
	GCReclaimIntervalDefault      = time.Minute * 5
	GCDiscardRatioDefault         = 0.5
	SweepIntervalDefault          = time.Minute
	BloomExpectedKeysDefault      = 1 << 16
	BloomFalsePositiveRateDefault = 0.01
	BTreeDegreeDefault            = 32
)

// Engine selects the storage engine behind a persistent collection.
type Engine string

const (
	EngineBadger Engine = "badger"
	EngineBbolt  Engine = "bbolt"
	EnginePebble Engine = "pebble"
)

// MemoryConfig configures a collection held entirely in memory. Zero fields
// take their default.
type MemoryConfig struct {
	Degree                 int
	BloomExpectedKeys      int
	BloomFalsePositiveRate float64
	// SweepInterval is how often expired entries are reclaimed. A negative
	// value disables the sweeper.
	SweepInterval time.Duration
}

func (c MemoryConfig) withDefaults() MemoryConfig {
	if c.Degree < 2 {
		c.Degree = BTreeDegreeDefault
	}
	c.BloomExpectedKeys, c.BloomFalsePositiveRate = bloomDefaults(c.BloomExpectedKeys, c.BloomFalsePositiveRate)
	if c.SweepInterval == 0 {
		c.SweepInterval = SweepIntervalDefault
	}
	return c
}

// PersistentConfig configures a collection stored in Dir. Zero fields take
// their default.
type PersistentConfig struct {
	Dir        string
	Engine     Engine
	SyncWrites bool

	// GCReclaimInterval and GCDiscardRatio tune badger's value log GC.
	GCReclaimInterval time.Duration
	GCDiscardRatio    float64

	BloomExpectedKeys      int
	BloomFalsePositiveRate float64
	// SweepInterval is how often expired entries are reclaimed on engines
	// without native TTL. A negative value disables the sweeper.
	SweepInterval time.Duration
}

func (c PersistentConfig) withDefaults() PersistentConfig {
	if c.Engine == "" {
		c.Engine = EngineBadger
	}
	if c.GCReclaimInterval <= 0 {
		c.GCReclaimInterval = GCReclaimIntervalDefault
	}
	if c.GCDiscardRatio <= 0 || c.GCDiscardRatio >= 1 {
		c.GCDiscardRatio = GCDiscardRatioDefault
	}
	c.BloomExpectedKeys, c.BloomFalsePositiveRate = bloomDefaults(c.BloomExpectedKeys, c.BloomFalsePositiveRate)
	if c.SweepInterval == 0 {
		c.SweepInterval = SweepIntervalDefault
	}
	return c
}

func bloomDefaults(n int, fp float64) (int, float64) {
	if n <= 0 {
		n = BloomExpectedKeysDefault
	}
	if fp <= 0 || fp >= 1 {
		fp = BloomFalsePositiveRateDefault
	}
	return n, fp
}

type configFile struct {
	Dir                    string  `yaml:"dir"`
	Engine                 string  `yaml:"engine"`
	SyncWrites             bool    `yaml:"sync_writes"`
	GCReclaimInterval      string  `yaml:"gc_reclaim_interval"`
	GCDiscardRatio         float64 `yaml:"gc_discard_ratio"`
	BloomExpectedKeys      int     `yaml:"bloom_expected_keys"`
	BloomFalsePositiveRate float64 `yaml:"bloom_false_positive_rate"`
	SweepInterval          string  `yaml:"sweep_interval"`
}

// LoadConfig reads a PersistentConfig from a YAML file. Durations are written
// the way time.ParseDuration expects them ("90s", "5m").
func LoadConfig(path string) (PersistentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PersistentConfig{}, err
	}

	var f configFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return PersistentConfig{}, fmt.Errorf("parse %s: %w", path, err)
	}

	c := PersistentConfig{
		Dir:                    f.Dir,
		Engine:                 Engine(f.Engine),
		SyncWrites:             f.SyncWrites,
		GCDiscardRatio:         f.GCDiscardRatio,
		BloomExpectedKeys:      f.BloomExpectedKeys,
		BloomFalsePositiveRate: f.BloomFalsePositiveRate,
	}

	if c.GCReclaimInterval, err = parseDuration("gc_reclaim_interval", f.GCReclaimInterval); err != nil {
		return PersistentConfig{}, err
	}
	if c.SweepInterval, err = parseDuration("sweep_interval", f.SweepInterval); err != nil {
		return PersistentConfig{}, err
	}

	switch c.Engine {
	case "", EngineBadger, EngineBbolt, EnginePebble:
	default:
		return PersistentConfig{}, fmt.Errorf("%w: %q", ErrUnknownEngine, c.Engine)
	}
	return c, nil
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return d, nil
}

type openOptions struct {
	log       zerolog.Logger
	clock     Clock
	cmp       keyrange.Compare
	customCmp bool
	keySerial any
	valSerial any
}

func defaultOpenOptions() *openOptions {
	return &openOptions{
		log:   zerolog.Nop(),
		clock: systemClock{},
		cmp:   keyrange.Bytewise,
	}
}

func (o *openOptions) apply(opts []OpenOption) (*openOptions, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// OpenOption is a function that takes the open options of a collection and
// modifies them.
type OpenOption func(o *openOptions) error

func WithLogger(log zerolog.Logger) OpenOption {
	return func(o *openOptions) error {
		o.log = log
		return nil
	}
}

// WithClock replaces the clock used to evaluate and assign deadlines.
func WithClock(c Clock) OpenOption {
	return func(o *openOptions) error {
		if c == nil {
			return fmt.Errorf("ordkv: nil clock")
		}
		o.clock = c
		return nil
	}
}

// WithComparator orders keys by cmp over their encoded bytes instead of
// bytewise. Only in-memory collections support it.
func WithComparator(cmp func(a, b []byte) int) OpenOption {
	return func(o *openOptions) error {
		if cmp == nil {
			return fmt.Errorf("ordkv: nil comparator")
		}
		o.cmp = cmp
		o.customCmp = true
		return nil
	}
}

func WithKeySerializer[K any](s serial.Serializer[K]) OpenOption {
	return func(o *openOptions) error {
		o.keySerial = s
		return nil
	}
}

func WithValueSerializer[V any](s serial.Serializer[V]) OpenOption {
	return func(o *openOptions) error {
		o.valSerial = s
		return nil
	}
}

func serializerFor[T any](s any) (serial.Serializer[T], error) {
	if s == nil {
		return serial.Default[T](), nil
	}
	typed, ok := s.(serial.Serializer[T])
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrSerializerType, s)
	}
	return typed, nil
}
