package solver

import (
	"maps"
	"runtime"
	"slices"
	"time"

	"lp_colgen/src/triad"
)

// Point is a moment of the solving sequence where callbacks run.
type Point int

const (
	AfterModeling Point = iota
	Configuration
	AnalyzingSolution
	AfterFailure
)

// CallBack receives the backend's native model (for example *Problem for
// the simplex backend or *highs.Model for HiGHS) and the triad being solved.
type CallBack func(native any, m *triad.Model) error

type Config struct {
	TimeLimit time.Duration
	Gap       float64
	Threads   int
	// IntermediateConcurrent and MechanismConcurrent drive triad builds done
	// on behalf of the caller (column generation, IIS).
	IntermediateConcurrent bool
	MechanismConcurrent    bool
	// SolutionAmount > 1 requests a solution pool of at most that size.
	SolutionAmount int
	// Duals requests row dual values of a continuous model.
	Duals bool
	// ExportDir, when set, receives an LP file of every dumped model.
	ExportDir string
	Extra     map[string]any

	callBacks map[Point][]CallBack
}

type Option func(*Config)

func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		Gap:     1e-4,
		Threads: runtime.NumCPU(),
		Extra:   make(map[string]any),
	}
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// With returns a copy of cfg with opts applied.
func (cfg *Config) With(opts ...Option) *Config {
	c := *cfg
	c.Extra = maps.Clone(cfg.Extra)
	if c.Extra == nil {
		c.Extra = make(map[string]any)
	}
	c.callBacks = make(map[Point][]CallBack, len(cfg.callBacks))
	for p, cbs := range cfg.callBacks {
		c.callBacks[p] = slices.Clone(cbs)
	}
	for _, o := range opts {
		o(&c)
	}
	return &c
}

func (cfg *Config) BuildConfig() triad.BuildConfig {
	return triad.BuildConfig{
		Concurrent:          cfg.IntermediateConcurrent,
		MechanismConcurrent: cfg.MechanismConcurrent,
	}
}

func WithTimeLimit(d time.Duration) Option {
	return func(c *Config) { c.TimeLimit = d }
}

func WithGap(gap float64) Option {
	return func(c *Config) { c.Gap = gap }
}

func WithThreads(n int) Option {
	return func(c *Config) { c.Threads = n }
}

func WithConcurrentIntermediateDump(on bool) Option {
	return func(c *Config) { c.IntermediateConcurrent = on }
}

func WithConcurrentMechanismDump(on bool) Option {
	return func(c *Config) { c.MechanismConcurrent = on }
}

func WithSolutionAmount(n int) Option {
	return func(c *Config) { c.SolutionAmount = n }
}

func WithDuals(on bool) Option {
	return func(c *Config) { c.Duals = on }
}

func WithExport(dir string) Option {
	return func(c *Config) { c.ExportDir = dir }
}

// WithExtra sets a backend specific parameter.
func WithExtra(key string, value any) Option {
	return func(c *Config) {
		if c.Extra == nil {
			c.Extra = make(map[string]any)
		}
		c.Extra[key] = value
	}
}

// WithCallBack chains fn after the callbacks already registered at p.
func WithCallBack(p Point, fn CallBack) Option {
	return func(c *Config) {
		if c.callBacks == nil {
			c.callBacks = make(map[Point][]CallBack)
		}
		c.callBacks[p] = append(c.callBacks[p], fn)
	}
}

func (cfg *Config) runCallBacks(p Point, native any, m *triad.Model) error {
	for _, cb := range cfg.callBacks[p] {
		if err := cb(native, m); err != nil {
			return err
		}
	}
	return nil
}

func ExtraFloat(cfg *Config, key string, def float64) float64 {
	switch v := cfg.Extra[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return def
}

func ExtraInt(cfg *Config, key string, def int) int {
	switch v := cfg.Extra[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return def
}

func ExtraBool(cfg *Config, key string, def bool) bool {
	if v, ok := cfg.Extra[key].(bool); ok {
		return v
	}
	return def
}
