package session

import (
	"flag"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/grafana/pf2/pkg/model"
	"github.com/grafana/pf2/pkg/sampler"
)

const (
	DefaultInterval       = 9 * time.Millisecond
	DefaultMaxDepth       = 200
	DefaultMaxNativeDepth = 300

	// MaxDepthCeiling and MaxNativeDepthCeiling bound the stack buffers of the
	// capture engine.
	MaxDepthCeiling       = 1024
	MaxNativeDepthCeiling = 512
)

type Config struct {
	Interval       time.Duration         `yaml:"interval"`
	TimeMode       sampler.TimeMode      `yaml:"time_mode"`
	Scheduler      sampler.SchedulerKind `yaml:"scheduler"`
	MaxDepth       int                   `yaml:"max_depth"`
	MaxNativeDepth int                   `yaml:"max_native_depth"`
	// Threads to sample. All live threads when empty.
	Threads    []model.ThreadID `yaml:"threads,omitempty"`
	BufferSize int              `yaml:"buffer_size"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Interval:       DefaultInterval,
		TimeMode:       sampler.CPUTime,
		Scheduler:      sampler.SignalScheduler,
		MaxDepth:       DefaultMaxDepth,
		MaxNativeDepth: DefaultMaxNativeDepth,
		BufferSize:     sampler.DefaultBufferSize,
	}
}

// RegisterFlags registers the flags.
func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	cfg.RegisterFlagsWithPrefix("", f)
}

func (cfg *Config) RegisterFlagsWithPrefix(prefix string, f *flag.FlagSet) {
	d := DefaultConfig()
	cfg.TimeMode = d.TimeMode
	cfg.Scheduler = d.Scheduler
	f.DurationVar(&cfg.Interval, prefix+"interval", d.Interval, "Sampling interval.")
	f.Var(&cfg.TimeMode, prefix+"time-mode", "Clock driving the sampling interval: cpu or wall.")
	f.Var(&cfg.Scheduler, prefix+"scheduler", "What triggers captures: signal or timer_thread.")
	f.IntVar(&cfg.MaxDepth, prefix+"max-depth", d.MaxDepth, "Maximum number of interpreted frames kept per sample.")
	f.IntVar(&cfg.MaxNativeDepth, prefix+"max-native-depth", d.MaxNativeDepth, "Maximum number of native frames kept per sample.")
	f.IntVar(&cfg.BufferSize, prefix+"buffer-size", d.BufferSize, "Number of captured samples waiting for collection before captures are dropped.")
}

// Validate reports the first invalid setting as a *ConfigurationError.
func (cfg *Config) Validate() error {
	switch {
	case cfg.Interval <= 0:
		return configErrorf("interval", "must be positive, got %s", cfg.Interval)
	case cfg.TimeMode != sampler.CPUTime && cfg.TimeMode != sampler.WallTime:
		return configErrorf("time_mode", "unknown value %s", cfg.TimeMode)
	case cfg.Scheduler != sampler.SignalScheduler && cfg.Scheduler != sampler.TimerThreadScheduler:
		return configErrorf("scheduler", "unknown value %s", cfg.Scheduler)
	case cfg.MaxDepth < 1 || cfg.MaxDepth > MaxDepthCeiling:
		return configErrorf("max_depth", "must be between 1 and %d, got %d", MaxDepthCeiling, cfg.MaxDepth)
	case cfg.MaxNativeDepth < 1 || cfg.MaxNativeDepth > MaxNativeDepthCeiling:
		return configErrorf("max_native_depth", "must be between 1 and %d, got %d", MaxNativeDepthCeiling, cfg.MaxNativeDepth)
	case cfg.BufferSize < 0:
		return configErrorf("buffer_size", "must not be negative, got %d", cfg.BufferSize)
	}
	if cfg.Scheduler == sampler.TimerThreadScheduler {
		if cfg.TimeMode == sampler.CPUTime {
			return configErrorf("time_mode", "cpu time mode is not supported by the timer_thread scheduler")
		}
		if len(cfg.Threads) == 0 {
			return configErrorf("threads", "the timer_thread scheduler requires an explicit list of threads")
		}
	}
	return nil
}

func (cfg *Config) samplerConfig() sampler.Config {
	var threads []model.ThreadID
	if len(cfg.Threads) > 0 {
		threads = append(threads, cfg.Threads...)
	}
	return sampler.Config{
		Interval:  cfg.Interval,
		Scheduler: cfg.Scheduler,
		Limits: sampler.Limits{
			MaxDepth:       cfg.MaxDepth,
			MaxNativeDepth: cfg.MaxNativeDepth,
			TimeMode:       cfg.TimeMode,
		},
		Threads:    threads,
		BufferSize: cfg.BufferSize,
	}
}

// LoadConfig reads a YAML file over the defaults and validates the result.
func LoadConfig(fs afero.Fs, path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return cfg, errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, &ConfigurationError{Field: path, Reason: err.Error()}
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}
