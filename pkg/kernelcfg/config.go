// Package kernelcfg loads and validates the thread core's startup
// configuration: the id cap, the per-thread stack size, and the selected
// scheduler policy. Concerns the core itself is silent on (§1/§9), carried
// here the way the teacher carries its own runsc/config.go.
package kernelcfg

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-multierror"

	"github.com/kidneyos-dev/kidneyos/pkg/kernel/idset"
)

// Policy names a scheduler policy selectable from configuration.
type Policy string

// The two policies pkg/kernel/sched implements.
const (
	PolicyFIFO     Policy = "fifo"
	PolicyPriority Policy = "priority"
)

// Config is the root of a kidneyosctl configuration file.
type Config struct {
	// IDCapacity bounds the number of simultaneously live threads.
	IDCapacity int `toml:"id_capacity"`

	// StackSize is the byte size allocated for each thread's stack.
	StackSize uint64 `toml:"stack_size"`

	// Policy selects the scheduler policy: "fifo" or "priority".
	Policy Policy `toml:"policy"`

	// QuantumTicks is the number of timer ticks a thread runs before
	// RoundRobinTicker preempts it.
	QuantumTicks int `toml:"quantum_ticks"`
}

// Default returns the configuration kidneyosctl uses when no file is
// given: matches idset.DefaultCapacity, a one-page stack, FIFO scheduling.
func Default() Config {
	return Config{
		IDCapacity:   idset.DefaultCapacity,
		StackSize:    4096,
		Policy:       PolicyFIFO,
		QuantumTicks: 4,
	}
}

// Load reads and parses a TOML configuration file, starting from Default
// and overriding only the fields the file sets.
func Load(path string) (Config, error) {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("kernelcfg: decode %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports every configuration problem it finds, not just the
// first, via a multierror -- the same aggregate-reporting shape the
// teacher's own config validation uses so an operator can fix every
// mistake in one pass instead of one error at a time.
func (c Config) Validate() error {
	var result *multierror.Error
	if c.IDCapacity <= 0 {
		result = multierror.Append(result, fmt.Errorf("kernelcfg: id_capacity must be positive, got %d", c.IDCapacity))
	}
	if c.StackSize == 0 {
		result = multierror.Append(result, fmt.Errorf("kernelcfg: stack_size must be positive"))
	} else if c.StackSize%4 != 0 {
		result = multierror.Append(result, fmt.Errorf("kernelcfg: stack_size must be word-aligned, got %d", c.StackSize))
	}
	if c.Policy != PolicyFIFO && c.Policy != PolicyPriority {
		result = multierror.Append(result, fmt.Errorf("kernelcfg: unknown policy %q", c.Policy))
	}
	if c.QuantumTicks <= 0 {
		result = multierror.Append(result, fmt.Errorf("kernelcfg: quantum_ticks must be positive, got %d", c.QuantumTicks))
	}
	return result.ErrorOrNil()
}
