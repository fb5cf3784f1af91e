package compiler

import (
	"github.com/corebackend/backend/pkg/clog"
	"github.com/corebackend/backend/pkg/config"
	"github.com/corebackend/backend/pkg/vm"
)

// Compilation is the explicit context the design notes ask for in
// place of a process-wide singleton: it carries the one resource
// spec.md's concurrency section says must be shared and
// caller-serialized across a run (the machine-code collection) plus
// the memory pools that back every installed function, and nothing
// else. Callers create one Compilation per independent unit of work;
// Pipeline.Run never reaches for global state of its own.
type Compilation struct {
	MachineCode *vm.MachineCodeCollection
	CodePool    *vm.MemoryPool
	DataPool    *vm.MemoryPool
	Logger      clog.Logger
}

// NewCompilation allocates the pools named in cfg and an empty
// machine-code collection. cfg's CodePoolSegmentSize/DataPoolSegmentSize
// are validated but not yet otherwise consulted: pkg/vm.NewMemoryPool
// always seeds a one-byte first segment and sizes every later one to
// the request that outgrew the chain, so there is no constructor hook
// for a preferred segment size to land in without changing that
// package's own sizing policy. The fields stay on PipelineConfig as
// the documented tuning knob for when that hook is added.
func NewCompilation(cfg *config.PipelineConfig, logger clog.Logger) (*Compilation, error) {
	if logger == nil {
		logger = &clog.NullLogger{}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	codePool, err := vm.NewMemoryPool(vm.KindCode, vm.DefaultAlignment)
	if err != nil {
		return nil, err
	}
	dataPool, err := vm.NewMemoryPool(vm.KindData, vm.DefaultAlignment)
	if err != nil {
		return nil, err
	}
	return &Compilation{
		MachineCode: vm.NewMachineCodeCollection(),
		CodePool:    codePool,
		DataPool:    dataPool,
		Logger:      logger,
	}, nil
}

// Close releases both pools' virtual-memory reservations. Installed
// functions become invalid the moment Close returns; there is no
// per-function unloader, matching spec.md's "executable memory is the
// only non-arena resource, released as a whole at teardown."
func (c *Compilation) Close() error {
	if err := c.CodePool.Close(); err != nil {
		return err
	}
	return c.DataPool.Close()
}
