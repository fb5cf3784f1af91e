package compiler

import (
	"context"
	"fmt"

	apperrors "github.com/corebackend/backend/pkg/errors"

	"github.com/corebackend/backend/pkg/clog"
	"github.com/corebackend/backend/pkg/codegen"
	"github.com/corebackend/backend/pkg/conflictmap"
	"github.com/corebackend/backend/pkg/critedge"
	"github.com/corebackend/backend/pkg/lir"
	"github.com/corebackend/backend/pkg/liveness"
	"github.com/corebackend/backend/pkg/regalloc"
	"github.com/corebackend/backend/pkg/telemetry"
	"github.com/corebackend/backend/pkg/usedef"
	"github.com/corebackend/backend/pkg/vm"
)

// Pipeline threads one LIR function through every transform and
// analysis package in the fixed order spec.md §4 lays the components
// out in: critical-edge removal, liveness, conflict-map construction,
// register allocation, machine-code emission, and installation. It
// replaces the ad-hoc driver elang's own shell/compiler.cc assembles
// from PassRecord-timed steps with one Go type that owns nothing of
// its own beyond a Compilation and the register classes to allocate
// from.
type Pipeline struct {
	comp    *Compilation
	classes regalloc.Classes
}

// NewPipeline returns a Pipeline that installs into comp's machine-code
// collection and code pool, allocating from classes.
func NewPipeline(comp *Compilation, classes regalloc.Classes) *Pipeline {
	return &Pipeline{comp: comp, classes: classes}
}

// Result is everything a completed Run produced, kept together so a
// caller (a regression test, or cmd/corebackend's --dump-asm/--dump-lir
// flags) can inspect any intermediate stage without re-running it.
type Result struct {
	Function    *lir.Function
	Liveness    *liveness.Collection[*lir.BasicBlock, lir.Value]
	ConflictMap *conflictmap.Map
	Assignments *regalloc.Assignments
	Builder     *codegen.Builder
	Installed   *vm.MachineCodeFunction
	Passes      []*PassRecord
}

// Run lowers f to machine code and installs it under name in the
// pipeline's Compilation, returning every intermediate artifact. f
// must be a well-formed LIR function. Run checks it structurally once,
// through lir.Validate (Editor.Commit) after critical-edge splitting;
// beyond that it relies on what regalloc.CheckConflicts catches as a
// side effect of allocation.
//
// Each phase is wrapped in its own telemetry span (named for the
// phase, e.g. "liveness", "register-allocation") and its own
// PassRecord, logged at Debug once the phase ends.
func (p *Pipeline) Run(ctx context.Context, name string, f *lir.Function) (*Result, error) {
	result := &Result{Function: f}

	if err := p.runPhase(ctx, result, "critical-edge-split", func() error {
		editor := lir.NewEditor(f)
		critedge.Run(editor, f)
		return editor.Commit()
	}); err != nil {
		return nil, err
	}

	var live *liveness.Collection[*lir.BasicBlock, lir.Value]
	if err := p.runPhase(ctx, result, "liveness", func() error {
		vars := collectVirtualRegisters(f)
		live = liveness.NewCollection[*lir.BasicBlock, lir.Value](f.BasicBlocks(), vars)
		liveness.SolveBackward(f.Graph(), live)
		return nil
	}); err != nil {
		return nil, err
	}
	result.Liveness = live

	if err := p.runPhase(ctx, result, "conflict-map", func() error {
		result.ConflictMap = conflictmap.Build(f, live)
		return nil
	}); err != nil {
		return nil, err
	}

	var assignments *regalloc.Assignments
	if err := p.runPhase(ctx, result, "register-allocation", func() error {
		uses := usedef.Build(f)
		assignments = regalloc.Run(f, live, uses, p.classes)
		if err := regalloc.CheckConflicts(f, live, assignments); err != nil {
			return apperrors.Wrap(apperrors.CodeInvariantViolation, "register allocation produced conflicting assignment", err).WithPhase("register-allocation")
		}
		return nil
	}); err != nil {
		return nil, err
	}
	result.Assignments = assignments

	var builder *codegen.Builder
	if err := p.runPhase(ctx, result, "code-emission", func() error {
		var err error
		builder, err = codegen.NewEmitter(f, assignments).Emit()
		if err != nil {
			return apperrors.Wrap(apperrors.CodeEncodingFailure, "machine-code emission failed", err).WithPhase("code-emission")
		}
		return nil
	}); err != nil {
		return nil, err
	}
	result.Builder = builder

	var installed *vm.MachineCodeFunction
	if err := p.runPhase(ctx, result, "install", func() error {
		var err error
		installed, err = vm.Install(p.comp.CodePool, builder.Bytes(), builder.Annotations())
		if err != nil {
			return apperrors.Wrap(apperrors.CodeResourceExhausted, "machine-code installation failed", err).WithPhase("install")
		}
		return p.comp.MachineCode.Install(name, installed)
	}); err != nil {
		return nil, err
	}
	result.Installed = installed

	return result, nil
}

// runPhase wraps fn in a telemetry span and a PassRecord, logging the
// phase's duration at Debug once it returns. A phase's own error is
// returned unwrapped; runPhase never mints its own error kind.
func (p *Pipeline) runPhase(ctx context.Context, result *Result, phase string, fn func() error) error {
	_, span := telemetry.StartPhase(ctx, phase)
	defer span.End()

	rec := NewPassRecord(phase)
	rec.Start()
	err := fn()
	rec.End()
	result.Passes = append(result.Passes, rec)

	logger := p.comp.Logger
	if logger == nil {
		logger = &clog.NullLogger{}
	}
	if err != nil {
		logger.WithField("phase", phase).Error(fmt.Sprintf("phase failed: %v", err))
		return err
	}
	logger.WithFields(map[string]interface{}{
		"phase":    phase,
		"duration": rec.Duration().String(),
	}).Debug("phase complete")
	return nil
}

// collectVirtualRegisters returns every distinct virtual register f's
// phis and instructions reference, in first-seen order walking blocks
// in their function-assigned order — liveness.NewCollection only needs
// a stable, complete var list, not any particular one, so first-seen
// order is as good as any and cheaper than sorting by register number.
func collectVirtualRegisters(f *lir.Function) []lir.Value {
	seen := make(map[lir.Value]bool)
	var vars []lir.Value
	record := func(v lir.Value) {
		if v.IsVirtual() && !seen[v] {
			seen[v] = true
			vars = append(vars, v)
		}
	}
	for _, block := range f.BasicBlocks() {
		for _, inst := range block.All() {
			for _, out := range inst.Outputs {
				record(out)
			}
			for _, in := range inst.Inputs {
				record(in)
			}
			for _, phiIn := range inst.PhiInputs {
				record(phiIn.Value)
			}
		}
	}
	return vars
}
