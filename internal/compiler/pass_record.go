// Package compiler wires every analysis and transform package into one
// ordered pipeline and owns the state elang kept at process scope —
// the installed-function collection and the executable/data memory
// pools — inside an explicit Compilation value instead, following the
// design note against process-wide singletons.
package compiler

import (
	"fmt"
	"time"
)

// PassRecord times one pipeline phase, ported from
// elang/shell/pass_record.{h,cc}. The header's declared constructor
// (PassRecord(name)) and the .cc's actual one (PassRecord(depth, name),
// with an undeclared depth_ field) disagree; the header is followed
// here as authoritative and depth is dropped, since nothing downstream
// of pass_record.cc ever reads it back out.
type PassRecord struct {
	name    string
	startAt time.Time
	endAt   time.Time
}

// NewPassRecord returns a record for the named phase, not yet started.
func NewPassRecord(name string) *PassRecord {
	return &PassRecord{name: name}
}

// Name returns the phase name the record was created with.
func (p *PassRecord) Name() string { return p.name }

// Start marks the phase as beginning now. Calling it twice without an
// intervening End is a programmer error, mirroring StartMetrics's
// DCHECK that both timestamps start unset.
func (p *PassRecord) Start() {
	if !p.startAt.IsZero() {
		panic(fmt.Sprintf("compiler: PassRecord %q started twice", p.name))
	}
	p.startAt = time.Now()
}

// End marks the phase as finished now. Calling it before Start, or
// twice, is a programmer error, mirroring EndMetrics's DCHECKs.
func (p *PassRecord) End() {
	if p.startAt.IsZero() {
		panic(fmt.Sprintf("compiler: PassRecord %q ended before it started", p.name))
	}
	if !p.endAt.IsZero() {
		panic(fmt.Sprintf("compiler: PassRecord %q ended twice", p.name))
	}
	p.endAt = time.Now()
}

// Duration returns the elapsed time between Start and End. Calling it
// before both have run is a programmer error, mirroring duration()'s
// DCHECKs.
func (p *PassRecord) Duration() time.Duration {
	if p.startAt.IsZero() || p.endAt.IsZero() {
		panic(fmt.Sprintf("compiler: PassRecord %q duration read before it finished", p.name))
	}
	return p.endAt.Sub(p.startAt)
}
