// Package asmsize implements the size/address iteration pass (spec.md
// C5 / §4.5): offsets determine instruction sizes and sizes determine
// offsets, so the assembler walks the code buffer to a fixed point.
// Grounded on the teacher's parser/parser.go
// adjustAddressesForDynamicPools iterative literal-pool sizing,
// generalized to ForwardCom's per-instruction admissible-width
// refitting; the convergence bound follows
// original_source/assem4.cpp's maxOptiPass.
package asmsize

import (
	"github.com/ForwardCom/bintools/internal/elf2"
	"github.com/ForwardCom/bintools/internal/fit"
)

// MaxPasses bounds the iteration (spec.md §4.5).
const MaxPasses = 10

// Section groups the Code records belonging to one elf2 section in
// program order.
type Section struct {
	Header *elf2.SectionHeader
	Codes  []*fit.Code
}

// Refitter recomputes a single instruction's width given its current
// address, returning whether its size changed and whether its fit is
// still uncertain this pass (an unresolved forward/external symbol
// whose possible displacement straddles a width boundary). When
// forceLarge is set the refitter must freeze any uncertain instruction
// to its largest admissible form (spec.md §4.5).
type Refitter func(code *fit.Code, address uint32, forceLarge bool) (changed bool, uncertain bool)

// Result reports how the iteration concluded.
type Result struct {
	Passes      int
	Converged   bool
	ForcedLarge bool
}

// Run performs the pass loop described in spec.md §4.5: recompute
// every instruction's size in section order, accumulate a running
// address per section, and track sh_link (reused as the per-section
// uncertain-instruction scratch count) plus the pass-level
// totalUncertain. It terminates when a pass makes no changes and
// leaves no uncertainty, or after two further passes once only
// uncertainty remains; on the next-to-last pass every remaining
// uncertain instruction is forced to its largest form to guarantee
// termination.
func Run(sections []Section, refit Refitter) Result {
	uncertainOnlyStreak := 0

	for pass := 1; pass <= MaxPasses; pass++ {
		changes := 0
		totalUncertain := 0
		forceLarge := pass >= MaxPasses-1

		for _, sec := range sections {
			var addr uint32
			uncertainInSection := 0
			for _, code := range sec.Codes {
				code.Address = addr
				changed, uncertain := refit(code, addr, forceLarge)
				if changed {
					changes++
				}
				if uncertain {
					uncertainInSection++
					code.SizeUnknown = 1
				} else {
					code.SizeUnknown = 0
				}
				addr += uint32(code.Size) * 4
			}
			if sec.Header != nil {
				sec.Header.Link = uint32(uncertainInSection)
				sec.Header.Size = uint64(addr)
			}
			totalUncertain += uncertainInSection
		}

		if changes == 0 && totalUncertain == 0 {
			return Result{Passes: pass, Converged: true, ForcedLarge: forceLarge}
		}
		if changes == 0 && totalUncertain > 0 {
			uncertainOnlyStreak++
			if uncertainOnlyStreak >= 2 {
				return Result{Passes: pass, Converged: true, ForcedLarge: forceLarge}
			}
		} else {
			uncertainOnlyStreak = 0
		}
	}
	return Result{Passes: MaxPasses, Converged: false, ForcedLarge: true}
}

// Uncertainty packs the worst-case magnitude of an unknown displacement
// into a symbol's high 32 value bits (spec.md §4.5 "Correctness"),
// using elf2.Symbol's existing Value packing.
func Uncertainty(sym *elf2.Symbol, magnitude uint32) {
	sym.SetUncertainty(magnitude)
}
