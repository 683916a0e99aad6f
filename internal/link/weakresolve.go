package link

import "github.com/ForwardCom/bintools/internal/elf2"

// dummyClassOf classifies an unresolved weak symbol's Other bits into
// one of SynthesizeDummies's five section classes (spec.md §4.7/§4.8),
// sharing the same rule recordWeakDummyClass uses during the search
// pass.
func dummyClassOf(other uint32) string {
	switch {
	case other&elf2.STVIP != 0:
		return "ip-data"
	case other&elf2.STVDatap != 0:
		return "datap-data"
	case other&elf2.STVThreadp != 0:
		return "threadp-data"
	case other&elf2.STVExec != 0:
		return "function"
	default:
		return "const"
	}
}

// unresolvedWeakOnly returns, for every imported name that has no
// export and no surviving strong reference (SearchLibraries already
// failed the link if one did), one representative SymbolRef to classify
// it by.
func (l *Linker) unresolvedWeakOnly() map[string]SymbolRef {
	out := make(map[string]SymbolRef)
	for name, refs := range l.symbolImports {
		if _, ok := l.symbolExports[name]; ok {
			continue
		}
		for _, r := range refs {
			if !isWeak(r.Module.Container.Symbols[r.Index].Bind) {
				continue
			}
			if _, have := out[name]; !have {
				out[name] = r
			}
		}
	}
	return out
}

// ResolveWeakImports synthesizes one dummy section per pending weak
// class into dummy, adds one exported symbol per still-unresolved weak
// import bound to the matching dummy section, registers dummy as a
// module, and rebuilds the symbol tables so every weak import now
// resolves (spec.md §4.8 "Dummy sections"). Distinct datap-data
// references each get their own dummy slot, each appended to
// DummyAddresses.Data.
func (l *Linker) ResolveWeakImports(dummy *elf2.Container) DummyAddresses {
	names := l.unresolvedWeakOnly()
	dataSlots := 0
	for _, ref := range names {
		if dummyClassOf(ref.Module.Container.Symbols[ref.Index].Other) == "datap-data" {
			dataSlots++
		}
	}

	addrs := l.SynthesizeDummies(dummy, dataSlots)

	dataIdx := 0
	for _, name := range sortedKeys(names) {
		ref := names[name]
		class := dummyClassOf(ref.Module.Container.Symbols[ref.Index].Other)
		var sec uint32
		switch class {
		case "const":
			sec = addrs.Const
		case "ip-data":
			if len(addrs.Data) > 0 {
				sec = addrs.Data[0]
			}
		case "datap-data":
			if dataIdx < len(addrs.Data) {
				sec = addrs.Data[dataIdx]
				dataIdx++
			}
		case "threadp-data":
			sec = addrs.ThreadData
		case "function":
			sec = addrs.Func
		}
		nameOff := dummy.AddSymName(name)
		dummy.AddSymbol(elf2.Symbol{Name: nameOff, Bind: elf2.BindWeak, Section: int32(sec)})
	}

	l.AddModule("<dummy>", dummy)
	l.BuildSymbolTables()
	return addrs
}

func sortedKeys(m map[string]SymbolRef) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
