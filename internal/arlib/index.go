package arlib

import "github.com/ForwardCom/bintools/internal/elf2"

// Index scans every member for its public/weak symbols and builds the
// name->member map used by FindSymbol (spec.md §6.2 "findSymbol(name)
// scans the archive's index"). Members that do not parse as
// ForwardCom objects are skipped rather than failing the whole scan,
// mirroring IsForwardCom's member-by-member check.
func (l *Library) Index() {
	l.symbolIndex = make(map[string]int, len(l.Members))
	for i, m := range l.Members {
		c, err := elf2.Parse(m.Data)
		if err != nil {
			continue
		}
		for _, s := range c.Symbols {
			if s.Bind != elf2.BindGlobal && s.Bind != elf2.BindWeak && s.Bind != elf2.BindWeak2 {
				continue
			}
			name := c.SymName(s.Name)
			if name == "" {
				continue
			}
			if _, exists := l.symbolIndex[name]; !exists {
				l.symbolIndex[name] = i
			}
		}
	}
}

// FindSymbol returns the member defining name, per spec.md §6.2.
// Index is run on first use if it has not been called yet.
func (l *Library) FindSymbol(name string) (Member, bool) {
	if l.symbolIndex == nil {
		l.Index()
	}
	i, ok := l.symbolIndex[name]
	if !ok {
		return Member{}, false
	}
	return l.Members[i], true
}

// IsForwardCom reports whether every member parses as a ForwardCom
// object (spec.md §6.2 "A library is a ForwardCom library iff every
// member is a ForwardCom object").
func (l *Library) IsForwardCom() bool {
	for _, m := range l.Members {
		if _, err := elf2.Parse(m.Data); err != nil {
			return false
		}
	}
	return len(l.Members) > 0
}
