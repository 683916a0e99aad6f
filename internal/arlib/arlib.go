// Package arlib reads and writes the UNIX ar archive used as the
// ForwardCom library format (spec.md §6.2): magic "!<arch>\n", a
// sequence of fixed 60-byte member headers each followed by
// size-padded-to-even data, and a long-names member for names longer
// than 15 bytes. No symbol index member is written; FindSymbol uses an
// in-memory name->member map built by Index. Grounded on original_source/library.h's
// CLibrary (member list, findSymbol, findMember) and the teacher's
// loader/loader.go for the Go idiom of a byte-slice-owning reader.
package arlib

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	magic       = "!<arch>\n"
	headerSize  = 60
	longNameTag = "//"
	symtabTag   = "/"
)

// Member is one object file stored in the archive.
type Member struct {
	Name string
	Data []byte
}

// Library is the in-memory form of an ar archive (spec.md §6.2).
type Library struct {
	Members []Member

	// symbolIndex maps an exported symbol name to the index of the
	// member that defines it, rebuilt by Index.
	symbolIndex map[string]int
}

// ErrFormat reports a malformed archive.
type ErrFormat struct{ Msg string }

func (e *ErrFormat) Error() string { return fmt.Sprintf("arlib: %s", e.Msg) }

// Parse reads raw as an ar archive (spec.md §6.2 "findMember"/
// "findSymbol" require Parse to have run first).
func Parse(raw []byte) (*Library, error) {
	if len(raw) < len(magic) || string(raw[:len(magic)]) != magic {
		return nil, &ErrFormat{Msg: "missing !<arch> magic"}
	}
	lib := &Library{}
	var longNames string
	pos := len(magic)

	for pos+headerSize <= len(raw) {
		hdr := raw[pos : pos+headerSize]
		name := strings.TrimRight(string(hdr[0:16]), " ")
		sizeField := strings.TrimSpace(string(hdr[48:58]))
		size, err := strconv.Atoi(sizeField)
		if err != nil {
			return nil, &ErrFormat{Msg: "bad member size field"}
		}
		dataStart := pos + headerSize
		dataEnd := dataStart + size
		if dataEnd > len(raw) {
			return nil, &ErrFormat{Msg: "member data runs past end of file"}
		}
		data := raw[dataStart:dataEnd]

		switch {
		case name == longNameTag:
			longNames = string(data)
		case name == symtabTag:
			// the symbol index is rebuilt by Index rather than trusted from disk
		case strings.HasPrefix(name, "/"):
			off, err := strconv.Atoi(name[1:])
			if err != nil || off < 0 || off >= len(longNames) {
				return nil, &ErrFormat{Msg: "bad long-name offset"}
			}
			end := strings.IndexByte(longNames[off:], '\n')
			resolved := longNames[off:]
			if end >= 0 {
				resolved = longNames[off : off+end]
			}
			lib.Members = append(lib.Members, Member{Name: strings.TrimSuffix(resolved, "/"), Data: data})
		default:
			lib.Members = append(lib.Members, Member{Name: strings.TrimSuffix(name, "/"), Data: data})
		}

		pos = dataEnd
		if pos%2 == 1 && pos < len(raw) {
			pos++ // members are padded to an even offset
		}
	}
	return lib, nil
}

// findMember resolves a module name to its member index (spec.md §6.2
// "findMember(name)"), or -1 if not present.
func (l *Library) findMember(name string) int {
	for i, m := range l.Members {
		if m.Name == name {
			return i
		}
	}
	return -1
}

// FindMember is the exported form of findMember.
func (l *Library) FindMember(name string) (Member, bool) {
	i := l.findMember(name)
	if i < 0 {
		return Member{}, false
	}
	return l.Members[i], true
}
