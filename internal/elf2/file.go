package elf2

import "encoding/binary"

// fileMagic0..3 is the ELF magic; byte 4 (EI_CLASS) is always 2 (64-bit),
// byte 5 (EI_DATA) is always 1 (little endian), byte 7 (EI_OSABI) is
// OSABIForwardCom (spec.md §6.1).
var fileMagic = [4]byte{0x7F, 'E', 'L', 'F'}

const (
	ehdrSize = 64
	shdrSize = 56 // Module/Library name indexes at bytes 40-47, 4-byte AddrAlign/EntSize: shorter than Elf64_Shdr's 64
	phdrSize = 56
	symSize  = 32 // carries UnitSize, UnitNum beyond Elf64_Sym's 24; Reguse1/2 are not written
	relSize  = 32
)

// Parse validates header integrity and reads the file header and the
// section header table without moving the raw section data (spec.md §4.1
// "parse(bytes)"). Symbol and relocation records are not read: Symbols
// and Relocations stay empty. Data offsets in the returned Container's
// Sections still point into the original raw bytes until Split is called.
func Parse(raw []byte) (*Container, error) {
	if len(raw) < ehdrSize {
		return nil, &ErrRange{Msg: "file too short for an ELF header"}
	}
	if raw[0] != fileMagic[0] || raw[1] != fileMagic[1] || raw[2] != fileMagic[2] || raw[3] != fileMagic[3] {
		return nil, &ErrRange{Msg: "bad ELF magic"}
	}
	if raw[7] != OSABIForwardCom {
		return nil, &ErrRange{Msg: "not a ForwardCom OSABI"}
	}
	le := binary.LittleEndian
	c := New()
	c.Header = FileHeader{
		Machine:     le.Uint16(raw[18:20]),
		Type:        le.Uint16(raw[16:18]),
		Entry:       le.Uint64(raw[24:32]),
		IPBase:      le.Uint64(raw[32:40]),
		DatapBase:   le.Uint64(raw[40:48]),
		ThreadpBase: le.Uint64(raw[48:56]),
		Flags:       le.Uint32(raw[56:60]),
	}
	if c.Header.Machine != EMForwardCom {
		return nil, &ErrRange{Msg: "e_machine is not EM_FORWARDCOM"}
	}
	c.Header.Relinkable = c.Header.Flags&0x2 != 0
	c.Header.Incomplete = c.Header.Flags&0x1 != 0

	shoff := le.Uint64(raw[60:68])
	shnum := int(le.Uint32(raw[68:72]))
	if shoff+uint64(shnum)*shdrSize > uint64(len(raw)) {
		return nil, &ErrRange{Msg: "section header table out of range"}
	}
	c.Sections = make([]SectionHeader, shnum)
	for i := 0; i < shnum; i++ {
		b := raw[shoff+uint64(i)*shdrSize:]
		c.Sections[i] = SectionHeader{
			Name: le.Uint32(b[0:4]), Type: le.Uint32(b[4:8]),
			Flags: le.Uint64(b[8:16]), Addr: le.Uint64(b[16:24]),
			Offset: le.Uint64(b[24:32]), Size: le.Uint64(b[32:40]),
			Module: le.Uint32(b[40:44]), Library: le.Uint32(b[44:48]),
			AddrAlign: uint64(le.Uint32(b[48:52])), EntSize: uint64(le.Uint32(b[52:56])),
		}
	}
	return c, nil
}

// Split linearizes every allocated section's data into DataBuffer,
// rewriting each SectionHeader.Offset to point into it (spec.md §4.1
// "split()").
func (c *Container) Split(raw []byte) {
	c.DataBuffer = c.DataBuffer[:0]
	for i := range c.Sections {
		h := &c.Sections[i]
		if h.Type == 0 /* SHT_NULL */ {
			continue
		}
		c.alignDataBuffer(*h)
		start := int(h.Offset)
		end := start + int(h.Size)
		if start < 0 || end > len(raw) || start > end {
			continue
		}
		newOff := uint64(len(c.DataBuffer))
		c.DataBuffer = append(c.DataBuffer, raw[start:end]...)
		h.Offset = newOff
	}
}

// Join serializes the container into FileBytes: the file header,
// DataBuffer, the symbol records, the relocation records, shstrtab,
// strtab and the section header table, in that order (spec.md §6.1).
// No dummy symbol 0 or section 0 is added, and the symbol, relocation
// and string tables get no section headers of their own.
func (c *Container) Join() []byte {
	le := binary.LittleEndian
	var out []byte

	out = append(out, fileMagic[:]...)
	out = append(out, 2, 1, 1, OSABIForwardCom) // class, data, version, osabi
	out = append(out, make([]byte, 8)...)       // padding
	hdrPatch := len(out)
	out = append(out, make([]byte, ehdrSize-16)...)

	dataStart := len(out)
	out = append(out, c.DataBuffer...)

	symtabOff := len(out)
	for _, s := range c.Symbols {
		var b [symSize]byte
		le.PutUint32(b[0:4], s.Name)
		b[4] = s.Type
		b[5] = byte(s.Bind)
		le.PutUint32(b[6:10], s.Other)
		le.PutUint32(b[10:14], uint32(s.Section))
		le.PutUint64(b[14:22], s.Value)
		le.PutUint32(b[22:26], s.UnitSize)
		le.PutUint32(b[26:30], s.UnitNum)
		out = append(out, b[:]...)
	}

	reltabOff := len(out)
	for _, r := range c.Relocations {
		var b [relSize]byte
		le.PutUint32(b[0:4], uint32(r.Section))
		le.PutUint64(b[4:12], r.Offset)
		le.PutUint32(b[12:16], r.EncodeType())
		le.PutUint32(b[16:20], r.Symbol)
		le.PutUint32(b[20:24], r.RefSymbol)
		le.PutUint64(b[24:32], uint64(r.Addend))
		out = append(out, b[:]...)
	}

	shstrtabOff := len(out)
	out = append(out, c.SecStringBuf...)
	strtabOff := len(out)
	out = append(out, c.SymStringBuf...)

	shoff := len(out)
	for _, h := range c.Sections {
		var b [shdrSize]byte
		le.PutUint32(b[0:4], h.Name)
		le.PutUint32(b[4:8], h.Type)
		le.PutUint64(b[8:16], h.Flags)
		le.PutUint64(b[16:24], h.Addr)
		le.PutUint64(b[24:32], h.Offset+uint64(dataStart))
		le.PutUint64(b[32:40], h.Size)
		le.PutUint32(b[40:44], h.Module)
		le.PutUint32(b[44:48], h.Library)
		le.PutUint32(b[48:52], uint32(h.AddrAlign))
		le.PutUint32(b[52:56], uint32(h.EntSize))
		out = append(out, b[:]...)
	}

	le.PutUint16(out[hdrPatch:], uint16(c.Header.Type))
	le.PutUint16(out[hdrPatch+2:], c.Header.Machine)
	le.PutUint64(out[hdrPatch+8:], c.Header.Entry)
	le.PutUint64(out[hdrPatch+16:], c.Header.IPBase)
	le.PutUint64(out[hdrPatch+24:], c.Header.DatapBase)
	le.PutUint64(out[hdrPatch+32:], c.Header.ThreadpBase)
	flags := c.Header.Flags
	if c.Header.Relinkable {
		flags |= 0x2
	}
	if c.Header.Incomplete {
		flags |= 0x1
	}
	le.PutUint32(out[hdrPatch+40:], flags)
	le.PutUint64(out[hdrPatch+44:], uint64(shoff))
	le.PutUint32(out[hdrPatch+52:], uint32(len(c.Sections)))
	_ = symtabOff
	_ = reltabOff
	_ = shstrtabOff
	_ = strtabOff

	c.FileBytes = out
	return out
}
