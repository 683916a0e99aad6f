package link

import "github.com/ForwardCom/bintools/internal/elf2"

// dummyFunctionBody is the two-word stub "load r0 = 0 / return" body
// synthesized for an unresolved weak function reference (spec.md §4.8
// "Dummy sections").
var dummyFunctionBody = []byte{0, 0, 0, 0, 0, 0, 0, 0}

// DummyAddresses records, for each class of unresolved weak external,
// the index in the container of the dummy section synthesized for it
// (spec.md §4.8). No addresses are assigned here.
type DummyAddresses struct {
	Const        uint32
	Data         []uint32
	ThreadData   uint32
	Func         uint32
}

// SynthesizeDummies adds exactly one section per pending weak-dummy
// class to c, zero-filled (or the stub body, for functions), and
// returns their section indexes. Multiple unresolved writable-data
// references get distinct dummy slots, one per call with "datap-data"
// pending.
func (l *Linker) SynthesizeDummies(c *elf2.Container, dataSlots int) DummyAddresses {
	var addrs DummyAddresses
	classes := make(map[string]bool, len(l.pendingWeakDummies))
	for k, v := range l.pendingWeakDummies {
		classes[k] = v
	}

	if classes["const"] {
		nameOff := c.AddSecName(".dummy.const")
		idx := c.AddSection(elf2.SectionHeader{Name: nameOff, Type: 1, Flags: elf2.SHFAlloc | elf2.SHFIP, AddrAlign: 4}, []byte{0, 0, 0, 0})
		addrs.Const = uint32(idx)
	}
	if classes["ip-data"] {
		nameOff := c.AddSecName(".dummy.ipdata")
		idx := c.AddSection(elf2.SectionHeader{Name: nameOff, Type: 1, Flags: elf2.SHFAlloc | elf2.SHFWrite | elf2.SHFIP, AddrAlign: 4}, []byte{0, 0, 0, 0})
		addrs.Data = append(addrs.Data, uint32(idx))
	}
	if classes["datap-data"] {
		if dataSlots < 1 {
			dataSlots = 1
		}
		for i := 0; i < dataSlots; i++ {
			nameOff := c.AddSecName(".dummy.data")
			idx := c.AddSection(elf2.SectionHeader{Name: nameOff, Type: 1, Flags: elf2.SHFAlloc | elf2.SHFWrite | elf2.SHFDatap, AddrAlign: 4}, []byte{0, 0, 0, 0})
			addrs.Data = append(addrs.Data, uint32(idx))
		}
	}
	if classes["threadp-data"] {
		nameOff := c.AddSecName(".dummy.threaddata")
		idx := c.AddSection(elf2.SectionHeader{Name: nameOff, Type: 1, Flags: elf2.SHFAlloc | elf2.SHFWrite | elf2.SHFThreadp, AddrAlign: 4}, []byte{0, 0, 0, 0})
		addrs.ThreadData = uint32(idx)
	}
	if classes["function"] {
		nameOff := c.AddSecName(".dummy.func")
		idx := c.AddSection(elf2.SectionHeader{Name: nameOff, Type: 1, Flags: elf2.SHFAlloc | elf2.SHFExec | elf2.SHFIP, AddrAlign: 4}, dummyFunctionBody)
		addrs.Func = uint32(idx)
	}
	return addrs
}

// EventRecordSize is the fixed byte size of one event-table record
// (spec.md §4.8 "Event table"): a 4-byte sort key followed by a
// 4-byte handler address.
const EventRecordSize = 8

// BuildEventTable concatenates every section flagged SHF_EVENT_HND
// across every module, verifies each is a whole number of records,
// stable-sorts by the record's leading 4-byte key, and returns the
// merged bytes (spec.md §4.8 "Event table"). The caller adds this as
// the autogenerated "eventhandlers_sorted" section and exposes its
// start/count as __event_table/__event_table_num.
func (l *Linker) BuildEventTable() ([]byte, int, error) {
	var all []byte
	for _, m := range l.Modules {
		for _, h := range m.Container.Sections {
			if h.Flags&elf2.SHFEventHnd == 0 {
				continue
			}
			if h.Size%EventRecordSize != 0 {
				return nil, 0, &ErrLayout{Msg: "event handler section size is not a multiple of the event record size"}
			}
			start := int(h.Offset)
			end := start + int(h.Size)
			if end > len(m.Container.DataBuffer) {
				continue
			}
			all = append(all, m.Container.DataBuffer[start:end]...)
		}
	}
	n := len(all) / EventRecordSize
	records := make([][]byte, n)
	for i := 0; i < n; i++ {
		records[i] = all[i*EventRecordSize : (i+1)*EventRecordSize]
	}
	sortRecordsByKey(records)
	out := make([]byte, 0, len(all))
	for _, r := range records {
		out = append(out, r...)
	}
	return out, n, nil
}

func sortRecordsByKey(records [][]byte) {
	// insertion sort: n is small (event handler count), and stability
	// matters per spec.md §4.8.
	for i := 1; i < len(records); i++ {
		for j := i; j > 0; j-- {
			if recordKey(records[j-1]) <= recordKey(records[j]) {
				break
			}
			records[j-1], records[j] = records[j], records[j-1]
		}
	}
}

func recordKey(r []byte) uint32 {
	return uint32(r[0]) | uint32(r[1])<<8 | uint32(r[2])<<16 | uint32(r[3])<<24
}
