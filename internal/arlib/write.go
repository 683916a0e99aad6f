package arlib

import (
	"bytes"
	"fmt"
)

// Build serializes members into an ar archive, writing a long-names
// member first when any member name exceeds the 16-byte inline field
// (spec.md §6.2).
func Build(members []Member) []byte {
	var longNames bytes.Buffer
	longOffsets := make(map[string]int, len(members))
	for _, m := range members {
		if len(m.Name) > 15 {
			if _, ok := longOffsets[m.Name]; !ok {
				longOffsets[m.Name] = longNames.Len()
				longNames.WriteString(m.Name)
				longNames.WriteString("/\n")
			}
		}
	}

	var out bytes.Buffer
	out.WriteString(magic)

	if longNames.Len() > 0 {
		writeHeader(&out, longNameTag, longNames.Len())
		out.Write(longNames.Bytes())
		padToEven(&out)
	}

	for _, m := range members {
		var field string
		if off, ok := longOffsets[m.Name]; ok {
			field = fmt.Sprintf("/%d", off)
		} else {
			field = m.Name + "/"
		}
		writeHeader(&out, field, len(m.Data))
		out.Write(m.Data)
		padToEven(&out)
	}
	return out.Bytes()
}

func writeHeader(out *bytes.Buffer, name string, size int) {
	var h [headerSize]byte
	for i := range h {
		h[i] = ' '
	}
	copy(h[0:16], name)
	copy(h[16:28], "0") // mtime
	copy(h[28:34], "0") // uid
	copy(h[34:40], "0") // gid
	copy(h[40:48], "644") // mode
	copy(h[48:58], fmt.Sprintf("%d", size))
	h[58] = '`'
	h[59] = '\n'
	out.Write(h[:])
}

func padToEven(out *bytes.Buffer) {
	if out.Len()%2 == 1 {
		out.WriteByte('\n')
	}
}
