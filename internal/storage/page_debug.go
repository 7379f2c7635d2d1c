package storage

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"unicode"
	"unicode/utf8"
)

func asciiPreview(b []byte) string {
	var buf bytes.Buffer
	for _, c := range b {
		r := rune(c)
		if unicode.IsPrint(r) && r != '\n' && r != '\r' && r != '\t' {
			buf.WriteRune(r)
		} else {
			buf.WriteByte('.')
		}
	}
	return buf.String()
}

// Debug prints header, slot directory, and tuple previews to w. Read-only:
// it never mutates p.
func (p *Page) Debug(w io.Writer) {
	fmt.Fprintf(w, "=== Page Debug ===\n")
	fmt.Fprintf(w, "pageID=%d type=%s next=%d\n", p.PageID(), p.PageType(), p.GetNext())
	fmt.Fprintf(w, "size=%d slotCount=%d freeStart=%d freeEnd=%d freeSpace=%d\n",
		len(p.Buf), p.SlotCount(), p.FreeStart(), p.FreeEnd(), p.FreeSpace())

	fmt.Fprintln(w, "-- Slots --")
	if p.SlotCount() == 0 {
		fmt.Fprintln(w, "(none)")
	}
	for i := uint16(0); i < p.SlotCount(); i++ {
		offset, length := p.getSlot(i)
		if length == 0 {
			fmt.Fprintf(w, "[%d] tombstone\n", i)
			continue
		}
		fmt.Fprintf(w, "[%d] off=%d len=%d\n", i, offset, length)
	}

	fmt.Fprintln(w, "-- Tuples (preview) --")
	const maxPreview = 32
	for i := uint16(0); i < p.SlotCount(); i++ {
		data, err := p.Read(i)
		if err != nil {
			fmt.Fprintf(w, "[%d] (read) %v\n", i, err)
			continue
		}
		preview := data
		if len(preview) > maxPreview {
			preview = preview[:maxPreview]
		}
		fmt.Fprintf(w, "[%d] len=%d hex=%s", i, len(data), hex.EncodeToString(preview))
		if utf8.Valid(preview) {
			fmt.Fprintf(w, " utf8=%q\n", asciiPreview(preview))
		} else {
			fmt.Fprintf(w, " ascii=%q\n", asciiPreview(preview))
		}
	}
	fmt.Fprintln(w, "=== End Page Debug ===")
}

func (p *Page) DebugString() string {
	var b bytes.Buffer
	p.Debug(&b)
	return b.String()
}
