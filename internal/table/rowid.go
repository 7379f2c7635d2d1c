package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pageengine/pageengine/internal/storage"
)

// RowID is the stable identity of a row: the page holding its slot and the
// slot's index within that page's directory.
type RowID struct {
	PageID    storage.PageID
	SlotIndex uint16
}

// String renders a RowID as "p:s", its boundary text form.
func (r RowID) String() string {
	return fmt.Sprintf("%d:%d", r.PageID, r.SlotIndex)
}

// ParseRowID parses the "p:s" text form back into a RowID.
func ParseRowID(s string) (RowID, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return RowID{}, fmt.Errorf("table: parse row id %q: %w", s, storage.ErrInvalidRowID)
	}
	page, err := strconv.ParseUint(parts[0], 10, 32)
	if err != nil {
		return RowID{}, fmt.Errorf("table: parse row id %q: %w", s, storage.ErrInvalidRowID)
	}
	slot, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil {
		return RowID{}, fmt.Errorf("table: parse row id %q: %w", s, storage.ErrInvalidRowID)
	}
	return RowID{PageID: storage.PageID(page), SlotIndex: uint16(slot)}, nil
}
