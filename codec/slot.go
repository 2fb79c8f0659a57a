package codec

import (
	"fmt"
)

// Slot is an indexed fixed-capacity buffer; at any moment it is owned
// either by the session or by the pipeline.
type Slot struct {
	Index int
	Data  []byte
}

func (s Slot) Capacity() int {
	return len(s.Data)
}

func (s Slot) String() string {
	return fmt.Sprintf("Slot(%d; cap:%d)", s.Index, len(s.Data))
}
