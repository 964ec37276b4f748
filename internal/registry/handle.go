package registry

import "fmt"

// Handle identifies a context held by a Registry. The low 32 bits index the
// arena slot and the high 32 bits carry the slot generation, so a handle
// outlived by its context never resolves to a newer occupant of the slot.
type Handle uint64

// InvalidHandle is never issued and is accepted as a no-op by Destroy.
const InvalidHandle Handle = 0

func makeHandle(index, generation uint32) Handle {
	return Handle(uint64(generation)<<32 | uint64(index))
}

func (h Handle) index() uint32      { return uint32(h) }
func (h Handle) generation() uint32 { return uint32(h >> 32) }

// Valid reports whether h could have been issued by a Registry.
func (h Handle) Valid() bool { return h.generation() != 0 }

func (h Handle) String() string {
	if !h.Valid() {
		return "handle(invalid)"
	}
	return fmt.Sprintf("handle(%d@%d)", h.index(), h.generation())
}
