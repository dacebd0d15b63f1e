package models

import "fmt"

// DisplaySlot selects the set of screen regions a rendered field lands in.
// Each slot shows one location's weather independently of the others.
type DisplaySlot int

const (
	SlotSingle DisplaySlot = iota
	SlotCity1
	SlotCity2
)

func (s DisplaySlot) String() string {
	switch s {
	case SlotSingle:
		return "single"
	case SlotCity1:
		return "city1"
	case SlotCity2:
		return "city2"
	default:
		return fmt.Sprintf("slot(%d)", int(s))
	}
}

// SlotsFor returns the slots used when n locations are displayed.
func SlotsFor(n int) []DisplaySlot {
	if n <= 1 {
		return []DisplaySlot{SlotSingle}
	}
	return []DisplaySlot{SlotCity1, SlotCity2}
}
