// Package ordering implements the sparse sibling ordering shared by report
// sections, section playbooks and vulnerabilities.
//
// Siblings carry an explicit integer order with gaps of Step. Moving an item
// swaps its order with the nearest neighbor in the requested direction, so
// unaffected siblings are never renumbered.
package ordering

import "fmt"

// Step is the gap left between appended siblings.
const Step = 10

type Direction int

const (
	Up Direction = iota
	Down
)

func (d Direction) String() string {
	if d == Up {
		return "up"
	}
	return "down"
}

// ParseDirection accepts "up"/"down" as well as the "move-up"/"move-down"
// route suffixes.
func ParseDirection(s string) (Direction, error) {
	switch s {
	case "up", "move-up":
		return Up, nil
	case "down", "move-down":
		return Down, nil
	}
	return Up, fmt.Errorf("invalid direction: %q", s)
}

// Item is one sibling as seen by the ordering algorithm.
type Item struct {
	ID    int64
	Order int
}

// Next returns the order for a sibling appended after all existing ones.
func Next(siblings []Item) int {
	max := 0
	for _, s := range siblings {
		if s.Order > max {
			max = s.Order
		}
	}
	return max + Step
}

// Move locates id among siblings and the neighbor it swaps with. It returns
// both items carrying their new orders. ok is false when id is unknown or is
// already first (Up) or last (Down).
func Move(siblings []Item, id int64, dir Direction) (moved, neighbor Item, ok bool) {
	var target *Item
	for i := range siblings {
		if siblings[i].ID == id {
			target = &siblings[i]
			break
		}
	}
	if target == nil {
		return Item{}, Item{}, false
	}

	var best *Item
	for i := range siblings {
		s := &siblings[i]
		if s.ID == id {
			continue
		}
		switch dir {
		case Down:
			if s.Order > target.Order && (best == nil || s.Order < best.Order) {
				best = s
			}
		case Up:
			if s.Order < target.Order && (best == nil || s.Order > best.Order) {
				best = s
			}
		}
	}
	if best == nil {
		return Item{}, Item{}, false
	}

	moved = Item{ID: target.ID, Order: best.Order}
	neighbor = Item{ID: best.ID, Order: target.Order}
	return moved, neighbor, true
}

// Apply writes the result of Move back into siblings.
func Apply(siblings []Item, changed ...Item) {
	for _, c := range changed {
		for i := range siblings {
			if siblings[i].ID == c.ID {
				siblings[i].Order = c.Order
			}
		}
	}
}
