// Package collation defines the six attribute orderings a triple index can be
// sorted by, and the slot permutation each one implies.
package collation

import (
	"cmp"
	"strings"

	"github.com/pkg/errors"
)

// Attribute indexes of a triple in logical order.
const (
	Subject = iota
	Predicate
	Object
)

// Order represents one of the six orderings of (subject, predicate, object)
type Order byte

const (
	SPO Order = iota
	SOP
	PSO
	POS
	OSP
	OPS

	// Total number of orderings
	OrderCount
)

// ErrUnknownOrder is returned by Parse for names that are not an ordering.
var ErrUnknownOrder = errors.New("unknown collation order")

// slots maps an order to the logical attribute visited at each physical slot.
var slots = [OrderCount][3]int{
	SPO: {Subject, Predicate, Object},
	SOP: {Subject, Object, Predicate},
	PSO: {Predicate, Subject, Object},
	POS: {Predicate, Object, Subject},
	OSP: {Object, Subject, Predicate},
	OPS: {Object, Predicate, Subject},
}

// inverse maps an order to the physical slot of each logical attribute.
var inverse [OrderCount][3]int

func init() {
	for o := Order(0); o < OrderCount; o++ {
		for slot, attr := range slots[o] {
			inverse[o][attr] = slot
		}
	}
}

func (o Order) String() string {
	switch o {
	case SPO:
		return "SPO"
	case SOP:
		return "SOP"
	case PSO:
		return "PSO"
	case POS:
		return "POS"
	case OSP:
		return "OSP"
	case OPS:
		return "OPS"
	default:
		return "unknown"
	}
}

// Valid reports whether o is one of the six orderings.
func (o Order) Valid() bool {
	return o < OrderCount
}

// Slot returns the logical attribute index stored at physical slot i.
func (o Order) Slot(i int) int {
	return slots[o][i]
}

// Inverse returns the physical slot at which logical attribute a is visited.
func (o Order) Inverse(a int) int {
	return inverse[o][a]
}

// Permutation returns the full slot -> attribute table.
func (o Order) Permutation() [3]int {
	return slots[o]
}

// Compare orders two keys attribute by attribute in slot order.
func Compare[T cmp.Ordered](o Order, a, b [3]T) int {
	for _, attr := range slots[o] {
		if c := cmp.Compare(a[attr], b[attr]); c != 0 {
			return c
		}
	}
	return 0
}

// Parse returns the order with the given name, ignoring case.
func Parse(name string) (Order, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for o := Order(0); o < OrderCount; o++ {
		if o.String() == upper {
			return o, nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownOrder, "%q", name)
}

// All returns every ordering in declaration order.
func All() []Order {
	orders := make([]Order, 0, OrderCount)
	for o := Order(0); o < OrderCount; o++ {
		orders = append(orders, o)
	}
	return orders
}
