package bridge

import (
	"slices"
	"sort"
)

// Carrier identifiers supported by default.
const (
	CarrierUSPS  = "usps"
	CarrierFedEx = "fedex"
	CarrierUPS   = "ups"
)

// CarrierTable maps a carrier identifier to its ordered list of valid
// shipping-method names. A CarrierTable is never mutated after construction.
type CarrierTable struct {
	methods map[string][]string
}

// DefaultCarrierTable returns the built-in carrier to shipping-method table.
func DefaultCarrierTable() CarrierTable {
	return NewCarrierTable(map[string][]string{
		CarrierUSPS:  {"Priority", "First-Class", "Ground", "Express"},
		CarrierFedEx: {"Ground", "2Day", "Express", "Overnight"},
		CarrierUPS:   {"Ground", "Next Day Air", "2nd Day Air", "3 Day Select"},
	})
}

// NewCarrierTable copies methods into a new table.
func NewCarrierTable(methods map[string][]string) CarrierTable {
	t := CarrierTable{methods: make(map[string][]string, len(methods))}
	for carrier, list := range methods {
		t.methods[carrier] = slices.Clone(list)
	}
	return t
}

// Methods returns a copy of the shipping methods for carrier, or nil if the
// carrier has no entry.
func (t CarrierTable) Methods(carrier string) []string {
	return slices.Clone(t.methods[carrier])
}

// Allows reports whether method is valid for carrier.
func (t CarrierTable) Allows(carrier, method string) bool {
	return slices.Contains(t.methods[carrier], method)
}

// Carriers returns the carriers that have an entry, sorted.
func (t CarrierTable) Carriers() []string {
	names := make([]string, 0, len(t.methods))
	for name := range t.methods {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of carriers in the table.
func (t CarrierTable) Len() int {
	return len(t.methods)
}

// invalidMethods returns every "<method> for <carrier>" pair that the table
// rejects, in carrier order then method order.
func (t CarrierTable) invalidMethods(carriers, methods []string) []string {
	var invalid []string
	for _, carrier := range carriers {
		for _, method := range methods {
			if !t.Allows(carrier, method) {
				invalid = append(invalid, method+" for "+carrier)
			}
		}
	}
	return invalid
}
