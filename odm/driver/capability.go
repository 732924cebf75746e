package driver

// Capability indicates the capabilities of an
// ODM driver.
type Capability int

const (
	// No capabilities
	CAP_NONE Capability = 0
	// InsertMany is atomic
	CAP_TRANSACTION Capability = 1 << iota
	// Data survives closing the driver
	CAP_PERSISTENT
	// Provides eventual consistency rather than strong consistency
	CAP_EVENTUAL
)

// Has returns true iff c includes all the capabilities in o.
func (c Capability) Has(o Capability) bool {
	return c&o == o
}
