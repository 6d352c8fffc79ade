package factory

// Part names recognised by production. Matching is exact and case-sensitive.
const (
	PartWheels        = "wheels"
	PartEngine        = "engine"
	PartBitsAndPieces = "bits and pieces"
)

// Parts needed to build one Model T.
const (
	modelTWheels        = 6
	modelTEngines       = 1
	modelTBitsAndPieces = 2
)

// Inventory is the count of production parts across every pending shipment.
type Inventory struct {
	Wheels        int
	Engines       int
	BitsAndPieces int
}

// Inventory sums part quantities over all shipments in the cargo bay,
// including shipments that were never explicitly unloaded.
func (s State) Inventory() Inventory {
	var inv Inventory
	for _, shipment := range s.shipmentsPendingUnload {
		for _, p := range shipment {
			switch p.Name {
			case PartWheels:
				inv.Wheels += p.Quantity
			case PartEngine:
				inv.Engines += p.Quantity
			case PartBitsAndPieces:
				inv.BitsAndPieces += p.Quantity
			}
		}
	}
	return inv
}

// CanBuildModelT reports whether the inventory covers one Model T.
func (inv Inventory) CanBuildModelT() bool {
	return inv.Wheels >= modelTWheels &&
		inv.Engines >= modelTEngines &&
		inv.BitsAndPieces >= modelTBitsAndPieces
}
