package core

import "fmt"

// EntityType identifies one of the fixed record categories exposed by the
// Firewalla MSP API. Every search and correlation operation is bound to
// exactly one entity type per query.
type EntityType string

const (
	// EntityFlows represents network flow records
	EntityFlows EntityType = "flows"
	// EntityAlarms represents security alarm records
	EntityAlarms EntityType = "alarms"
	// EntityRules represents firewall rule records
	EntityRules EntityType = "rules"
	// EntityDevices represents managed device records
	EntityDevices EntityType = "devices"
	// EntityTargetLists represents target list records
	EntityTargetLists EntityType = "target_lists"
)

// AllEntityTypes returns the fixed set of entity types in stable order.
func AllEntityTypes() []EntityType {
	return []EntityType{
		EntityFlows,
		EntityAlarms,
		EntityRules,
		EntityDevices,
		EntityTargetLists,
	}
}

// ParseEntityType converts a string into an EntityType, rejecting unknown values.
func ParseEntityType(s string) (EntityType, error) {
	et := EntityType(s)
	for _, known := range AllEntityTypes() {
		if et == known {
			return et, nil
		}
	}
	return "", fmt.Errorf("unknown entity type %q (valid: %v)", s, AllEntityTypes())
}

// String returns the wire name of the entity type.
func (t EntityType) String() string {
	return string(t)
}
