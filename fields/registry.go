package fields

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"firewatch/core"
)

// Entry describes one logical field of one entity type: the ordered list of
// candidate record paths it may live at, its value kind, normalizer, the
// operators a query may apply to it, and its correlation usefulness weight.
//
// Multiple candidate paths model the fact that the same logical concept may
// live at different physical paths depending on how the vendor represents a
// record. All candidate paths are logically equivalent alternatives; the
// evaluator ORs across them, it does not try them as fallbacks.
type Entry struct {
	// Name is the stable, user-facing query field name
	Name string
	// Entity is the entity type this entry belongs to
	Entity core.EntityType
	// Paths is the ordered list of candidate record paths
	Paths []string
	// Kind is the logical value type
	Kind ValueKind
	// Normalizer converts raw values to canonical comparable form
	Normalizer Normalizer
	// Operators is the set of operators queries may apply to this field
	Operators []Operator
	// Weight is the static correlation usefulness of this field
	Weight float64
}

// Allows reports whether the operator is permitted on this field.
func (e *Entry) Allows(op Operator) bool {
	for _, allowed := range e.Operators {
		if allowed == op {
			return true
		}
	}
	return false
}

// Normalize converts a raw value to this field's canonical form.
func (e *Entry) Normalize(v interface{}, now time.Time) (interface{}, bool) {
	if e.Normalizer == nil {
		return NormalizeString(v, now)
	}
	return e.Normalizer(v, now)
}

// NotFoundError reports a logical field that does not exist for an entity
// type. It carries the full valid-field enumeration so a caller can
// self-correct without re-reading documentation, plus a close lexical match
// when one exists.
type NotFoundError struct {
	Field       string
	Entity      core.EntityType
	ValidFields []string
	Suggestion  string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("unknown field %q for entity type %q (valid fields: %s)",
		e.Field, e.Entity, strings.Join(e.ValidFields, ", "))
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" - did you mean %q?", e.Suggestion)
	}
	return msg
}

// Is implements error matching for errors.Is().
func (e *NotFoundError) Is(target error) bool {
	t, ok := target.(*NotFoundError)
	if !ok {
		return false
	}
	return e.Field == t.Field && e.Entity == t.Entity
}

// Registry is the static, per-entity-type table of logical fields. It is
// constructed once at process start and never mutated afterwards, so it is
// safe for concurrent use without locking. Tests substitute a smaller
// registry by constructing their own.
type Registry struct {
	entries map[core.EntityType]map[string]*Entry
	// names caches the sorted field-name list per entity type
	names map[core.EntityType][]string
}

// NewRegistry builds the registry with the built-in field tables for all
// five entity types. Candidate paths reflect the physical shapes the MSP
// API produces per entity.
func NewRegistry() *Registry {
	r := &Registry{
		entries: make(map[core.EntityType]map[string]*Entry),
		names:   make(map[core.EntityType][]string),
	}

	// Flows
	r.add(core.EntityFlows, "device_ip", KindString, NormalizeIP, WeightIdentity, stringOperators, "device.ip", "deviceIP")
	r.add(core.EntityFlows, "device_id", KindString, NormalizeMAC, WeightIdentity, stringOperators, "device.id")
	r.add(core.EntityFlows, "device_name", KindString, NormalizeString, WeightDescriptive, stringOperators, "device.name")
	r.add(core.EntityFlows, "source_ip", KindString, NormalizeIP, WeightIdentity, stringOperators, "source.ip", "srcIP")
	r.add(core.EntityFlows, "destination_ip", KindString, NormalizeIP, WeightIdentity, stringOperators, "destination.ip", "dstIP")
	r.add(core.EntityFlows, "destination_name", KindString, NormalizeString, WeightDescriptive, stringOperators, "destination.name")
	r.add(core.EntityFlows, "protocol", KindString, NormalizeProtocol, WeightDescriptive, stringOperators, "protocol")
	r.add(core.EntityFlows, "direction", KindString, NormalizeString, WeightDescriptive, stringOperators, "direction")
	r.add(core.EntityFlows, "blocked", KindBool, NormalizeBool, WeightDescriptive, boolOperators, "block", "blocked")
	r.add(core.EntityFlows, "bytes", KindNumber, NormalizeNumber, WeightDescriptive, numberOperators, "bytes", "total")
	r.add(core.EntityFlows, "download", KindNumber, NormalizeNumber, WeightDescriptive, numberOperators, "download")
	r.add(core.EntityFlows, "upload", KindNumber, NormalizeNumber, WeightDescriptive, numberOperators, "upload")
	r.add(core.EntityFlows, "region", KindString, NormalizeString, WeightGeographic, stringOperators, "region", "destination.region")
	r.add(core.EntityFlows, "category", KindString, NormalizeString, WeightDescriptive, stringOperators, "category")
	r.add(core.EntityFlows, "timestamp", KindTimestamp, NormalizeTimestamp, WeightTemporal, timestampOperators, "ts", "timestamp")

	// Alarms
	r.add(core.EntityAlarms, "alarm_id", KindString, NormalizeString, WeightIdentity, stringOperators, "aid", "id")
	r.add(core.EntityAlarms, "type", KindString, NormalizeString, WeightDescriptive, stringOperators, "type", "alarmType")
	r.add(core.EntityAlarms, "status", KindString, NormalizeString, WeightDescriptive, stringOperators, "status")
	r.add(core.EntityAlarms, "severity", KindSeverity, NormalizeSeverity, WeightDescriptive, severityOperators, "severity", "alarmSeverity")
	r.add(core.EntityAlarms, "message", KindString, NormalizeString, WeightDescriptive, stringOperators, "message")
	r.add(core.EntityAlarms, "protocol", KindString, NormalizeProtocol, WeightDescriptive, stringOperators, "protocol", "p.protocol")
	r.add(core.EntityAlarms, "device_ip", KindString, NormalizeIP, WeightIdentity, stringOperators, "device.ip", "deviceIP")
	r.add(core.EntityAlarms, "device_name", KindString, NormalizeString, WeightDescriptive, stringOperators, "device.name")
	r.add(core.EntityAlarms, "remote_ip", KindString, NormalizeIP, WeightIdentity, stringOperators, "remote.ip", "remoteIP")
	r.add(core.EntityAlarms, "remote_name", KindString, NormalizeString, WeightDescriptive, stringOperators, "remote.name")
	r.add(core.EntityAlarms, "region", KindString, NormalizeString, WeightGeographic, stringOperators, "remote.region", "region")
	r.add(core.EntityAlarms, "timestamp", KindTimestamp, NormalizeTimestamp, WeightTemporal, timestampOperators, "ts", "timestamp")

	// Rules
	r.add(core.EntityRules, "rule_id", KindString, NormalizeString, WeightIdentity, stringOperators, "id")
	r.add(core.EntityRules, "action", KindString, NormalizeString, WeightDescriptive, stringOperators, "action")
	r.add(core.EntityRules, "target_type", KindString, NormalizeString, WeightDescriptive, stringOperators, "target.type")
	r.add(core.EntityRules, "target_value", KindString, NormalizeString, WeightDescriptive, stringOperators, "target.value")
	r.add(core.EntityRules, "direction", KindString, NormalizeString, WeightDescriptive, stringOperators, "direction")
	r.add(core.EntityRules, "status", KindString, NormalizeString, WeightDescriptive, stringOperators, "status")
	r.add(core.EntityRules, "hit_count", KindNumber, NormalizeNumber, WeightDescriptive, numberOperators, "hit.count", "hitCount")
	r.add(core.EntityRules, "device_ip", KindString, NormalizeIP, WeightIdentity, stringOperators, "scope.value", "device.ip")
	r.add(core.EntityRules, "timestamp", KindTimestamp, NormalizeTimestamp, WeightTemporal, timestampOperators, "ts", "updateTs")

	// Devices
	r.add(core.EntityDevices, "device_id", KindString, NormalizeMAC, WeightIdentity, stringOperators, "id")
	r.add(core.EntityDevices, "device_ip", KindString, NormalizeIP, WeightIdentity, stringOperators, "ip", "lastIP")
	r.add(core.EntityDevices, "mac", KindString, NormalizeMAC, WeightIdentity, stringOperators, "mac", "macAddress")
	r.add(core.EntityDevices, "device_name", KindString, NormalizeString, WeightDescriptive, stringOperators, "name")
	r.add(core.EntityDevices, "mac_vendor", KindString, NormalizeString, WeightDescriptive, stringOperators, "macVendor")
	r.add(core.EntityDevices, "online", KindBool, NormalizeBool, WeightDescriptive, boolOperators, "online")
	r.add(core.EntityDevices, "network_name", KindString, NormalizeString, WeightDescriptive, stringOperators, "network.name")
	r.add(core.EntityDevices, "timestamp", KindTimestamp, NormalizeTimestamp, WeightTemporal, timestampOperators, "lastSeen")

	// Target lists
	r.add(core.EntityTargetLists, "list_id", KindString, NormalizeString, WeightIdentity, stringOperators, "id")
	r.add(core.EntityTargetLists, "name", KindString, NormalizeString, WeightDescriptive, stringOperators, "name")
	r.add(core.EntityTargetLists, "owner", KindString, NormalizeString, WeightDescriptive, stringOperators, "owner")
	r.add(core.EntityTargetLists, "category", KindString, NormalizeString, WeightDescriptive, stringOperators, "category")
	r.add(core.EntityTargetLists, "target_count", KindNumber, NormalizeNumber, WeightDescriptive, numberOperators, "count", "targetCount")
	r.add(core.EntityTargetLists, "timestamp", KindTimestamp, NormalizeTimestamp, WeightTemporal, timestampOperators, "lastUpdated", "ts")

	r.rebuildNames()
	return r
}

// add registers one entry. Only called during construction.
func (r *Registry) add(entity core.EntityType, name string, kind ValueKind, norm Normalizer, weight float64, ops []Operator, paths ...string) {
	if r.entries[entity] == nil {
		r.entries[entity] = make(map[string]*Entry)
	}
	r.entries[entity][name] = &Entry{
		Name:       name,
		Entity:     entity,
		Paths:      paths,
		Kind:       kind,
		Normalizer: norm,
		Operators:  ops,
		Weight:     weight,
	}
}

// rebuildNames refreshes the sorted name cache.
func (r *Registry) rebuildNames() {
	for entity, table := range r.entries {
		names := make([]string, 0, len(table))
		for name := range table {
			names = append(names, name)
		}
		sort.Strings(names)
		r.names[entity] = names
	}
}

// Resolve looks up a logical field for an entity type. Field names are
// case-sensitive. On a miss it returns a *NotFoundError carrying the valid
// field enumeration and a suggestion when a close lexical match exists.
func (r *Registry) Resolve(field string, entity core.EntityType) (*Entry, error) {
	table, ok := r.entries[entity]
	if !ok {
		return nil, fmt.Errorf("no field registry for entity type %q", entity)
	}

	entry, ok := table[field]
	if !ok {
		valid := r.FieldNames(entity)
		return nil, &NotFoundError{
			Field:       field,
			Entity:      entity,
			ValidFields: valid,
			Suggestion:  Suggest(field, valid),
		}
	}

	return entry, nil
}

// FieldNames returns the sorted logical field names for an entity type.
func (r *Registry) FieldNames(entity core.EntityType) []string {
	return r.names[entity]
}

// SharedFields returns the sorted logical field names present in the
// registry of every given entity type. Used by correlation validation and
// by the field-combination suggester.
func (r *Registry) SharedFields(entities ...core.EntityType) []string {
	if len(entities) == 0 {
		return nil
	}

	var shared []string
	for _, name := range r.FieldNames(entities[0]) {
		inAll := true
		for _, entity := range entities[1:] {
			if _, ok := r.entries[entity][name]; !ok {
				inAll = false
				break
			}
		}
		if inAll {
			shared = append(shared, name)
		}
	}
	return shared
}

// overlayFile is the YAML shape for candidate-path overrides:
//
//	flows:
//	  device_ip: ["device.ip", "deviceIP", "dev.addr"]
type overlayFile map[string]map[string][]string

// maxOverlaySize bounds the override file to keep hostile YAML out.
const maxOverlaySize = 1 * 1024 * 1024

// LoadOverrides replaces candidate-path lists from a YAML file. Only known
// entity/field pairs may be overridden; the logical field surface itself is
// fixed. Must be called during initialization, before the registry is
// shared across goroutines.
func (r *Registry) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read field overrides %q: %w", path, err)
	}
	if len(data) > maxOverlaySize {
		return fmt.Errorf("field overrides file exceeds maximum size of %d bytes", maxOverlaySize)
	}

	var overlay overlayFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("failed to parse field overrides YAML: %w", err)
	}

	for entityName, table := range overlay {
		entity, err := core.ParseEntityType(entityName)
		if err != nil {
			return fmt.Errorf("field overrides: %w", err)
		}
		for field, paths := range table {
			entry, ok := r.entries[entity][field]
			if !ok {
				return fmt.Errorf("field overrides: %q is not a registered field of %q", field, entity)
			}
			if len(paths) == 0 {
				return fmt.Errorf("field overrides: %s.%s has no candidate paths", entity, field)
			}
			for _, p := range paths {
				if strings.TrimSpace(p) == "" {
					return fmt.Errorf("field overrides: %s.%s contains an empty path", entity, field)
				}
			}
			entry.Paths = paths
		}
	}

	return nil
}
