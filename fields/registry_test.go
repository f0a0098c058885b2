package fields

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firewatch/core"
)

func TestRegistryResolve(t *testing.T) {
	r := NewRegistry()

	entry, err := r.Resolve("protocol", core.EntityFlows)
	require.NoError(t, err)
	assert.Equal(t, "protocol", entry.Name)
	assert.Equal(t, KindString, entry.Kind)
	assert.Equal(t, []string{"protocol"}, entry.Paths)

	entry, err = r.Resolve("device_ip", core.EntityFlows)
	require.NoError(t, err)
	assert.Equal(t, []string{"device.ip", "deviceIP"}, entry.Paths)
	assert.Equal(t, WeightIdentity, entry.Weight)
}

func TestRegistryResolveUnknownField(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("protocl", core.EntityFlows)
	require.Error(t, err)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Equal(t, "protocl", notFound.Field)
	assert.Equal(t, core.EntityFlows, notFound.Entity)
	assert.Contains(t, notFound.ValidFields, "protocol")
	assert.Contains(t, notFound.ValidFields, "device_ip")
	assert.Equal(t, "protocol", notFound.Suggestion)
	assert.Contains(t, err.Error(), "valid fields")
	assert.Contains(t, err.Error(), `did you mean "protocol"`)
}

func TestRegistryResolveNoSuggestionWhenFar(t *testing.T) {
	r := NewRegistry()

	_, err := r.Resolve("zzzzzzzz", core.EntityAlarms)
	require.Error(t, err)

	var notFound *NotFoundError
	require.True(t, errors.As(err, &notFound))
	assert.Empty(t, notFound.Suggestion)
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestRegistryFieldNamesSorted(t *testing.T) {
	r := NewRegistry()

	names := r.FieldNames(core.EntityAlarms)
	require.NotEmpty(t, names)
	for i := 1; i < len(names); i++ {
		assert.Less(t, names[i-1], names[i], "field names must be sorted")
	}
}

func TestRegistrySharedFields(t *testing.T) {
	r := NewRegistry()

	shared := r.SharedFields(core.EntityFlows, core.EntityAlarms)
	assert.Contains(t, shared, "device_ip")
	assert.Contains(t, shared, "region")
	assert.Contains(t, shared, "timestamp")
	assert.NotContains(t, shared, "severity")
	assert.NotContains(t, shared, "bytes")

	all := r.SharedFields(
		core.EntityFlows, core.EntityAlarms, core.EntityRules,
		core.EntityDevices, core.EntityTargetLists,
	)
	assert.Contains(t, all, "timestamp")
}

func TestRegistryOperatorSets(t *testing.T) {
	r := NewRegistry()

	severity, err := r.Resolve("severity", core.EntityAlarms)
	require.NoError(t, err)
	assert.True(t, severity.Allows(OpGreaterEq))
	assert.False(t, severity.Allows(OpWildcard))
	assert.False(t, severity.Allows(OpRange))

	bytes, err := r.Resolve("bytes", core.EntityFlows)
	require.NoError(t, err)
	assert.True(t, bytes.Allows(OpRange))
	assert.False(t, bytes.Allows(OpWildcard))

	name, err := r.Resolve("device_name", core.EntityDevices)
	require.NoError(t, err)
	assert.True(t, name.Allows(OpWildcard))
	assert.False(t, name.Allows(OpGreater))
}

func TestRegistryLoadOverrides(t *testing.T) {
	r := NewRegistry()

	dir := t.TempDir()
	path := filepath.Join(dir, "fields.yaml")
	overlay := []byte("flows:\n  device_ip: [\"dev.addr\", \"deviceIP\"]\n")
	require.NoError(t, os.WriteFile(path, overlay, 0o600))

	require.NoError(t, r.LoadOverrides(path))

	entry, err := r.Resolve("device_ip", core.EntityFlows)
	require.NoError(t, err)
	assert.Equal(t, []string{"dev.addr", "deviceIP"}, entry.Paths)
}

func TestRegistryLoadOverridesRejectsUnknownField(t *testing.T) {
	r := NewRegistry()

	dir := t.TempDir()
	path := filepath.Join(dir, "fields.yaml")
	overlay := []byte("flows:\n  bogus: [\"a.b\"]\n")
	require.NoError(t, os.WriteFile(path, overlay, 0o600))

	err := r.LoadOverrides(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a registered field")
}

func TestRegistryLoadOverridesRejectsUnknownEntity(t *testing.T) {
	r := NewRegistry()

	dir := t.TempDir()
	path := filepath.Join(dir, "fields.yaml")
	overlay := []byte("gadgets:\n  device_ip: [\"a.b\"]\n")
	require.NoError(t, os.WriteFile(path, overlay, 0o600))

	require.Error(t, r.LoadOverrides(path))
}
