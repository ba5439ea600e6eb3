package fieldset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NormalizesTypes(t *testing.T) {
	fs, err := New(map[string]string{
		"path":   "string",
		"status": "int",
		"ratio":  "double",
		"ok":     "bool",
	})
	require.NoError(t, err)

	f, ok := fs.Field("status")
	require.True(t, ok)
	assert.Equal(t, TypeInteger, f.Type)

	f, ok = fs.Field("ratio")
	require.True(t, ok)
	assert.Equal(t, TypeFloat, f.Type)

	f, ok = fs.Field("ok")
	require.True(t, ok)
	assert.Equal(t, TypeBoolean, f.Type)
}

func TestNew_RejectsInvalid(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)

	_, err = New(map[string]string{"x": "tensor"})
	assert.Error(t, err)

	_, err = New(map[string]string{"": "string"})
	assert.Error(t, err)
}

func TestSummary_OrderIndependent(t *testing.T) {
	a, err := New(map[string]string{"path": "string", "status": "integer"})
	require.NoError(t, err)
	b, err := New(map[string]string{"status": "int", "path": "string"})
	require.NoError(t, err)

	assert.Equal(t, a.Summary(), b.Summary())
	assert.Equal(t, "path:string,status:integer", a.Summary())
	assert.Equal(t, "path,status", a.NamesKey())
}

func TestSummary_DistinguishesTypes(t *testing.T) {
	a, err := New(map[string]string{"status": "integer"})
	require.NoError(t, err)
	b, err := New(map[string]string{"status": "string"})
	require.NoError(t, err)

	assert.NotEqual(t, a.Summary(), b.Summary())
	assert.Equal(t, a.NamesKey(), b.NamesKey())
}

func TestSubsetSuperset(t *testing.T) {
	base, err := New(map[string]string{"path": "string", "status": "integer"})
	require.NoError(t, err)
	wide, err := New(map[string]string{"path": "string", "status": "integer", "referer": "string"})
	require.NoError(t, err)
	mismatched, err := New(map[string]string{"path": "integer", "status": "integer", "referer": "string"})
	require.NoError(t, err)

	assert.True(t, base.SubsetOf(wide))
	assert.True(t, wide.SupersetOf(base))
	assert.False(t, wide.SubsetOf(base))
	assert.True(t, base.SubsetOf(base), "a fieldset is a subset of itself")

	// Same field name with a different type breaks the relation.
	assert.False(t, base.SubsetOf(mismatched))
	assert.False(t, base.SubsetOf(nil))
}

func TestBind_AssignsUniqueEventTypeNames(t *testing.T) {
	a, err := New(map[string]string{"path": "string"})
	require.NoError(t, err)
	b, err := New(map[string]string{"path": "string"})
	require.NoError(t, err)

	a.Bind("visit", LevelData)
	b.Bind("visit", LevelData)

	assert.Equal(t, "visit", a.Target())
	assert.Equal(t, LevelData, a.Level())
	assert.Contains(t, a.EventTypeName(), "visit_data_")
	assert.NotEqual(t, a.EventTypeName(), b.EventTypeName())
}

func TestRebind(t *testing.T) {
	fs, err := New(map[string]string{"path": "string", "status": "integer"})
	require.NoError(t, err)
	fs.Bind("visit", LevelData)

	same := fs.Rebind(false)
	assert.Equal(t, fs.EventTypeName(), same.EventTypeName())
	assert.Equal(t, fs.Summary(), same.Summary())

	renamed := fs.Rebind(true)
	assert.NotEqual(t, fs.EventTypeName(), renamed.EventTypeName())
	assert.Equal(t, fs.Summary(), renamed.Summary())
	assert.Equal(t, fs.Target(), renamed.Target())
	assert.Equal(t, fs.Level(), renamed.Level())
}

func TestGuessType(t *testing.T) {
	tests := []struct {
		name     string
		value    any
		expected Type
	}{
		{"string", "/index", TypeString},
		{"bool", true, TypeBoolean},
		{"int", 42, TypeInteger},
		{"json integral float", float64(200), TypeInteger},
		{"json fractional float", 0.5, TypeFloat},
		{"nil falls back to string", nil, TypeString},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, GuessType(test.value))
		})
	}
}

func TestDefinition(t *testing.T) {
	fs, err := New(map[string]string{"path": "string", "status": "int"})
	require.NoError(t, err)

	def := fs.Definition()
	assert.Equal(t, map[string]string{"path": "string", "status": "integer"}, def)
}
