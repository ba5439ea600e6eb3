package typedef

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meganemura/norikra/errors"
	"github.com/meganemura/norikra/fieldset"
)

func TestAddTarget_LazyAndEager(t *testing.T) {
	m := NewManager(nil)

	lazy, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	assert.True(t, lazy)
	assert.True(t, m.IsLazy("visit"))
	assert.False(t, m.Activated("visit"))

	eager, err := m.AddTarget("orders", map[string]string{"id": "int", "total": "double"})
	require.NoError(t, err)
	assert.False(t, eager)
	assert.False(t, m.IsLazy("orders"))
}

func TestAddTarget_Duplicate(t *testing.T) {
	m := NewManager(nil)

	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)

	_, err = m.AddTarget("visit", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestDeriveBaseFieldSet_FromSample(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)

	fs, err := m.DeriveBaseFieldSet("visit", map[string]any{"path": "/a", "status": float64(200)})
	require.NoError(t, err)
	assert.Equal(t, "path:string,status:integer", fs.Summary())
	assert.Empty(t, fs.EventTypeName(), "derived fieldset must be unbound")
}

func TestDeriveBaseFieldSet_ReservationOverridesGuess(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	require.NoError(t, m.ReserveFieldType("visit", "status", "string"))

	fs, err := m.DeriveBaseFieldSet("visit", map[string]any{"status": float64(200)})
	require.NoError(t, err)
	assert.Equal(t, "status:string", fs.Summary())
}

func TestDeriveBaseFieldSet_FromDeclaredFields(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("orders", map[string]string{"id": "int"})
	require.NoError(t, err)

	fs, err := m.DeriveBaseFieldSet("orders", nil)
	require.NoError(t, err)
	assert.Equal(t, "id:integer", fs.Summary())

	// A lazy target with no reservations has nothing to derive from.
	_, err = m.AddTarget("visit", nil)
	require.NoError(t, err)
	_, err = m.DeriveBaseFieldSet("visit", nil)
	assert.Error(t, err)
}

func activate(t *testing.T, m *Manager, target string, fields map[string]any) *fieldset.FieldSet {
	t.Helper()
	base, err := m.DeriveBaseFieldSet(target, fields)
	require.NoError(t, err)
	base.Bind(target, fieldset.LevelBase)
	require.NoError(t, m.ActivateTarget(target, base))
	return base
}

func TestActivateTarget(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)

	base, err := m.DeriveBaseFieldSet("visit", map[string]any{"path": "/a"})
	require.NoError(t, err)

	// Unbound base is rejected.
	require.Error(t, m.ActivateTarget("visit", base))

	base.Bind("visit", fieldset.LevelBase)
	require.NoError(t, m.ActivateTarget("visit", base))
	assert.True(t, m.Activated("visit"))
	assert.False(t, m.IsLazy("visit"))
	assert.Equal(t, base, m.BaseFieldSet("visit"))
}

func TestClassify(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	activate(t, m, "visit", map[string]any{"path": "/a", "status": float64(200)})

	// Unknown shape: derived, not known.
	fs, known, err := m.Classify("visit", map[string]any{"path": "/b", "status": float64(200), "referer": "x"})
	require.NoError(t, err)
	assert.False(t, known)
	assert.Equal(t, "path,referer,status", fs.NamesKey())

	// Register it as a data fieldset, then the same shape is known.
	fs.Bind("visit", fieldset.LevelData)
	require.NoError(t, m.RegisterDataFieldSet("visit", fs))

	again, known, err := m.Classify("visit", map[string]any{"path": "/c", "status": float64(404), "referer": "y"})
	require.NoError(t, err)
	assert.True(t, known)
	assert.Equal(t, fs.EventTypeName(), again.EventTypeName())
}

func TestClassify_FieldTypesFollowBase(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	activate(t, m, "visit", map[string]any{"status": float64(200)})

	// status came back as a fractional number, but the base pins it integer.
	fs, _, err := m.Classify("visit", map[string]any{"status": 200.5, "extra": "x"})
	require.NoError(t, err)
	f, ok := fs.Field("status")
	require.True(t, ok)
	assert.Equal(t, fieldset.TypeInteger, f.Type)
}

func TestClassify_ReservationRetypesKnownShape(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	activate(t, m, "visit", map[string]any{"path": "/a"})

	data, err := fieldset.New(map[string]string{"status": "int"})
	require.NoError(t, err)
	data.Bind("visit", fieldset.LevelData)
	require.NoError(t, m.RegisterDataFieldSet("visit", data))

	// Same field names, but the reservation makes the shape a new schema.
	require.NoError(t, m.ReserveFieldType("visit", "status", "string"))

	fs, known, err := m.Classify("visit", map[string]any{"status": "teapot"})
	require.NoError(t, err)
	assert.False(t, known, "retyped shape must not resolve to the stale fieldset")
	assert.Equal(t, "status:string", fs.Summary())
	assert.Empty(t, fs.EventTypeName(), "fresh derivation is unbound")
}

func TestNormalize(t *testing.T) {
	m := NewManager(nil)
	fs, err := fieldset.New(map[string]string{"path": "string", "status": "int", "ratio": "float", "ok": "bool"})
	require.NoError(t, err)

	payload := m.Normalize(map[string]any{
		"path":   "/a",
		"status": float64(200),
		"ratio":  "0.5",
		"ok":     "true",
		"junk":   "dropped",
	}, fs)

	assert.Equal(t, map[string]any{
		"path":   "/a",
		"status": int64(200),
		"ratio":  0.5,
		"ok":     true,
	}, payload)
}

func TestNormalize_KeepsUncastableValuesRaw(t *testing.T) {
	m := NewManager(nil)
	fs, err := fieldset.New(map[string]string{"status": "int", "ok": "bool"})
	require.NoError(t, err)

	payload := m.Normalize(map[string]any{
		"status": "teapot",
		"ok":     float64(1),
	}, fs)

	// Neither value fits its declared type; both survive unchanged
	// instead of being coerced to a string or to true.
	assert.Equal(t, "teapot", payload["status"])
	assert.Equal(t, float64(1), payload["ok"])
}

func TestIsQueryReady(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)

	refs := map[string][]string{"visit": {"path"}}
	assert.False(t, m.IsQueryReady(refs), "not activated yet")

	activate(t, m, "visit", map[string]any{"path": "/a"})
	assert.True(t, m.IsQueryReady(refs))

	assert.False(t, m.IsQueryReady(map[string][]string{"visit": {"path", "referer"}}),
		"unknown field type keeps the query waiting")
	assert.False(t, m.IsQueryReady(map[string][]string{"ghost": nil}), "unknown target")

	// A reservation alone resolves the missing field.
	require.NoError(t, m.ReserveFieldType("visit", "referer", "string"))
	assert.True(t, m.IsQueryReady(map[string][]string{"visit": {"path", "referer"}}))
}

func TestResolveFieldSetMapping(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	activate(t, m, "visit", map[string]any{"path": "/a", "status": float64(200)})

	mapping, err := m.ResolveFieldSetMapping(map[string][]string{"visit": {"path"}})
	require.NoError(t, err)
	assert.Equal(t, "path:string", mapping["visit"].Summary())

	// No explicit fields resolves to the base content.
	mapping, err = m.ResolveFieldSetMapping(map[string][]string{"visit": nil})
	require.NoError(t, err)
	assert.Equal(t, "path:string,status:integer", mapping["visit"].Summary())

	_, err = m.ResolveFieldSetMapping(map[string][]string{"visit": {"ghost"}})
	require.Error(t, err)
}

func TestBindQueryFieldSet_SharesBySummary(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	activate(t, m, "visit", map[string]any{"path": "/a"})

	a, err := fieldset.New(map[string]string{"path": "string"})
	require.NoError(t, err)
	a.Bind("visit", fieldset.LevelQuery)

	bound, fresh, err := m.BindQueryFieldSet("visit", a)
	require.NoError(t, err)
	assert.True(t, fresh)
	assert.Equal(t, a, bound)

	b, err := fieldset.New(map[string]string{"path": "string"})
	require.NoError(t, err)
	b.Bind("visit", fieldset.LevelQuery)

	bound, fresh, err = m.BindQueryFieldSet("visit", b)
	require.NoError(t, err)
	assert.False(t, fresh, "same summary shares the existing registration")
	assert.Equal(t, a.EventTypeName(), bound.EventTypeName())

	// Two references: first unbind keeps it, second removes it.
	assert.False(t, m.UnbindQueryFieldSet("visit", a))
	assert.True(t, m.UnbindQueryFieldSet("visit", a))
	assert.False(t, m.UnbindQueryFieldSet("visit", a), "already gone")
}

func TestSupersetsAndSubsets(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	base := activate(t, m, "visit", map[string]any{"path": "/a", "status": float64(200)})

	query, err := fieldset.New(map[string]string{"path": "string"})
	require.NoError(t, err)
	query.Bind("visit", fieldset.LevelQuery)
	_, _, err = m.BindQueryFieldSet("visit", query)
	require.NoError(t, err)

	wide, err := fieldset.New(map[string]string{"path": "string", "status": "int", "referer": "string"})
	require.NoError(t, err)
	wide.Bind("visit", fieldset.LevelData)
	require.NoError(t, m.RegisterDataFieldSet("visit", wide))

	narrow, err := fieldset.New(map[string]string{"status": "int"})
	require.NoError(t, err)
	narrow.Bind("visit", fieldset.LevelData)
	require.NoError(t, m.RegisterDataFieldSet("visit", narrow))

	supers := m.SupersetsOf("visit", query)
	require.Len(t, supers, 1)
	assert.Equal(t, wide.EventTypeName(), supers[0].EventTypeName())

	subs := m.SubsetsOf("visit", wide)
	require.Len(t, subs, 2)
	names := []string{subs[0].EventTypeName(), subs[1].EventTypeName()}
	assert.Contains(t, names, base.EventTypeName())
	assert.Contains(t, names, query.EventTypeName())

	subs = m.SubsetsOf("visit", narrow)
	assert.Empty(t, subs, "narrow data fieldset contains neither base nor query fieldset")
}

func TestReplaceFieldSet(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	activate(t, m, "visit", map[string]any{"path": "/a"})

	data, err := fieldset.New(map[string]string{"path": "string", "referer": "string"})
	require.NoError(t, err)
	data.Bind("visit", fieldset.LevelData)
	require.NoError(t, m.RegisterDataFieldSet("visit", data))

	rebound := data.Rebind(true)
	require.NoError(t, m.ReplaceFieldSet("visit", data, rebound))

	got, ok := m.LookupDataFieldSet("visit", data.Summary())
	require.True(t, ok)
	assert.Equal(t, rebound.EventTypeName(), got.EventTypeName())

	// Replacing an unknown fieldset is reported.
	ghost, err := fieldset.New(map[string]string{"ghost": "string"})
	require.NoError(t, err)
	ghost.Bind("visit", fieldset.LevelData)
	assert.Error(t, m.ReplaceFieldSet("visit", ghost, ghost.Rebind(true)))
}

func TestRemoveTarget(t *testing.T) {
	m := NewManager(nil)
	_, err := m.AddTarget("visit", nil)
	require.NoError(t, err)
	activate(t, m, "visit", map[string]any{"path": "/a"})

	m.RemoveTarget("visit")
	assert.False(t, m.HasTarget("visit"))
	assert.Nil(t, m.BaseFieldSet("visit"))

	// Idempotent.
	m.RemoveTarget("visit")
}
