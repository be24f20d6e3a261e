package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(Define("test", "Items", itemSchema()))
	r.Register(stubDefinition(&stubHandle{info: TableInfo{Key: "audit", Group: "ops"}}))

	def, ok := r.Lookup("items")
	require.True(t, ok)
	assert.Equal(t, "Items", def.Info.Label)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)

	defs := r.Definitions()
	require.Len(t, defs, 2)
	assert.Equal(t, "audit", defs[0].Info.Key)
	assert.Equal(t, "items", defs[1].Info.Key)

	r.Reset()
	assert.Empty(t, r.Definitions())
}

func TestRegister_Panics(t *testing.T) {
	r := NewRegistry()
	r.Register(Define("test", "Items", itemSchema()))

	assert.Panics(t, func() { r.Register(Define("test", "Items", itemSchema())) })
	assert.Panics(t, func() { r.Register(TableDefinition{Info: TableInfo{Key: "x"}}) })
}

func TestDefaultRegistry(t *testing.T) {
	Reset()
	defer Reset()

	Register(Define("test", "Items", itemSchema()))
	require.Len(t, All(), 1)

	def, ok := Lookup("items")
	require.True(t, ok)
	assert.Equal(t, "test", def.Info.Group)
}
