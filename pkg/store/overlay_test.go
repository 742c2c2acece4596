package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"relcore/pkg/primitives"
	"relcore/pkg/row"
)

func TestOverlay_ShadowsBase(t *testing.T) {
	s, reg := demoStore(t)
	commitRow(t, s, "products", 1, productRow(t, reg, 1, "Dark Chocolate", 500))
	commitRow(t, s, "products", 2, productRow(t, reg, 2, "Espresso Beans", 1200))

	o := NewOverlay(s.Snapshot())
	o.Put("products", 2, productRow(t, reg, 2, "Espresso Beans", 999))
	o.Put("products", 3, productRow(t, reg, 3, "Sea Salt", 300))
	o.Delete("products", 1)

	_, ok := o.Get("products", 1)
	require.False(t, ok, "staged delete must hide the committed row")

	vr, ok := o.Get("products", 2)
	require.True(t, ok)
	require.Equal(t, "999", vr.Row.Named("price_cents").String())
	require.Equal(t, primitives.Version(1), vr.Version, "staged update keeps the base stamp")

	vr, ok = o.Get("products", 3)
	require.True(t, ok)
	require.Equal(t, primitives.ZeroVersion, vr.Version, "new rows have the zero stamp")
}

func TestOverlay_ScanMergesAndOrders(t *testing.T) {
	s, reg := demoStore(t)
	commitRow(t, s, "products", 2, productRow(t, reg, 2, "b", 1))
	commitRow(t, s, "products", 4, productRow(t, reg, 4, "d", 1))

	o := NewOverlay(s.Snapshot())
	o.Put("products", 1, productRow(t, reg, 1, "a", 1))
	o.Put("products", 3, productRow(t, reg, 3, "c", 1))
	o.Delete("products", 4)

	var keys []primitives.RowKey
	o.Scan("products", func(vr *row.Versioned) bool {
		keys = append(keys, vr.Key)
		return true
	})
	require.Equal(t, []primitives.RowKey{1, 2, 3}, keys)
}
