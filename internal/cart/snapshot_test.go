package cart

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/bakery-storefront/internal/model"
)

type mapStore struct {
	mu    sync.Mutex
	blobs map[string][]byte
}

func newMapStore() *mapStore {
	return &mapStore{blobs: map[string][]byte{}}
}

func (s *mapStore) Load(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.blobs[key]
	if !ok {
		return nil, assert.AnError
	}
	return b, nil
}

func (s *mapStore) Save(ctx context.Context, key string, blob []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (s *mapStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blobs, key)
	return nil
}

func TestLoad_RestoresPersistedState(t *testing.T) {
	store := newMapStore()
	opts := Options{Key: "cart:s1", Store: store, Directory: fixedDirectory{}}

	c := Load(context.Background(), opts)
	_, err := c.AddItem(espresso(), 3)
	require.NoError(t, err)
	_, err = c.AddItem(medialuna(), 1)
	require.NoError(t, err)
	require.True(t, c.ApplyDiscountCode(context.Background(), "SAVE10").Applied)

	reloaded := Load(context.Background(), opts)

	assert.Equal(t, c.Lines(), reloaded.Lines())
	assert.Equal(t, c.DiscountCode(), reloaded.DiscountCode())
	assert.Equal(t, c.Totals(), reloaded.Totals())
}

func TestLoad_DegradesToEmptyCart(t *testing.T) {
	tests := []struct {
		name string
		blob string
	}{
		{name: "corrupt json", blob: `{"version":1,"lines":[`},
		{name: "other version", blob: `{"version":2,"lines":[]}`},
		{name: "missing version", blob: `{"lines":[]}`},
		{name: "zero quantity", blob: `{"version":1,"lines":[{"id":"l1","product_id":"p","quantity":0,"product":{"id":"p","price":10}}]}`},
		{name: "product mismatch", blob: `{"version":1,"lines":[{"id":"l1","product_id":"p","quantity":1,"product":{"id":"q","price":10}}]}`},
		{name: "duplicate product", blob: `{"version":1,"lines":[{"id":"l1","product_id":"p","quantity":1,"product":{"id":"p","price":10}},{"id":"l2","product_id":"p","quantity":1,"product":{"id":"p","price":10}}]}`},
		{name: "quantity above bound", blob: `{"version":1,"lines":[{"id":"l1","product_id":"p","quantity":1000,"product":{"id":"p","price":10}}]}`},
		{name: "bad discount", blob: `{"version":1,"lines":[],"discount":{"code":"X","type":"percentage","value":150}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMapStore()
			store.blobs["k"] = []byte(tt.blob)

			c := Load(context.Background(), Options{Key: "k", Store: store})
			assert.Empty(t, c.Lines())
			assert.Nil(t, c.DiscountCode())
		})
	}
}

func TestLoad_MissingBlob(t *testing.T) {
	c := Load(context.Background(), Options{Key: "absent", Store: newMapStore()})
	assert.Empty(t, c.Lines())
}

func TestSnapshot_Shape(t *testing.T) {
	c := newTestCart(Options{})
	_, err := c.AddItem(espresso(), 2)
	require.NoError(t, err)

	snap := c.Snapshot()
	assert.Equal(t, SnapshotVersion, snap.Version)
	require.Len(t, snap.Lines, 1)
	assert.Equal(t, SnapshotLine{
		ID:        "line-1",
		ProductID: "esp-001",
		Quantity:  2,
		Product:   espresso(),
	}, snap.Lines[0])

	blob, err := snap.Encode()
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"version":1,"lines":[{"id":"line-1","product_id":"esp-001","quantity":2,
		  "product":{"id":"esp-001","name":"Espresso","price":150,"category":"coffee"}}]}`,
		string(blob))

	decoded, err := DecodeSnapshot(blob)
	require.NoError(t, err)
	assert.Equal(t, snap, decoded)
}

func TestSnapshot_IncludesDiscount(t *testing.T) {
	c := newTestCart(Options{Directory: fixedDirectory{}})
	require.True(t, c.ApplyDiscountCode(context.Background(), "CAFE80").Applied)

	snap := c.Snapshot()
	require.NotNil(t, snap.Discount)
	assert.Equal(t, model.DiscountCode{Code: "CAFE80", Type: model.DiscountFixed, Value: 80}, *snap.Discount)
}

func TestPersist_EmptyCartDeletesBlob(t *testing.T) {
	store := newMapStore()
	c := Load(context.Background(), Options{Key: "k", Store: store, Directory: fixedDirectory{}})

	line, err := c.AddItem(espresso(), 1)
	require.NoError(t, err)
	require.True(t, c.ApplyDiscountCode(context.Background(), "SAVE10").Applied)
	require.Contains(t, store.blobs, "k")

	require.NoError(t, c.RemoveItem(line.ID))
	assert.Contains(t, store.blobs, "k", "discount code alone keeps the snapshot")

	c.RemoveDiscountCode()
	assert.NotContains(t, store.blobs, "k")
}
