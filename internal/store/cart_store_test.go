package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"storefront/internal/domain/model"
	infraRepo "storefront/internal/infra/repository"
	repo "storefront/internal/repository"
	"storefront/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// =====================
// helpers
// =====================

var decimalEqual = cmp.Comparer(func(a, b decimal.Decimal) bool { return a.Equal(b) })

func item(id, size, color string, qty int) model.CartLineItem {
	return model.CartLineItem{
		Product: model.Product{
			ID:     model.ProductID(id),
			Name:   "Product " + id,
			Price:  decimal.RequireFromString("10.50"),
			Sizes:  []string{"s", "m", "l"},
			Colors: []string{"red", "blue"},
			Images: map[string]string{"red": "/r.png", "blue": "/b.png"},
		},
		Quantity:      qty,
		SelectedSize:  size,
		SelectedColor: color,
	}
}

func waitHydrated(t *testing.T, s *store.Store) {
	t.Helper()
	select {
	case <-s.Hydrated():
	case <-time.After(2 * time.Second):
		t.Fatal("store did not hydrate")
	}
}

func newStore(t *testing.T, kv repo.KVStore, opts ...store.Option) *store.Store {
	t.Helper()
	s := store.New(context.Background(), kv, opts...)
	waitHydrated(t, s)
	return s
}

func keys(c model.Cart) []model.LineKey {
	out := make([]model.LineKey, 0, len(c))
	for _, it := range c {
		out = append(out, it.Key())
	}
	return out
}

type KVMock struct{ mock.Mock }

func (m *KVMock) Get(ctx context.Context, key string) (string, error) {
	args := m.Called(ctx, key)
	return args.String(0), args.Error(1)
}

func (m *KVMock) Set(ctx context.Context, key string, value string) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

// Get を release が閉じるまで止める
type gatedKV struct {
	*infraRepo.MemoryKVStore
	release chan struct{}
}

func (g *gatedKV) Get(ctx context.Context, key string) (string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	return g.MemoryKVStore.Get(ctx, key)
}

// =====================
// add / remove / clear
// =====================

func TestStore_AddToCart_NoDuplicateTriples(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	adds := []model.CartLineItem{
		item("1", "m", "red", 1),
		item("1", "m", "red", 2),
		item("1", "l", "red", 1),
		item("2", "m", "red", 1),
		item("1", "m", "blue", 1),
		item("1", "l", "red", 4),
		item("2", "m", "red", 1),
	}
	for _, it := range adds {
		require.NoError(t, s.AddToCart(ctx, it))
	}

	cart := s.Snapshot().Cart
	seen := map[model.LineKey]bool{}
	for _, it := range cart {
		assert.False(t, seen[it.Key()], "duplicate entry %+v", it.Key())
		seen[it.Key()] = true
	}
	assert.Len(t, cart, 4)
	assert.Equal(t, 11, cart.Count())
}

func TestStore_AddToCart_MergesQuantity(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 2)))
	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 3)))

	cart := s.Snapshot().Cart
	require.Len(t, cart, 1)
	assert.Equal(t, 5, cart[0].Quantity)
}

func TestStore_AddToCart_MergeKeepsExistingFields(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	first := item("1", "m", "red", 1)
	require.NoError(t, s.AddToCart(ctx, first))

	second := item("1", "m", "red", 1)
	second.Name = "renamed"
	second.Price = decimal.RequireFromString("99")
	require.NoError(t, s.AddToCart(ctx, second))

	got := s.Snapshot().Cart[0]
	assert.Equal(t, "Product 1", got.Name)
	assert.True(t, got.Price.Equal(first.Price))
	assert.Equal(t, 2, got.Quantity)
}

func TestStore_AddToCart_DistinctBySize(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))
	require.NoError(t, s.AddToCart(ctx, item("1", "l", "red", 1)))

	assert.Len(t, s.Snapshot().Cart, 2)
}

func TestStore_AddToCart_MergeKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))
	require.NoError(t, s.AddToCart(ctx, item("2", "m", "red", 1)))
	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 2)))

	cart := s.Snapshot().Cart
	assert.Equal(t, []model.LineKey{
		{ProductID: "1", Size: "m", Color: "red"},
		{ProductID: "2", Size: "m", Color: "red"},
	}, keys(cart))
	assert.Equal(t, 3, cart[0].Quantity)
}

func TestStore_AddToCart_Quantity(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	// 0 は未指定扱い
	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 0)))
	assert.Equal(t, 1, s.Snapshot().Cart[0].Quantity)

	err := s.AddToCart(ctx, item("1", "m", "red", -1))
	assert.ErrorIs(t, err, store.ErrInvalidQuantity)
	assert.Equal(t, 1, s.Snapshot().Cart[0].Quantity)
}

func TestStore_AddToCart_MissingID(t *testing.T) {
	s := newStore(t, infraRepo.NewMemoryKVStore())

	err := s.AddToCart(context.Background(), item("", "m", "red", 1))
	assert.ErrorIs(t, err, store.ErrInvalidLineItem)
	assert.Empty(t, s.Snapshot().Cart)
}

func TestStore_RemoveFromCart_Precise(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 2)))
	require.NoError(t, s.AddToCart(ctx, item("1", "l", "red", 1)))

	require.NoError(t, s.RemoveFromCart(ctx, item("1", "m", "red", 0)))

	cart := s.Snapshot().Cart
	require.Len(t, cart, 1)
	assert.Equal(t, model.LineKey{ProductID: "1", Size: "l", Color: "red"}, cart[0].Key())
	assert.Equal(t, 1, cart[0].Quantity)
}

func TestStore_RemoveFromCart_NoMatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))
	before := s.Snapshot().Cart

	require.NoError(t, s.RemoveFromCart(ctx, item("9", "m", "red", 1)))
	assert.Empty(t, cmp.Diff(before, s.Snapshot().Cart, decimalEqual))
}

func TestStore_RemoveFromCart_PartialItemDoesNotMatchSizedEntry(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))
	require.NoError(t, s.AddToCart(ctx, item("1", "", "red", 1)))

	require.NoError(t, s.RemoveFromCart(ctx, item("1", "", "red", 0)))

	assert.Equal(t, []model.LineKey{{ProductID: "1", Size: "m", Color: "red"}}, keys(s.Snapshot().Cart))

	err := s.RemoveFromCart(ctx, item("", "m", "red", 0))
	assert.ErrorIs(t, err, store.ErrInvalidLineItem)
}

func TestStore_TakeCart(t *testing.T) {
	ctx := context.Background()
	kv := infraRepo.NewMemoryKVStore()
	s := newStore(t, kv)

	var seen []int
	unsubscribe := s.Subscribe(func(st store.State) { seen = append(seen, len(st.Cart)) })
	defer unsubscribe()

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 2)))
	require.NoError(t, s.AddToCart(ctx, item("2", "s", "blue", 1)))

	taken, err := s.TakeCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, []model.LineKey{
		{ProductID: "1", Size: "m", Color: "red"},
		{ProductID: "2", Size: "s", Color: "blue"},
	}, keys(taken))
	assert.Empty(t, s.Snapshot().Cart)
	assert.Equal(t, []int{1, 2, 0}, seen)

	// 空になった状態が永続化されている
	raw, err := kv.Get(ctx, store.DefaultKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"cart":[],"version":1}`, raw)

	taken, err = s.TakeCart(ctx)
	require.NoError(t, err)
	assert.Empty(t, taken)
}

func TestStore_ClearCart_Idempotent(t *testing.T) {
	ctx := context.Background()
	kv := infraRepo.NewMemoryKVStore()
	s := newStore(t, kv)

	require.NoError(t, s.ClearCart(ctx))
	assert.Empty(t, s.Snapshot().Cart)

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))
	require.NoError(t, s.ClearCart(ctx))
	once, err := kv.Get(ctx, store.DefaultKey)
	require.NoError(t, err)

	require.NoError(t, s.ClearCart(ctx))
	twice, err := kv.Get(ctx, store.DefaultKey)
	require.NoError(t, err)

	assert.Empty(t, s.Snapshot().Cart)
	assert.Equal(t, once, twice)
}

func TestStore_SnapshotIsIsolated(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())
	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))

	snap := s.Snapshot()
	snap.Cart[0].Quantity = 100
	snap.Cart[0].Sizes[0] = "xxl"
	snap.Cart[0].Images["red"] = "/changed.png"

	got := s.Snapshot().Cart[0]
	assert.Equal(t, 1, got.Quantity)
	assert.Equal(t, "s", got.Sizes[0])
	assert.Equal(t, "/r.png", got.Images["red"])
}

// =====================
// persistence / hydration
// =====================

func TestStore_PersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := infraRepo.NewMemoryKVStore()
	s := newStore(t, kv)

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 2)))
	require.NoError(t, s.AddToCart(ctx, item("2", "s", "blue", 1)))
	require.NoError(t, s.AddToCart(ctx, item("1", "l", "red", 1)))
	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))
	require.NoError(t, s.RemoveFromCart(ctx, item("2", "s", "blue", 0)))
	require.NoError(t, s.AddToCart(ctx, item("3", "s", "blue", 5)))

	want := s.Snapshot().Cart

	restored := newStore(t, kv)
	got := restored.Snapshot()
	assert.True(t, got.HasHydrated)
	assert.Empty(t, cmp.Diff(want, got.Cart, decimalEqual))
}

func TestStore_Hydrate_Absent(t *testing.T) {
	s := newStore(t, infraRepo.NewMemoryKVStore())

	st := s.Snapshot()
	assert.True(t, st.HasHydrated)
	assert.Empty(t, st.Cart)
}

func TestStore_Hydrate_Malformed(t *testing.T) {
	ctx := context.Background()
	kv := infraRepo.NewMemoryKVStore()
	require.NoError(t, kv.Set(ctx, store.DefaultKey, "{not json"))

	core, logs := observer.New(zapcore.WarnLevel)
	s := newStore(t, kv, store.WithLogger(zap.New(core)))

	st := s.Snapshot()
	assert.True(t, st.HasHydrated)
	assert.Empty(t, st.Cart)
	assert.Equal(t, 1, logs.FilterMessage("persisted cart is corrupt, starting empty").Len())
}

func TestStore_Hydrate_ReadError(t *testing.T) {
	kv := new(KVMock)
	kv.On("Get", mock.Anything, "cart").Return("", errors.New("disk gone"))

	s := newStore(t, kv)

	assert.True(t, s.HasHydrated())
	assert.Empty(t, s.Snapshot().Cart)
	kv.AssertExpectations(t)
}

func TestStore_Hydrate_StorageHangs(t *testing.T) {
	kv := &gatedKV{MemoryKVStore: infraRepo.NewMemoryKVStore(), release: make(chan struct{})}
	defer close(kv.release)

	s := newStore(t, kv, store.WithHydrateTimeout(20*time.Millisecond))
	assert.True(t, s.HasHydrated())
	assert.Empty(t, s.Snapshot().Cart)
}

func TestStore_Hydrate_ToleratesDrift(t *testing.T) {
	ctx := context.Background()
	kv := infraRepo.NewMemoryKVStore()

	// ブラウザ側のenvelope・数値ID・未知フィールド・不正明細・重複
	raw := `{"state":{"cart":[
		{"id":1,"name":"A","price":"10","quantity":2,"selectedSize":"m","selectedColor":"red","extra":true},
		{"id":"","name":"no id","quantity":1},
		{"id":"2","name":"B","price":"5","quantity":0,"selectedSize":"s","selectedColor":"blue"},
		{"id":"1","name":"A again","price":"10","quantity":3,"selectedSize":"m","selectedColor":"red"},
		{"id":"3","name":"C","price":"7","quantity":"3","selectedSize":"s","selectedColor":"blue"},
		{"id":"4","name":"D","price":"not money","quantity":1,"selectedSize":"s","selectedColor":"blue"},
		null,
		{"id":"5","name":"E","price":"2","quantity":1,"selectedSize":"","selectedColor":"black"}
	]},"version":0}`
	require.NoError(t, kv.Set(ctx, "cart", raw))

	s := newStore(t, kv)

	cart := s.Snapshot().Cart
	require.Len(t, cart, 2)
	assert.Equal(t, model.ProductID("1"), cart[0].ID)
	assert.Equal(t, "A", cart[0].Name)
	assert.Equal(t, 5, cart[0].Quantity)
	assert.Equal(t, model.ProductID("5"), cart[1].ID)
}

func TestStore_CustomKey(t *testing.T) {
	ctx := context.Background()
	kv := infraRepo.NewMemoryKVStore()
	s := newStore(t, kv, store.WithKey("guest-cart"))

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))

	_, err := kv.Get(ctx, "guest-cart")
	assert.NoError(t, err)
	_, err = kv.Get(ctx, store.DefaultKey)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestStore_PersistFailureDoesNotFailMutation(t *testing.T) {
	ctx := context.Background()
	kv := new(KVMock)
	kv.On("Get", mock.Anything, "cart").Return("", repo.ErrNotFound)
	kv.On("Set", mock.Anything, "cart", mock.Anything).Return(errors.New("quota exceeded"))

	core, logs := observer.New(zapcore.WarnLevel)
	s := newStore(t, kv, store.WithLogger(zap.New(core)))

	err := s.AddToCart(ctx, item("1", "m", "red", 1))
	assert.NoError(t, err)
	assert.Len(t, s.Snapshot().Cart, 1)
	assert.Equal(t, 1, logs.FilterMessage("persist cart failed").Len())
	kv.AssertExpectations(t)
}

func TestStore_MutationWaitsForHydration(t *testing.T) {
	ctx := context.Background()
	mem := infraRepo.NewMemoryKVStore()
	prev := newStore(t, mem)
	require.NoError(t, prev.AddToCart(ctx, item("1", "m", "red", 2)))

	kv := &gatedKV{MemoryKVStore: mem, release: make(chan struct{})}
	s := store.New(ctx, kv)
	assert.False(t, s.HasHydrated())

	done := make(chan error, 1)
	go func() {
		done <- s.AddToCart(ctx, item("2", "m", "red", 1))
	}()

	select {
	case <-done:
		t.Fatal("mutation finished before hydration")
	case <-time.After(30 * time.Millisecond):
	}

	close(kv.release)
	require.NoError(t, <-done)
	waitHydrated(t, s)

	assert.Equal(t, []model.LineKey{
		{ProductID: "1", Size: "m", Color: "red"},
		{ProductID: "2", Size: "m", Color: "red"},
	}, keys(s.Snapshot().Cart))
}

func TestStore_MutationBeforeHydrationHonorsContext(t *testing.T) {
	kv := &gatedKV{MemoryKVStore: infraRepo.NewMemoryKVStore(), release: make(chan struct{})}
	s := store.New(context.Background(), kv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.AddToCart(ctx, item("1", "m", "red", 1))
	assert.ErrorIs(t, err, context.Canceled)

	close(kv.release)
	waitHydrated(t, s)
	assert.Empty(t, s.Snapshot().Cart)
}

// =====================
// subscription
// =====================

func TestStore_Subscribe_InOrder(t *testing.T) {
	ctx := context.Background()
	kv := &gatedKV{MemoryKVStore: infraRepo.NewMemoryKVStore(), release: make(chan struct{})}
	s := store.New(ctx, kv)

	var (
		mu     sync.Mutex
		counts []int
		flags  []bool
	)
	unsubscribe := s.Subscribe(func(st store.State) {
		mu.Lock()
		defer mu.Unlock()
		counts = append(counts, st.Cart.Count())
		flags = append(flags, st.HasHydrated)
	})

	close(kv.release)
	waitHydrated(t, s)

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))
	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 2)))
	require.NoError(t, s.ClearCart(ctx))

	unsubscribe()
	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{0, 1, 3, 0}, counts)
	assert.Equal(t, []bool{true, true, true, true}, flags)
}

func TestStore_Subscribe_CanReadSnapshot(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, infraRepo.NewMemoryKVStore())

	var got []int
	s.Subscribe(func(store.State) {
		got = append(got, len(s.Snapshot().Cart))
	})

	require.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))
	assert.Equal(t, []int{1}, got)
}

func TestStore_ConcurrentAdds(t *testing.T) {
	ctx := context.Background()
	kv := infraRepo.NewMemoryKVStore()
	s := newStore(t, kv)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.AddToCart(ctx, item("1", "m", "red", 1)))
		}()
	}
	wg.Wait()

	cart := s.Snapshot().Cart
	require.Len(t, cart, 1)
	assert.Equal(t, 50, cart[0].Quantity)

	// 最後の書き込みが最終状態と一致する
	restored := newStore(t, kv)
	assert.Equal(t, 50, restored.Snapshot().Cart[0].Quantity)
}
