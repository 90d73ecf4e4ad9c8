// Package store はカートの状態を一元管理する。
//
// 変更（追加・削除・全削除）のたびにカート全体を永続スロットへ書き込み、
// 起動時に一度だけ非同期で復元（hydration）する。
// 復元が終わるまで HasHydrated は false のまま。
package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"storefront/internal/domain/model"
	repo "storefront/internal/repository"

	"go.uber.org/zap"
)

const (
	DefaultKey            = "cart"
	defaultHydrateTimeout = 5 * time.Second
	defaultWriteTimeout   = 3 * time.Second
)

var (
	ErrInvalidLineItem = errors.New("invalid line item")
	ErrInvalidQuantity = errors.New("quantity must be a positive integer")
)

// 読み取り用のスナップショット
type State struct {
	Cart        model.Cart `json:"cart"`
	HasHydrated bool       `json:"hasHydrated"`
}

type Option func(*Store)

func WithKey(key string) Option {
	return func(s *Store) {
		if key != "" {
			s.key = key
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.log = l
		}
	}
}

func WithHydrateTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.hydrateTimeout = d
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

type Store struct {
	kv             repo.KVStore
	key            string
	log            *zap.Logger
	hydrateTimeout time.Duration
	writeTimeout   time.Duration

	mu          sync.Mutex
	cart        model.Cart
	hasHydrated bool
	hydrated    chan struct{}

	// 通知はmu保持中にpendingへ積み、notifyMuを取った側がまとめて配る。
	// 購読者はコールバック内で変更操作を呼ばないこと。
	notifyMu sync.Mutex
	pendMu   sync.Mutex
	pending  []State

	subsMu  sync.Mutex
	subs    map[int]func(State)
	nextSub int
}

// New は空のカートで生成し、復元を1回だけ予約する。
func New(ctx context.Context, kv repo.KVStore, opts ...Option) *Store {
	s := &Store{
		kv:             kv,
		key:            DefaultKey,
		log:            zap.NewNop(),
		hydrateTimeout: defaultHydrateTimeout,
		writeTimeout:   defaultWriteTimeout,
		cart:           model.Cart{},
		hydrated:       make(chan struct{}),
		subs:           make(map[int]func(State)),
	}
	for _, opt := range opts {
		opt(s)
	}

	go s.hydrate(context.WithoutCancel(ctx))
	return s
}

func (s *Store) hydrate(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.hydrateTimeout)
	defer cancel()

	log := s.log.With(zap.String("key", s.key))
	restored := model.Cart{}

	raw, err := s.kv.Get(ctx, s.key)
	switch {
	case errors.Is(err, repo.ErrNotFound):
		log.Debug("no persisted cart, starting empty")
	case err != nil:
		log.Warn("read persisted cart failed, starting empty", zap.Error(err))
	default:
		c, dropped, decErr := decodeCart(raw)
		if decErr != nil {
			log.Warn("persisted cart is corrupt, starting empty", zap.Error(decErr))
			break
		}
		if dropped > 0 {
			log.Warn("discarded malformed cart entries", zap.Int("dropped", dropped))
		}
		restored = c
		log.Info("cart restored", zap.Int("items", len(c)))
	}

	s.mu.Lock()
	s.cart = restored
	s.hasHydrated = true
	close(s.hydrated)
	s.unlockAndNotify()
}

// 復元完了で閉じる
func (s *Store) Hydrated() <-chan struct{} {
	return s.hydrated
}

func (s *Store) HasHydrated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasHydrated
}

func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() State {
	return State{
		Cart:        s.cart.Clone(),
		HasHydrated: s.hasHydrated,
	}
}

// Subscribe は状態が変わるたびに fn を呼ぶ。戻り値で解除する。
func (s *Store) Subscribe(fn func(State)) (unsubscribe func()) {
	s.subsMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subsMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subsMu.Lock()
			delete(s.subs, id)
			s.subsMu.Unlock()
		})
	}
}

// AddToCart は同一キー（ID・サイズ・色）があれば数量だけ加算、無ければ末尾に追加する。
// Quantity が 0 のときは 1 とみなす。
func (s *Store) AddToCart(ctx context.Context, item model.CartLineItem) error {
	if item.ID == "" {
		return ErrInvalidLineItem
	}
	if item.Quantity < 0 {
		return ErrInvalidQuantity
	}
	if item.Quantity == 0 {
		item.Quantity = 1
	}

	return s.mutate(ctx, func(c model.Cart) model.Cart {
		return c.Add(item)
	})
}

// RemoveFromCart はキーが完全一致する明細を削除する。無ければ何もしない。
func (s *Store) RemoveFromCart(ctx context.Context, item model.CartLineItem) error {
	if item.ID == "" {
		return ErrInvalidLineItem
	}

	key := item.Key()
	return s.mutate(ctx, func(c model.Cart) model.Cart {
		return c.Remove(key)
	})
}

func (s *Store) ClearCart(ctx context.Context) error {
	return s.mutate(ctx, func(model.Cart) model.Cart {
		return model.Cart{}
	})
}

// TakeCart は現在の明細を返し、同じロック内でカートを空にする。
// 返した明細と空にした明細は必ず一致する。
func (s *Store) TakeCart(ctx context.Context) (model.Cart, error) {
	var taken model.Cart
	err := s.mutate(ctx, func(c model.Cart) model.Cart {
		taken = c.Clone()
		return model.Cart{}
	})
	if err != nil {
		return nil, err
	}
	return taken, nil
}

// 復元前の変更は復元完了まで待つ（復元結果で上書きされないように）
func (s *Store) mutate(ctx context.Context, fn func(model.Cart) model.Cart) error {
	select {
	case <-s.hydrated:
	default:
		select {
		case <-s.hydrated:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	s.mu.Lock()
	s.cart = fn(s.cart)
	s.persistLocked(ctx)
	s.unlockAndNotify()
	return nil
}

// ロック中に書くので、書き込み順は変更順と同じになる。
// 書き込み失敗はログに残すだけでメモリ上の変更は維持する。
func (s *Store) persistLocked(ctx context.Context) {
	value, err := encodeCart(s.cart)
	if err != nil {
		s.log.Warn("encode cart failed", zap.String("key", s.key), zap.Error(err))
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.writeTimeout)
	defer cancel()

	if err := s.kv.Set(wctx, s.key, value); err != nil {
		s.log.Warn("persist cart failed",
			zap.String("key", s.key),
			zap.Int("items", len(s.cart)),
			zap.Error(err),
		)
	}
}

// mu を保持した状態で呼ぶ。
func (s *Store) unlockAndNotify() {
	st := s.snapshotLocked()
	s.pendMu.Lock()
	s.pending = append(s.pending, st)
	s.pendMu.Unlock()
	s.mu.Unlock()

	s.notifyMu.Lock()
	defer s.notifyMu.Unlock()

	for {
		s.pendMu.Lock()
		if len(s.pending) == 0 {
			s.pendMu.Unlock()
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.pendMu.Unlock()

		for _, fn := range s.subscribers() {
			fn(next)
		}
	}
}

func (s *Store) subscribers() []func(State) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	fns := make([]func(State), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	return fns
}
