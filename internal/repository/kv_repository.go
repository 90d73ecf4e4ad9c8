package repository

import "context"

// 永続スロットの読み書きだけを約束。
// Getはキーが無ければ ErrNotFound を返す。
type KVStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string) error
}
