package ports

import (
	"context"
	"time"
)

// Cache puerto de caché clave-valor con TTL. Implementaciones: memoria (un proceso) y
// Redis (varias réplicas). Get devuelve found=false si la clave no existe o expiró.
type Cache interface {
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
