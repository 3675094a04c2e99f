package repository

import (
	"context"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

// AdvanceFunc calcula el estado siguiente y la entrada de cadena a partir del estado
// bloqueado. current es nil si la clave aún no tiene estado.
type AdvanceFunc func(current *entity.NumberingSequenceState) (*entity.NumberingSequenceState, *entity.ChainEntry, error)

// NumberingRepository define el puerto de persistencia del libro de numeración.
type NumberingRepository interface {
	// Advance ejecuta fn dentro de una única sección atómica por clave (transacción con
	// bloqueo de fila o mutex en proceso) y persiste el estado y la entrada devueltos.
	// Si fn falla no se persiste nada.
	Advance(ctx context.Context, key entity.SequenceKey, fn AdvanceFunc) error

	// Release libera el último consecutivo emitido: borra su entrada y retrocede el estado.
	// Devuelve false si sequence no es el último.
	Release(ctx context.Context, key entity.SequenceKey, sequence int64) (bool, error)

	// GetState devuelve nil, nil si la clave no existe.
	GetState(ctx context.Context, key entity.SequenceKey) (*entity.NumberingSequenceState, error)

	// ListChain entradas en orden de inserción.
	ListChain(ctx context.Context, key entity.SequenceKey) ([]entity.ChainEntry, error)
}
