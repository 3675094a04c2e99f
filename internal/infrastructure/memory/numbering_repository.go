// Package memory repositorios en proceso para despliegues de una sola réplica, la CLI y tests.
package memory

import (
	"context"
	"sync"

	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/repository"
)

var _ repository.NumberingRepository = (*NumberingRepo)(nil)

// NumberingRepo serializa Advance por clave con un mutex propio de cada clave; claves
// distintas avanzan en paralelo.
type NumberingRepo struct {
	mu     sync.Mutex
	locks  map[string]*sync.Mutex
	states map[string]entity.NumberingSequenceState
	chains map[string][]entity.ChainEntry
}

// NewNumberingRepository crea un libro vacío.
func NewNumberingRepository() *NumberingRepo {
	return &NumberingRepo{
		locks:  make(map[string]*sync.Mutex),
		states: make(map[string]entity.NumberingSequenceState),
		chains: make(map[string][]entity.ChainEntry),
	}
}

func (r *NumberingRepo) keyLock(k string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[k]
	if !ok {
		l = &sync.Mutex{}
		r.locks[k] = l
	}
	return l
}

func (r *NumberingRepo) Advance(ctx context.Context, key entity.SequenceKey, fn repository.AdvanceFunc) error {
	k := key.String()
	l := r.keyLock(k)
	l.Lock()
	defer l.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	var current *entity.NumberingSequenceState
	if st, ok := r.states[k]; ok {
		cp := st
		current = &cp
	}
	r.mu.Unlock()

	next, entry, err := fn(current)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.states[k] = *next
	if entry != nil {
		e := *entry
		e.HashFields = append([]string(nil), entry.HashFields...)
		r.chains[k] = append(r.chains[k], e)
	}
	return nil
}

func (r *NumberingRepo) Release(ctx context.Context, key entity.SequenceKey, sequence int64) (bool, error) {
	k := key.String()
	l := r.keyLock(k)
	l.Lock()
	defer l.Unlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[k]
	chain := r.chains[k]
	if !ok || st.LastSequence != sequence || len(chain) == 0 || chain[len(chain)-1].Sequence != sequence {
		return false, nil
	}
	last := chain[len(chain)-1]
	r.chains[k] = chain[:len(chain)-1]
	st.LastSequence--
	st.LastHash = last.PreviousHash
	r.states[k] = st
	return true, nil
}

func (r *NumberingRepo) GetState(ctx context.Context, key entity.SequenceKey) (*entity.NumberingSequenceState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[key.String()]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (r *NumberingRepo) ListChain(ctx context.Context, key entity.SequenceKey) ([]entity.ChainEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	chain := r.chains[key.String()]
	out := make([]entity.ChainEntry, len(chain))
	copy(out, chain)
	return out, nil
}
