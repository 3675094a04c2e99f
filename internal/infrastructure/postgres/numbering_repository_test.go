package postgres_test

import (
	"context"
	"os"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/Cumplimiento-api/internal/application/ledger"
	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/countries"
	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/postgres"
	"github.com/jhoicas/Cumplimiento-api/pkg/clock"
	"github.com/jhoicas/Cumplimiento-api/pkg/config"
)

// testPool conecta a TEST_DATABASE_URL; sin ella (o con -short) el test se omite.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("test de base de datos omitido en modo short")
	}
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL no definida")
	}
	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: url, MaxConns: 16})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.EnsureSchema(ctx, pool))
	return pool
}

func newPGLedger(t *testing.T, pool *pgxpool.Pool) (*ledger.Service, *postgres.NumberingRepo) {
	t.Helper()
	store, err := countries.Load("")
	require.NoError(t, err)
	repo := postgres.NewNumberingRepository(pool)
	clk := clock.NewFake(time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC))
	return ledger.NewService(repo, store, clk, nil, zerolog.Nop()), repo
}

func pgInput(companyID string) ledger.NextInput {
	return ledger.NextInput{
		CompanyID:     companyID,
		CountryCode:   "FR",
		DocumentType:  "invoice",
		TotalHT:       decimal.RequireFromString("100.10"),
		TotalVAT:      decimal.RequireFromString("20.02"),
		TotalTTC:      decimal.RequireFromString("120.12"),
		SupplierTaxID: "FR12345678901",
	}
}

func TestNumberingRepo_AdvanceConcurrenteContiguo(t *testing.T) {
	pool := testPool(t)
	svc, repo := newPGLedger(t, pool)
	ctx := context.Background()
	company := "pg-" + uuid.NewString()

	const n = 40
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs []int64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := svc.Next(ctx, pgInput(company))
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			seqs = append(seqs, out.Sequence)
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seqs, n)
	sort.Slice(seqs, func(i, j int) bool { return seqs[i] < seqs[j] })
	for i, s := range seqs {
		assert.Equal(t, int64(i+1), s, "FOR UPDATE serializa la clave")
	}

	ref := ledger.KeyRef{CompanyID: company, CountryCode: "FR", DocumentType: "invoice"}
	res, err := svc.VerifyChain(ctx, ref)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Equal(t, n, res.Checked)

	entries, err := repo.ListChain(ctx, entity.SequenceKey{CompanyID: company, DocumentType: "invoice"})
	require.NoError(t, err)
	require.Len(t, entries, n)
	assert.NotEmpty(t, entries[0].HashFields, "campos del hash persistidos")
	assert.Equal(t, "|", entries[0].HashDelimiter)
	assert.True(t, decimal.RequireFromString("120.12").Equal(entries[0].TotalTTC))
}

func TestNumberingRepo_ReleaseSoloElUltimo(t *testing.T) {
	pool := testPool(t)
	_, repo := newPGLedger(t, pool)
	ctx := context.Background()
	key := entity.SequenceKey{CompanyID: "pg-" + uuid.NewString(), Series: "R", DocumentType: "receipt"}

	for i := int64(1); i <= 2; i++ {
		seq := i
		err := repo.Advance(ctx, key, func(cur *entity.NumberingSequenceState) (*entity.NumberingSequenceState, *entity.ChainEntry, error) {
			prev := "0"
			if cur != nil {
				prev = cur.LastHash
			}
			now := time.Now().UTC().Truncate(time.Second)
			next := &entity.NumberingSequenceState{Key: key, LastSequence: seq, LastHash: "h" + prev, Year: 2026, UpdatedAt: now}
			return next, &entity.ChainEntry{
				ID: uuid.NewString(), Key: key, Sequence: seq, Period: "2026", Number: "R-" + uuid.NewString()[:4],
				IssueDate: now, EntryDate: now, PreviousHash: prev, Hash: "h" + prev, Algorithm: "sha256",
			}, nil
		})
		require.NoError(t, err)
	}

	ok, err := repo.Release(ctx, key, 1)
	require.NoError(t, err)
	assert.False(t, ok, "solo el último consecutivo")

	ok, err = repo.Release(ctx, key, 2)
	require.NoError(t, err)
	assert.True(t, ok)

	st, err := repo.GetState(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, int64(1), st.LastSequence)
	assert.Equal(t, "h0", st.LastHash)

	entries, err := repo.ListChain(ctx, key)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestNumberingRepo_FalloEnAdvanceNoPersiste(t *testing.T) {
	pool := testPool(t)
	_, repo := newPGLedger(t, pool)
	ctx := context.Background()
	key := entity.SequenceKey{CompanyID: "pg-" + uuid.NewString(), DocumentType: "invoice"}

	err := repo.Advance(ctx, key, func(*entity.NumberingSequenceState) (*entity.NumberingSequenceState, *entity.ChainEntry, error) {
		return nil, nil, domain.ErrUnknownHashField
	})
	assert.ErrorIs(t, err, domain.ErrUnknownHashField)

	st, err := repo.GetState(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, st, "la transacción se revierte")
}
