package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/repository"
)

var _ repository.NumberingRepository = (*NumberingRepo)(nil)

// NumberingRepo libro de numeración sobre PostgreSQL. La atomicidad por clave la da el
// bloqueo de fila (SELECT ... FOR UPDATE) dentro de la transacción de Advance.
type NumberingRepo struct {
	pool *pgxpool.Pool
	tx   *TxRunner
}

// NewNumberingRepository construye el repositorio.
func NewNumberingRepository(pool *pgxpool.Pool) *NumberingRepo {
	return &NumberingRepo{pool: pool, tx: NewTxRunner(pool)}
}

const selectStateForUpdate = `
	SELECT last_sequence, last_hash, period_year, period_month, updated_at
	FROM numbering_sequences
	WHERE company_id = $1 AND series = $2 AND document_type = $3
	FOR UPDATE`

// lockState crea la fila si falta y la bloquea. Devuelve nil si la clave nunca avanzó.
func lockState(ctx context.Context, tx pgx.Tx, key entity.SequenceKey) (*entity.NumberingSequenceState, error) {
	const ensure = `
		INSERT INTO numbering_sequences (company_id, series, document_type)
		VALUES ($1, $2, $3)
		ON CONFLICT (company_id, series, document_type) DO NOTHING`
	if _, err := tx.Exec(ctx, ensure, key.CompanyID, key.Series, key.DocumentType); err != nil {
		return nil, fmt.Errorf("insert numbering_sequence: %w", err)
	}

	var (
		st        = entity.NumberingSequenceState{Key: key}
		updatedAt *time.Time
	)
	err := tx.QueryRow(ctx, selectStateForUpdate, key.CompanyID, key.Series, key.DocumentType).
		Scan(&st.LastSequence, &st.LastHash, &st.Year, &st.Month, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("lock numbering_sequence: %w", err)
	}
	if updatedAt == nil {
		return nil, nil
	}
	st.UpdatedAt = *updatedAt
	return &st, nil
}

func (r *NumberingRepo) Advance(ctx context.Context, key entity.SequenceKey, fn repository.AdvanceFunc) error {
	err := r.tx.Run(ctx, func(tx pgx.Tx) error {
		current, err := lockState(ctx, tx, key)
		if err != nil {
			return err
		}
		next, entry, err := fn(current)
		if err != nil {
			return err
		}

		const update = `
			UPDATE numbering_sequences
			SET last_sequence = $4, last_hash = $5, period_year = $6, period_month = $7, updated_at = $8
			WHERE company_id = $1 AND series = $2 AND document_type = $3`
		if _, err := tx.Exec(ctx, update, key.CompanyID, key.Series, key.DocumentType,
			next.LastSequence, next.LastHash, next.Year, next.Month, next.UpdatedAt); err != nil {
			return fmt.Errorf("update numbering_sequence: %w", err)
		}
		if entry == nil {
			return nil
		}
		return insertChainEntry(ctx, tx, entry)
	})
	switch {
	case err == nil:
		return nil
	case isUniqueViolation(err), isSerializationFailure(err):
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	default:
		return err
	}
}

func insertChainEntry(ctx context.Context, tx pgx.Tx, e *entity.ChainEntry) error {
	const q = `
		INSERT INTO document_chain
			(id, company_id, series, document_type, sequence, period, number, issue_date, entry_date,
			 total_ht, total_vat, total_ttc, supplier_tax_id, customer_tax_id, previous_hash, hash, algorithm,
			 hash_fields, hash_delimiter)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`
	_, err := tx.Exec(ctx, q,
		e.ID, e.Key.CompanyID, e.Key.Series, e.Key.DocumentType, e.Sequence, e.Period, e.Number,
		e.IssueDate, e.EntryDate, e.TotalHT, e.TotalVAT, e.TotalTTC,
		e.SupplierTaxID, e.CustomerTaxID, e.PreviousHash, e.Hash, e.Algorithm,
		e.HashFields, e.HashDelimiter,
	)
	if err != nil {
		return fmt.Errorf("insert document_chain: %w", err)
	}
	return nil
}

func (r *NumberingRepo) Release(ctx context.Context, key entity.SequenceKey, sequence int64) (bool, error) {
	released := false
	err := r.tx.Run(ctx, func(tx pgx.Tx) error {
		var last int64
		err := tx.QueryRow(ctx, `
			SELECT last_sequence FROM numbering_sequences
			WHERE company_id = $1 AND series = $2 AND document_type = $3
			FOR UPDATE`, key.CompanyID, key.Series, key.DocumentType).Scan(&last)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("lock numbering_sequence: %w", err)
		}
		if last != sequence {
			return nil
		}

		var (
			position     int64
			entrySeq     int64
			previousHash string
		)
		err = tx.QueryRow(ctx, `
			SELECT position, sequence, previous_hash FROM document_chain
			WHERE company_id = $1 AND series = $2 AND document_type = $3
			ORDER BY position DESC
			LIMIT 1`, key.CompanyID, key.Series, key.DocumentType).Scan(&position, &entrySeq, &previousHash)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get last document_chain: %w", err)
		}
		if entrySeq != sequence {
			return nil
		}

		if _, err := tx.Exec(ctx, `DELETE FROM document_chain WHERE position = $1`, position); err != nil {
			return fmt.Errorf("delete document_chain: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			UPDATE numbering_sequences
			SET last_sequence = last_sequence - 1, last_hash = $4, updated_at = now()
			WHERE company_id = $1 AND series = $2 AND document_type = $3`,
			key.CompanyID, key.Series, key.DocumentType, previousHash); err != nil {
			return fmt.Errorf("update numbering_sequence: %w", err)
		}
		released = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

func (r *NumberingRepo) GetState(ctx context.Context, key entity.SequenceKey) (*entity.NumberingSequenceState, error) {
	const q = `
		SELECT last_sequence, last_hash, period_year, period_month, updated_at
		FROM numbering_sequences
		WHERE company_id = $1 AND series = $2 AND document_type = $3`
	var (
		st        = entity.NumberingSequenceState{Key: key}
		updatedAt *time.Time
	)
	err := r.pool.QueryRow(ctx, q, key.CompanyID, key.Series, key.DocumentType).
		Scan(&st.LastSequence, &st.LastHash, &st.Year, &st.Month, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get numbering_sequence: %w", err)
	}
	if updatedAt == nil {
		return nil, nil
	}
	st.UpdatedAt = *updatedAt
	return &st, nil
}

func (r *NumberingRepo) ListChain(ctx context.Context, key entity.SequenceKey) ([]entity.ChainEntry, error) {
	const q = `
		SELECT id, sequence, period, number, issue_date, entry_date, total_ht, total_vat, total_ttc,
		       supplier_tax_id, customer_tax_id, previous_hash, hash, algorithm, hash_fields, hash_delimiter
		FROM document_chain
		WHERE company_id = $1 AND series = $2 AND document_type = $3
		ORDER BY position`
	rows, err := r.pool.Query(ctx, q, key.CompanyID, key.Series, key.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("list document_chain: %w", err)
	}
	defer rows.Close()

	var list []entity.ChainEntry
	for rows.Next() {
		e := entity.ChainEntry{Key: key}
		if err := rows.Scan(&e.ID, &e.Sequence, &e.Period, &e.Number, &e.IssueDate, &e.EntryDate,
			&e.TotalHT, &e.TotalVAT, &e.TotalTTC, &e.SupplierTaxID, &e.CustomerTaxID,
			&e.PreviousHash, &e.Hash, &e.Algorithm, &e.HashFields, &e.HashDelimiter); err != nil {
			return nil, fmt.Errorf("scan document_chain: %w", err)
		}
		e.IssueDate = e.IssueDate.UTC()
		e.EntryDate = e.EntryDate.UTC()
		list = append(list, e)
	}
	return list, rows.Err()
}
