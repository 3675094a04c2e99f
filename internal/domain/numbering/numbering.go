// Package numbering reglas puras del consecutivo: reinicio por periodo y formato del número.
package numbering

import (
	"fmt"
	"strings"
	"time"

	"github.com/jhoicas/Cumplimiento-api/internal/domain"
	"github.com/jhoicas/Cumplimiento-api/internal/domain/entity"
)

// NeedsReset indica si el consecutivo debe volver a 0 antes de incrementar.
func NeedsReset(state *entity.NumberingSequenceState, period entity.ResetPeriod, now time.Time) bool {
	if state == nil {
		return false
	}
	switch period {
	case entity.ResetYearly:
		return state.Year != now.Year()
	case entity.ResetMonthly:
		return state.Year != now.Year() || state.Month != int(now.Month())
	default:
		return false
	}
}

// Period etiqueta del periodo de reinicio: "2026", "2026-03" o "" si nunca reinicia.
func Period(period entity.ResetPeriod, t time.Time) string {
	switch period {
	case entity.ResetYearly:
		return fmt.Sprintf("%04d", t.Year())
	case entity.ResetMonthly:
		return fmt.Sprintf("%04d-%02d", t.Year(), int(t.Month()))
	default:
		return ""
	}
}

// FormatNumber número visible:
//   - serie exigida: {serie}/{aa}/{00000}
//   - reinicio anual: {año}-{00000}
//   - resto: {00000}
func FormatNumber(policy entity.NumberingPolicy, series string, seq int64, t time.Time) (string, error) {
	series = strings.TrimSpace(series)
	switch {
	case policy.SeriesRequired:
		if series == "" {
			return "", domain.ErrSeriesRequired
		}
		return fmt.Sprintf("%s/%02d/%05d", series, t.Year()%100, seq), nil
	case policy.ResetPeriod == entity.ResetYearly:
		return fmt.Sprintf("%d-%05d", t.Year(), seq), nil
	default:
		return fmt.Sprintf("%05d", seq), nil
	}
}

// Next calcula el estado siguiente a partir del actual (nil = sin estado previo).
// Devuelve el nuevo estado; LastHash se conserva a través de los reinicios para que la
// cadena siga enlazada.
func Next(current *entity.NumberingSequenceState, key entity.SequenceKey, policy entity.NumberingPolicy, now time.Time) entity.NumberingSequenceState {
	next := entity.NumberingSequenceState{
		Key:       key,
		Year:      now.Year(),
		Month:     int(now.Month()),
		UpdatedAt: now,
	}
	if current != nil {
		next.LastSequence = current.LastSequence
		next.LastHash = current.LastHash
		if NeedsReset(current, policy.ResetPeriod, now) {
			next.LastSequence = 0
		}
	}
	next.LastSequence++
	return next
}
