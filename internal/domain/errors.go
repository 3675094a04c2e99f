package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound     = errors.New("recurso no encontrado")
	ErrInvalidInput = errors.New("entrada inválida")
	ErrUnauthorized = errors.New("no autorizado")
	ErrForbidden    = errors.New("acceso denegado")
	ErrConflict     = errors.New("conflicto con el estado actual")

	// Cumplimiento
	ErrConfigMissing = errors.New("configuración de país o plataforma inexistente")
	ErrValidation    = errors.New("el documento no cumple los requisitos estructurales")

	// Numeración y cadena de hashes: siempre fallos duros.
	ErrSeriesRequired      = errors.New("la política de numeración exige serie")
	ErrUnknownHashField    = errors.New("campo de hash desconocido")
	ErrUnsupportedHash     = errors.New("algoritmo de hash no soportado")
	ErrChainIntegrity      = errors.New("cadena de hashes rota")
	ErrReleaseNotPermitted = errors.New("la política no permite liberar números")
	ErrSequenceAdvance     = errors.New("no se pudo avanzar la secuencia de forma atómica")

	// Rectificación
	ErrCorrectionNotAllowed = errors.New("tipo de rectificación no permitido por el país")
	ErrCreditExceedsTotal   = errors.New("el importe a abonar supera el total del documento")
)
