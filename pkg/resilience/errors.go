package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// StatusError respuesta HTTP no exitosa de una plataforma.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// ValidationError rechazo estructural del documento; nunca se reintenta.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "VALIDATION: " + e.Reason }

var transientStatus = map[int]bool{429: true, 502: true, 503: true, 504: true}

// transientSignatures firmas (en minúsculas) de errores de red/plataforma transitorios.
var transientSignatures = []string{
	"econnreset", "econnrefused", "etimedout", "enotfound", "eai_again",
	"connection reset", "connection refused", "no such host",
	"timeout", "timed out", "network", "unavailable",
	"429", "502", "503", "504",
}

// IsTransient clasifica err según la lista de firmas transitorias. Cualquier error que
// mencione VALIDATION queda excluido.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return false
	}
	if strings.Contains(strings.ToUpper(err.Error()), "VALIDATION") {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	var serr *StatusError
	if errors.As(err, &serr) {
		return transientStatus[serr.StatusCode]
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return MatchesTransient(err.Error())
}

// MatchesTransient busca una firma transitoria en un mensaje libre (códigos de error de resultados).
func MatchesTransient(msg string) bool {
	m := strings.ToLower(msg)
	if strings.Contains(m, "validation") {
		return false
	}
	for _, sig := range transientSignatures {
		if strings.Contains(m, sig) {
			return true
		}
	}
	return false
}

// Códigos de resultado que indican indisponibilidad temporal de la plataforma.
const (
	CodeUnavailable = "PLATFORM_UNAVAILABLE"
	CodeTimeout     = "TIMEOUT"
)

var transientCodes = map[string]bool{
	CodeUnavailable: true,
	CodeTimeout:     true,
	"HTTP_429":      true,
	"HTTP_502":      true,
	"HTTP_503":      true,
	"HTTP_504":      true,
}

// IsTransientCode indica si un código de error de resultado admite reintento. Solo mira el
// código estable, nunca el mensaje.
func IsTransientCode(code string) bool {
	return transientCodes[strings.ToUpper(code)]
}
