// Package taxid normaliza identificadores fiscales y aplica los dígitos de control
// que la tabla de países referencia por nombre (NIT colombiano, SIREN francés).
package taxid

import (
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// vatPrefixOverrides países cuyo prefijo IVA difiere del código ISO.
var vatPrefixOverrides = map[string]string{
	"GR": "EL",
}

// VATPrefix devuelve el prefijo IVA intracomunitario del país (GR -> EL).
func VATPrefix(countryCode string) string {
	cc := strings.ToUpper(strings.TrimSpace(countryCode))
	if p, ok := vatPrefixOverrides[cc]; ok {
		return p
	}
	return cc
}

// Clean aplica NFKC (dígitos de ancho completo, ligaduras), pasa a mayúsculas y elimina
// separadores: "fr 12.345-678 901" -> "FR12345678901".
func Clean(raw string) string {
	s := norm.NFKC.String(raw)
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	return b.String()
}

// Normalize devuelve el NIF-IVA con prefijo de país, forma canónica usada como clave de caché.
func Normalize(countryCode, vatNumber string) string {
	id := Clean(vatNumber)
	if id == "" {
		return ""
	}
	prefix := VATPrefix(countryCode)
	if prefix != "" && !strings.HasPrefix(id, prefix) {
		id = prefix + id
	}
	return id
}

// Split separa prefijo de país y número de un NIF-IVA normalizado.
func Split(normalized string) (prefix, number string, err error) {
	if len(normalized) < 3 {
		return "", "", fmt.Errorf("taxid: identificador demasiado corto %q", normalized)
	}
	prefix = normalized[:2]
	for _, r := range prefix {
		if r < 'A' || r > 'Z' {
			return "", "", fmt.Errorf("taxid: prefijo de país inválido en %q", normalized)
		}
	}
	return prefix, normalized[2:], nil
}

// Check aplica el algoritmo de control indicado. Un algoritmo vacío no valida nada.
func Check(algorithm, value string) error {
	switch algorithm {
	case "":
		return nil
	case "nit":
		return ValidateNITVerificationDigit(value)
	case "luhn":
		return ValidateLuhn(value)
	default:
		return fmt.Errorf("taxid: algoritmo de control desconocido %q", algorithm)
	}
}

// ── NIT (Colombia) ───────────────────────────────────────────────────────────

// pesos para el dígito de verificación NIT (Orden Administrativa 4 de 1989, DIAN),
// aplicados a los 9 primeros dígitos de izquierda a derecha.
var nitWeights = [9]int{41, 37, 29, 23, 19, 17, 13, 7, 3}

// ValidateNITVerificationDigit valida el dígito de verificación módulo 11 de un NIT
// ("123456789-1", "123.456.789-1" o "1234567891").
func ValidateNITVerificationDigit(taxID string) error {
	digits := extractDigits(taxID)
	if len(digits) != 10 {
		return fmt.Errorf("taxid: NIT debe tener 9 dígitos más dígito de verificación, se encontraron %d", len(digits))
	}
	expected := nitDigit(digits[:9])
	if digits[9] != expected {
		return fmt.Errorf("taxid: dígito de verificación del NIT inválido: esperado %c, recibido %c", expected, digits[9])
	}
	return nil
}

// ComputeNITVerificationDigit calcula el dígito de verificación para los 9 primeros dígitos del NIT.
func ComputeNITVerificationDigit(taxID string) (byte, error) {
	digits := extractDigits(taxID)
	if len(digits) < 9 {
		return 0, fmt.Errorf("taxid: se requieren al menos 9 dígitos, se encontraron %d", len(digits))
	}
	return nitDigit(digits[:9]), nil
}

func nitDigit(base []byte) byte {
	var sum int
	for i, d := range base {
		sum += int(d-'0') * nitWeights[i]
	}
	remainder := sum % 11
	if remainder == 0 || remainder == 1 {
		return byte('0' + remainder)
	}
	return byte('0' + (11 - remainder))
}

// ── Luhn (SIREN/SIRET) ───────────────────────────────────────────────────────

// ValidateLuhn valida la clave de Luhn (SIREN de 9 dígitos, SIRET de 14).
func ValidateLuhn(value string) error {
	digits := extractDigits(value)
	if len(digits) == 0 {
		return fmt.Errorf("taxid: identificador vacío")
	}
	var sum int
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	if sum%10 != 0 {
		return fmt.Errorf("taxid: clave de control Luhn inválida para %q", value)
	}
	return nil
}

func extractDigits(s string) []byte {
	var out []byte
	for _, r := range norm.NFKC.String(s) {
		if r >= '0' && r <= '9' {
			out = append(out, byte(r))
		}
	}
	return out
}
