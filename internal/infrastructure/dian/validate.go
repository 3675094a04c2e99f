package dian

import (
	"errors"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/jhoicas/Cumplimiento-api/internal/infrastructure/signature"
	"github.com/jhoicas/Cumplimiento-api/pkg/resilience"
)

// Raíces UBL 2.1 aceptadas por la DIAN.
var allowedRoots = map[string]bool{"Invoice": true, "CreditNote": true, "DebitNote": true}

// ValidateDocument revisión estructural previa al envío: raíz UBL, ID y UUID (CUFE/CUDE)
// presentes y, si el documento viene firmado, DigestValue coherente con el contenido.
// Los fallos se devuelven como *resilience.ValidationError: nunca se reintentan.
func ValidateDocument(xmlBytes []byte) error {
	if len(xmlBytes) == 0 {
		return &resilience.ValidationError{Reason: "XML vacío"}
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return &resilience.ValidationError{Reason: "XML mal formado: " + err.Error()}
	}
	root := doc.Root()
	if root == nil || !allowedRoots[root.Tag] {
		tag := ""
		if root != nil {
			tag = root.Tag
		}
		return &resilience.ValidationError{Reason: fmt.Sprintf("raíz UBL no soportada %q", tag)}
	}

	var missing []string
	for _, field := range []string{"ID", "UUID"} {
		if el := directChild(root, field); el == nil || strings.TrimSpace(el.Text()) == "" {
			missing = append(missing, "cbc:"+field)
		}
	}
	if len(missing) > 0 {
		return &resilience.ValidationError{Reason: "faltan elementos obligatorios: " + strings.Join(missing, ", ")}
	}

	if signature.HasSignature(xmlBytes) {
		if err := signature.VerifyXMLDigest(xmlBytes); err != nil {
			if errors.Is(err, signature.ErrDigestMismatch) {
				return &resilience.ValidationError{Reason: "firma inconsistente: " + err.Error()}
			}
			return &resilience.ValidationError{Reason: err.Error()}
		}
	}
	return nil
}

func directChild(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child
		}
	}
	return nil
}
