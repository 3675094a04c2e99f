// Package signature verificación de firmas sobre hashes de la cadena y de DigestValue XML.
// Solo verifica: la firma de documentos la hace el emisor antes de llegar aquí.
package signature

import (
	"bytes"
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/beevik/etree"
	"github.com/ucarion/c14n"
	"golang.org/x/crypto/pkcs12"
)

// Algoritmos de digest XMLDSig soportados.
const (
	AlgSHA256 = "http://www.w3.org/2001/04/xmlenc#sha256"
	AlgSHA512 = "http://www.w3.org/2001/04/xmlenc#sha512"
	// Variante publicada por la política de firma DIAN.
	AlgSHA256DSig = "http://www.w3.org/2000/09/xmldsig#sha256"
)

var (
	ErrNoSignature      = errors.New("el documento no contiene ds:Signature")
	ErrDigestMismatch   = errors.New("DigestValue no coincide con el documento canonicalizado")
	ErrInvalidSignature = errors.New("firma inválida")
)

// LoadCertificate carga el certificado de verificación desde .p12/.pfx o PEM.
func LoadCertificate(path, password string) (*x509.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("leer certificado: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".p12", ".pfx":
		_, cert, err := pkcs12.Decode(data, password)
		if err != nil {
			return nil, fmt.Errorf("decodificar p12: %w", err)
		}
		return cert, nil
	default:
		return ParsePEM(data)
	}
}

// ParsePEM primer bloque CERTIFICATE.
func ParsePEM(data []byte) (*x509.Certificate, error) {
	for {
		var block *pem.Block
		block, data = pem.Decode(data)
		if block == nil {
			return nil, fmt.Errorf("PEM sin bloque CERTIFICATE")
		}
		if block.Type == "CERTIFICATE" {
			cert, err := x509.ParseCertificate(block.Bytes)
			if err != nil {
				return nil, fmt.Errorf("parsear certificado: %w", err)
			}
			return cert, nil
		}
	}
}

// VerifyHash verifica una firma RSA PKCS#1 v1.5 o ECDSA (ASN.1) en Base64 sobre SHA-256(data).
// data suele ser el hash hexadecimal de una entrada de la cadena.
func VerifyHash(cert *x509.Certificate, data []byte, signatureB64 string) error {
	sig, err := base64.StdEncoding.DecodeString(strings.TrimSpace(signatureB64))
	if err != nil {
		return fmt.Errorf("%w: base64: %v", ErrInvalidSignature, err)
	}
	digest := sha256.Sum256(data)
	switch pub := cert.PublicKey.(type) {
	case *rsa.PublicKey:
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	case *ecdsa.PublicKey:
		if !ecdsa.VerifyASN1(pub, digest[:], sig) {
			return ErrInvalidSignature
		}
	default:
		return fmt.Errorf("%w: tipo de llave %T no soportado", ErrInvalidSignature, cert.PublicKey)
	}
	return nil
}

// ── XML ──────────────────────────────────────────────────────────────────────

// HasSignature indica si el documento trae un ds:Signature.
func HasSignature(xmlBytes []byte) bool {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return false
	}
	return findSignature(doc.Root()) != nil
}

// XMLDigest Base64 del digest del documento sin su ds:Signature (transformada enveloped)
// tras C14N.
func XMLDigest(xmlBytes []byte, algorithm string) (string, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return "", fmt.Errorf("parsear XML: %w", err)
	}
	if sig := findSignature(doc.Root()); sig != nil {
		sig.Parent().RemoveChild(sig)
	}
	return digestDocument(doc, algorithm)
}

// VerifyXMLDigest compara el DigestValue de la primera Reference con el documento.
func VerifyXMLDigest(xmlBytes []byte) error {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return fmt.Errorf("parsear XML: %w", err)
	}
	sig := findSignature(doc.Root())
	if sig == nil {
		return ErrNoSignature
	}
	ref := findLocal(sig, "Reference")
	if ref == nil {
		return fmt.Errorf("%w: Signature sin Reference", ErrDigestMismatch)
	}
	expected := ""
	if dv := findLocal(ref, "DigestValue"); dv != nil {
		expected = strings.TrimSpace(dv.Text())
	}
	algorithm := AlgSHA256
	if dm := findLocal(ref, "DigestMethod"); dm != nil {
		algorithm = dm.SelectAttrValue("Algorithm", AlgSHA256)
	}

	sig.Parent().RemoveChild(sig)
	actual, err := digestDocument(doc, algorithm)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("%w: esperado %s, calculado %s", ErrDigestMismatch, expected, actual)
	}
	return nil
}

func digestDocument(doc *etree.Document, algorithm string) (string, error) {
	raw, err := doc.WriteToBytes()
	if err != nil {
		return "", fmt.Errorf("serializar XML: %w", err)
	}
	canonical, err := canonicalize(raw)
	if err != nil {
		return "", fmt.Errorf("C14N: %w", err)
	}
	switch algorithm {
	case AlgSHA256, AlgSHA256DSig, "":
		sum := sha256.Sum256(canonical)
		return base64.StdEncoding.EncodeToString(sum[:]), nil
	case AlgSHA512:
		sum := sha512.Sum512(canonical)
		return base64.StdEncoding.EncodeToString(sum[:]), nil
	default:
		return "", fmt.Errorf("algoritmo de digest no soportado %q", algorithm)
	}
}

func canonicalize(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// findSignature el prefijo (ds:, ninguno) depende del emisor; se compara el nombre local.
func findSignature(root *etree.Element) *etree.Element {
	if root == nil {
		return nil
	}
	if root.Tag == "Signature" {
		return root
	}
	return findLocal(root, "Signature")
}

func findLocal(el *etree.Element, local string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == local {
			return child
		}
		if found := findLocal(child, local); found != nil {
			return found
		}
	}
	return nil
}
