package dian

import (
	"archive/zip"
	"bytes"
	"fmt"
	"regexp"
	"strings"
)

// CompressXMLToZip empaqueta el XML en un ZIP en memoria con una única entrada.
func CompressXMLToZip(xmlBytes []byte, xmlFilename string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fw, err := zw.Create(xmlFilename)
	if err != nil {
		return nil, fmt.Errorf("zip: crear entrada %s: %w", xmlFilename, err)
	}
	if _, err := fw.Write(xmlBytes); err != nil {
		return nil, fmt.Errorf("zip: escribir XML: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: cerrar archivo: %w", err)
	}
	return buf.Bytes(), nil
}

var nonAlnum = regexp.MustCompile(`[^0-9A-Za-z]`)

// Filenames nombres del XML interno y del ZIP: {NIT sin DV}{número sin separadores}.
// Ejemplo: NIT 900123456-7, número SETP-990000001 -> 900123456SETP990000001.zip
func Filenames(nit, number string) (xmlName, zipName string) {
	if idx := strings.Index(nit, "-"); idx != -1 {
		nit = nit[:idx]
	}
	base := nonAlnum.ReplaceAllString(nit, "") + nonAlnum.ReplaceAllString(number, "")
	return base + ".xml", base + ".zip"
}
