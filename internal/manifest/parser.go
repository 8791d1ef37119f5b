package manifest

import (
    "encoding/csv"
    "fmt"
    "io"
    "strings"

    "dispatchd/internal/model"
)

// Header names accepted for the two required columns. Manifests come from
// carriers with varying export formats; anything else in the file is ignored.
var taxIDHeaders = map[string]bool{"rut": true, "tax_id": true, "taxid": true, "tax id": true}
var folioHeaders = map[string]bool{"folio": true, "folio_number": true, "invoice": true, "factura": true}

// Parse reads a tabular delivery manifest. The first record is the header;
// the tax-id and folio columns are located by name, extra columns ignored.
// Rows missing both values are skipped (trailing blank lines are common).
func Parse(r io.Reader) ([]model.ManifestRow, error) {
    cr := csv.NewReader(r)
    cr.FieldsPerRecord = -1
    cr.TrimLeadingSpace = true

    header, err := cr.Read()
    if err != nil {
        if err == io.EOF {
            return nil, fmt.Errorf("manifest: empty file")
        }
        return nil, fmt.Errorf("manifest: read header: %w", err)
    }
    taxCol, folioCol := -1, -1
    for i, h := range header {
        name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
        if taxIDHeaders[name] && taxCol == -1 {
            taxCol = i
        }
        if folioHeaders[name] && folioCol == -1 {
            folioCol = i
        }
    }
    if taxCol == -1 || folioCol == -1 {
        return nil, fmt.Errorf("manifest: required columns not found (have %v)", header)
    }

    rows := []model.ManifestRow{}
    line := 1
    for {
        rec, err := cr.Read()
        if err == io.EOF {
            break
        }
        line++
        if err != nil {
            return nil, fmt.Errorf("manifest: line %d: %w", line, err)
        }
        var tax, folio string
        if taxCol < len(rec) {
            tax = strings.TrimSpace(rec[taxCol])
        }
        if folioCol < len(rec) {
            folio = strings.TrimSpace(rec[folioCol])
        }
        if tax == "" && folio == "" {
            continue
        }
        rows = append(rows, model.ManifestRow{TaxID: tax, Folio: folio, Line: line})
    }
    return rows, nil
}
