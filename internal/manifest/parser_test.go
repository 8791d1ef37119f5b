package manifest

import (
    "strings"
    "testing"
)

func TestParse(t *testing.T) {
    in := "carrier,RUT,notes,Folio\nacme,76.921.029-6,x,1050\nacme,11.111.111-1,,1051\n,,,\n"
    rows, err := Parse(strings.NewReader(in))
    if err != nil {
        t.Fatalf("Parse: %v", err)
    }
    if len(rows) != 2 {
        t.Fatalf("expected 2 rows, got %d", len(rows))
    }
    if rows[0].TaxID != "76.921.029-6" || rows[0].Folio != "1050" {
        t.Fatalf("row 0: %+v", rows[0])
    }
    if rows[0].Line != 2 || rows[1].Line != 3 {
        t.Fatalf("line numbers: %+v", rows)
    }
}

func TestParseMissingColumns(t *testing.T) {
    if _, err := Parse(strings.NewReader("a,b\n1,2\n")); err == nil {
        t.Fatal("expected error for missing columns")
    }
    if _, err := Parse(strings.NewReader("")); err == nil {
        t.Fatal("expected error for empty file")
    }
}

func TestParseRaggedRows(t *testing.T) {
    in := "rut,folio\n76.921.029-6\n"
    rows, err := Parse(strings.NewReader(in))
    if err != nil {
        t.Fatalf("Parse: %v", err)
    }
    if len(rows) != 1 || rows[0].Folio != "" {
        t.Fatalf("ragged row: %+v", rows)
    }
}
