package match

import (
    "strings"

    "dispatchd/internal/model"
)

// MatchKey joins external manifest rows to internal orders. Both components
// are normalized before comparison.
type MatchKey struct {
    Folio string
    TaxID string
}

// NormalizeTaxID strips everything that is not a digit or the check
// character and uppercases the check character. Idempotent.
func NormalizeTaxID(s string) string {
    var b strings.Builder
    for _, r := range s {
        switch {
        case r >= '0' && r <= '9':
            b.WriteRune(r)
        case r == 'k' || r == 'K':
            b.WriteByte('K')
        }
    }
    return b.String()
}

// NormalizeFolio compares folios as trimmed strings, defaulting to "0" when
// absent on either side.
func NormalizeFolio(s string) string {
    s = strings.TrimSpace(s)
    if s == "" {
        return "0"
    }
    return s
}

// KeyFor builds the lookup key for a manifest row.
func KeyFor(row model.ManifestRow) MatchKey {
    return MatchKey{Folio: NormalizeFolio(row.Folio), TaxID: NormalizeTaxID(row.TaxID)}
}

// KeyForOrder builds the lookup key for an order. Returns ok=false when the
// order has no tax-id: such orders cannot form a key and are deliberately
// unreachable by the matcher (incomplete client records get fixed upstream).
func KeyForOrder(o model.Order) (MatchKey, bool) {
    tax := NormalizeTaxID(o.TaxID)
    if tax == "" {
        return MatchKey{}, false
    }
    return MatchKey{Folio: NormalizeFolio(o.Folio), TaxID: tax}, true
}

// Match partitions rows into matched and unmatched against the candidate
// orders. Every row lands in exactly one of the two outputs.
//
// Exact lookup only; a miss goes straight to unmatched with reason
// "no_match". When two candidate orders collide on the same key the later
// one in slice order wins. When two rows collide on the same key the second
// and later rows are reported as "duplicate_key" rather than silently
// resolved against the same order twice.
func Match(rows []model.ManifestRow, candidates []model.Order) ([]model.MatchedOrder, []model.UnmatchedRow) {
    index := make(map[MatchKey]model.Order, len(candidates))
    for _, o := range candidates {
        if k, ok := KeyForOrder(o); ok {
            index[k] = o
        }
    }

    matched := []model.MatchedOrder{}
    unmatched := []model.UnmatchedRow{}
    seen := map[MatchKey]bool{}
    for _, row := range rows {
        k := KeyFor(row)
        if seen[k] {
            unmatched = append(unmatched, model.UnmatchedRow{Row: row, Reason: "duplicate_key"})
            continue
        }
        seen[k] = true
        o, ok := index[k]
        if !ok {
            unmatched = append(unmatched, model.UnmatchedRow{Row: row, Reason: "no_match"})
            continue
        }
        matched = append(matched, model.MatchedOrder{Row: row, Order: o})
    }
    return matched, unmatched
}
