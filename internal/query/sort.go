package query

import (
	"sort"
	"strings"

	"github.com/rpattn/medallion-catalog/internal/domain"
)

// sortRecords orders records in place. Numeric values compare numerically,
// everything else compares as case-folded text. Records missing the field sort
// last in either direction.
func sortRecords(records []domain.Record, order domain.Sort) {
	desc := order.Direction == domain.SortDirectionDesc
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		_, aok := a.Lookup(order.Field)
		_, bok := b.Lookup(order.Field)
		if !aok || !bok {
			return aok && !bok
		}
		cmp := compareField(a, b, order.Field)
		if desc {
			return cmp > 0
		}
		return cmp < 0
	})
}

func compareField(a, b domain.Record, field string) int {
	af, aNum := a.Float(field)
	bf, bNum := b.Float(field)
	if aNum && bNum {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}
	at := strings.ToLower(a.Text(field))
	bt := strings.ToLower(b.Text(field))
	return strings.Compare(at, bt)
}
