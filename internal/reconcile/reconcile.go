package reconcile

import (
	"valeads-engine/internal/closedate"
	"valeads-engine/internal/domain"
)

// Reconcile keeps the filtered records whose latest close date equals the
// latest close date recorded for the same key in general. Keys missing from
// general, or with no dates on either side, are left out.
func Reconcile(general, filtered map[string]domain.AddressRecord, order closedate.Order) map[string]domain.ReconciledRecord {
	out := make(map[string]domain.ReconciledRecord)
	for key, f := range filtered {
		g, ok := general[key]
		if !ok {
			continue
		}
		gMax, ok := order.Max(g.CloseDates)
		if !ok {
			continue
		}
		fMax, ok := order.Max(f.CloseDates)
		if !ok {
			continue
		}
		if gMax != fMax {
			continue
		}
		out[key] = domain.ReconciledRecord{
			Details:    f.Details,
			CloseDates: append([]string(nil), f.CloseDates...),
		}
	}
	return out
}
