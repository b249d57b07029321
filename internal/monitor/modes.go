package monitor

import (
	"sort"

	"github.com/samber/lo"
)

// RefreshRate is one refresh rate offered for a resolution, with the backend
// mode that provides it.
type RefreshRate struct {
	Rate   int    `json:"rate"`
	ModeID string `json:"mode_id"`
}

// AvailableMode is one resolution bucket.
type AvailableMode struct {
	ID              string        `json:"id"`
	Size            Size          `json:"size"`
	RefreshRates    []RefreshRate `json:"refresh_rates"`
	SupportedScales []float64     `json:"supported_scales,omitempty"`
}

// ModeEntry is a raw backend mode before grouping.
type ModeEntry struct {
	ID              string
	Size            Size
	RefreshHz       float64
	SupportedScales []float64
}

// BuildModes groups raw modes by size, rounds refresh rates to whole Hz,
// drops duplicate rates (first entry wins), and sorts sizes and rates
// descending.
func BuildModes(entries []ModeEntry) []AvailableMode {
	if len(entries) == 0 {
		return nil
	}

	order := lo.Uniq(lo.Map(entries, func(e ModeEntry, _ int) Size { return e.Size }))
	groups := lo.GroupBy(entries, func(e ModeEntry) Size { return e.Size })

	modes := make([]AvailableMode, 0, len(order))
	for _, size := range order {
		group := groups[size]
		rates := lo.UniqBy(lo.Map(group, func(e ModeEntry, _ int) RefreshRate {
			return RefreshRate{Rate: RoundRefresh(e.RefreshHz), ModeID: e.ID}
		}), func(r RefreshRate) int { return r.Rate })
		sort.SliceStable(rates, func(i, j int) bool { return rates[i].Rate > rates[j].Rate })

		var scales []float64
		for _, e := range group {
			if len(e.SupportedScales) > 0 {
				scales = append([]float64(nil), e.SupportedScales...)
				break
			}
		}

		modes = append(modes, AvailableMode{
			ID:              group[0].ID,
			Size:            size,
			RefreshRates:    rates,
			SupportedScales: scales,
		})
	}

	sort.SliceStable(modes, func(i, j int) bool {
		a, b := modes[i].Size, modes[j].Size
		if a.Area() != b.Area() {
			return a.Area() > b.Area()
		}
		return a.Width > b.Width
	})
	return modes
}

// Sizes returns the sizes of the available modes in order.
func Sizes(modes []AvailableMode) []Size {
	return lo.Map(modes, func(m AvailableMode, _ int) Size { return m.Size })
}
