package pricing

import (
	"fmt"
	"math"
	"sort"
)

// DefaultPaperType substitutes unknown paper types instead of rejecting
// them: the calling layers pre-validate enum membership, so an unknown type
// here means stale pricing data, not bad input.
const DefaultPaperType = "sulfite"

// Print type overrides applied before pricing.
const (
	PrintTypeColor = "color"
	PrintTypeMono  = "mono"
	PrintTypeMixed = "mixed"
)

// CostBreakdown is the priced result. Each component is rounded to currency
// precision independently before being recombined.
type CostBreakdown struct {
	PagesCost     float64 `json:"pages_cost"`
	BindingCost   float64 `json:"binding_cost"`
	FinishingCost float64 `json:"finishing_cost"`
	CostPerCopy   float64 `json:"cost_per_copy"`
	TotalCost     float64 `json:"total_cost"`
	CopyQuantity  int     `json:"copy_quantity"`
}

// Engine prices a color/mono page split against a Table. Pure: no side
// effects beyond table lookups.
type Engine struct {
	table Table
}

func NewEngine(table Table) *Engine {
	return &Engine{table: table}
}

// Quote computes the cost breakdown. Unknown paper types fall back to the
// default type, missing weights substitute the nearest available weight for
// the type, unknown bindings are free and unknown finishing tokens are
// ignored.
func (e *Engine) Quote(colorPages, monoPages int, paperType string, paperWeight int, bindingType string, finishing []string, copyQuantity int) (CostBreakdown, error) {
	if colorPages < 0 || monoPages < 0 {
		return CostBreakdown{}, fmt.Errorf("page counts must be non-negative, got color=%d mono=%d", colorPages, monoPages)
	}
	if copyQuantity < 1 {
		return CostBreakdown{}, fmt.Errorf("copy quantity must be positive, got %d", copyQuantity)
	}

	unit := e.resolvePagePrice(paperType, paperWeight)

	pagesCost := round2(float64(colorPages)*unit.Color + float64(monoPages)*unit.Mono)

	bindingCost := 0.0
	if p, ok := e.table.BindingPrice(bindingType); ok {
		bindingCost = p
	}
	bindingCost = round2(bindingCost)

	finishingCost := 0.0
	for _, token := range finishing {
		if p, ok := e.table.FinishingPrice(token); ok {
			finishingCost += p
		}
	}
	finishingCost = round2(finishingCost)

	costPerCopy := round2(pagesCost + bindingCost + finishingCost)
	total := round2(costPerCopy * float64(copyQuantity))

	return CostBreakdown{
		PagesCost:     pagesCost,
		BindingCost:   bindingCost,
		FinishingCost: finishingCost,
		CostPerCopy:   costPerCopy,
		TotalCost:     total,
		CopyQuantity:  copyQuantity,
	}, nil
}

func (e *Engine) resolvePagePrice(paperType string, weight int) PagePrice {
	if len(e.table.Weights(paperType)) == 0 {
		paperType = DefaultPaperType
	}
	if p, ok := e.table.PagePrice(paperType, weight); ok {
		return p
	}
	weights := e.table.Weights(paperType)
	if len(weights) == 0 {
		return PagePrice{}
	}
	sort.Ints(weights)
	best := weights[0]
	for _, w := range weights[1:] {
		if abs(w-weight) < abs(best-weight) {
			best = w
		}
	}
	p, _ := e.table.PagePrice(paperType, best)
	return p
}

// ApplyPrintType maps a report's page split through the caller's print-type
// choice: print everything in color, everything in mono, or keep the
// analyzed split.
func ApplyPrintType(colorPages, monoPages int, printType string) (int, int) {
	switch printType {
	case PrintTypeColor:
		return colorPages + monoPages, 0
	case PrintTypeMono:
		return 0, colorPages + monoPages
	default:
		return colorPages, monoPages
	}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
