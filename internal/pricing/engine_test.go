package pricing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func engine() *Engine { return NewEngine(DefaultTable()) }

func TestQuoteCanonicalScenario(t *testing.T) {
	// 1 color + 2 mono pages on sulfite 90g, grampo binding, no finishing,
	// single copy: 1*0.50 + 2*0.10 = 0.70 pages, 2.00 binding, 2.70 total.
	got, err := engine().Quote(1, 2, "sulfite", 90, "grampo", nil, 1)
	require.NoError(t, err)
	require.Equal(t, CostBreakdown{
		PagesCost:     0.70,
		BindingCost:   2.00,
		FinishingCost: 0,
		CostPerCopy:   2.70,
		TotalCost:     2.70,
		CopyQuantity:  1,
	}, got)
}

func TestQuoteMultipleCopiesAndFinishing(t *testing.T) {
	got, err := engine().Quote(10, 20, "couche", 115, "spiral", []string{"laminacao", "verniz"}, 3)
	require.NoError(t, err)
	require.InDelta(t, 10*0.85+20*0.25, got.PagesCost, 1e-9)
	require.InDelta(t, 5.00, got.BindingCost, 1e-9)
	require.InDelta(t, 5.50, got.FinishingCost, 1e-9)
	require.InDelta(t, got.PagesCost+got.BindingCost+got.FinishingCost, got.CostPerCopy, 1e-9)
	require.InDelta(t, got.CostPerCopy*3, got.TotalCost, 1e-9)
}

func TestQuoteNearestWeightSubstitution(t *testing.T) {
	// sulfite has 75/90/120; 100 is closest to 90.
	near, err := engine().Quote(1, 0, "sulfite", 100, "", nil, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.50, near.PagesCost, 1e-9)

	// 110 is closest to 120
	far, err := engine().Quote(1, 0, "sulfite", 110, "", nil, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.65, far.PagesCost, 1e-9)

	// exact ties resolve to the lighter stock
	tie, err := engine().Quote(1, 0, "reciclado", 82, "", nil, 1)
	require.NoError(t, err)
	require.InDelta(t, 0.40, tie.PagesCost, 1e-9)
}

func TestQuoteUnknownPaperFallsBackToDefault(t *testing.T) {
	got, err := engine().Quote(1, 2, "papiro", 90, "grampo", nil, 1)
	require.NoError(t, err)
	require.InDelta(t, 2.70, got.TotalCost, 1e-9)
}

func TestQuoteUnknownBindingIsFree(t *testing.T) {
	got, err := engine().Quote(0, 1, "sulfite", 90, "origami", nil, 1)
	require.NoError(t, err)
	require.Zero(t, got.BindingCost)
	require.InDelta(t, 0.10, got.TotalCost, 1e-9)
}

func TestQuoteUnknownFinishingTokensIgnored(t *testing.T) {
	got, err := engine().Quote(0, 1, "sulfite", 90, "", []string{"dobra", "glitter", "perfuracao"}, 1)
	require.NoError(t, err)
	require.InDelta(t, 2.50, got.FinishingCost, 1e-9)
}

func TestQuoteInputSanity(t *testing.T) {
	_, err := engine().Quote(-1, 0, "sulfite", 90, "", nil, 1)
	require.Error(t, err)
	_, err = engine().Quote(0, -1, "sulfite", 90, "", nil, 1)
	require.Error(t, err)
	_, err = engine().Quote(1, 1, "sulfite", 90, "", nil, 0)
	require.Error(t, err)
}

func TestQuoteRoundingPerStage(t *testing.T) {
	table := &StaticTable{
		Papers: map[string]map[int]PagePrice{
			"sulfite": {90: {Color: 0.333, Mono: 0.111}},
		},
		Bindings:  map[string]float64{"grampo": 1.006},
		Finishing: map[string]float64{"verniz": 0.444},
	}
	e := NewEngine(table)
	got, err := e.Quote(1, 1, "sulfite", 90, "grampo", []string{"verniz"}, 7)
	require.NoError(t, err)
	// each component is rounded before recombination
	require.InDelta(t, 0.44, got.PagesCost, 1e-9)
	require.InDelta(t, 1.01, got.BindingCost, 1e-9)
	require.InDelta(t, 0.44, got.FinishingCost, 1e-9)
	require.InDelta(t, 1.89, got.CostPerCopy, 1e-9)
	require.InDelta(t, 13.23, got.TotalCost, 1e-9)
}

func TestQuoteNeverNegative(t *testing.T) {
	got, err := engine().Quote(0, 0, "sulfite", 90, "", nil, 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, got.TotalCost, 0.0)
}

func TestApplyPrintType(t *testing.T) {
	c, m := ApplyPrintType(3, 7, PrintTypeColor)
	require.Equal(t, 10, c)
	require.Zero(t, m)

	c, m = ApplyPrintType(3, 7, PrintTypeMono)
	require.Zero(t, c)
	require.Equal(t, 10, m)

	c, m = ApplyPrintType(3, 7, PrintTypeMixed)
	require.Equal(t, 3, c)
	require.Equal(t, 7, m)

	// unrecognized values keep the analyzed split
	c, m = ApplyPrintType(3, 7, "")
	require.Equal(t, 3, c)
	require.Equal(t, 7, m)
}
