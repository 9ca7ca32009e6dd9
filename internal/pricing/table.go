package pricing

// PagePrice holds per-page unit prices for a (paper type, weight) pair.
type PagePrice struct {
	Color float64 `json:"color"`
	Mono  float64 `json:"mono"`
}

// Table is the lookup capability the engine prices against. Production backs
// it with admin-editable persisted records; tests use the in-memory table.
type Table interface {
	PagePrice(paperType string, weight int) (PagePrice, bool)
	Weights(paperType string) []int
	BindingPrice(bindingType string) (float64, bool)
	FinishingPrice(token string) (float64, bool)
}

// StaticTable is an in-memory Table.
type StaticTable struct {
	Papers    map[string]map[int]PagePrice
	Bindings  map[string]float64
	Finishing map[string]float64
}

func (t *StaticTable) PagePrice(paperType string, weight int) (PagePrice, bool) {
	weights, ok := t.Papers[paperType]
	if !ok {
		return PagePrice{}, false
	}
	p, ok := weights[weight]
	return p, ok
}

func (t *StaticTable) Weights(paperType string) []int {
	weights, ok := t.Papers[paperType]
	if !ok {
		return nil
	}
	out := make([]int, 0, len(weights))
	for w := range weights {
		out = append(out, w)
	}
	return out
}

func (t *StaticTable) BindingPrice(bindingType string) (float64, bool) {
	p, ok := t.Bindings[bindingType]
	return p, ok
}

func (t *StaticTable) FinishingPrice(token string) (float64, bool) {
	p, ok := t.Finishing[token]
	return p, ok
}

// DefaultTable returns the shop's standing price list (BRL).
func DefaultTable() *StaticTable {
	return &StaticTable{
		Papers: map[string]map[int]PagePrice{
			"sulfite": {
				75:  {Color: 0.45, Mono: 0.08},
				90:  {Color: 0.50, Mono: 0.10},
				120: {Color: 0.65, Mono: 0.15},
			},
			"couche": {
				90:  {Color: 0.70, Mono: 0.20},
				115: {Color: 0.85, Mono: 0.25},
				150: {Color: 1.10, Mono: 0.35},
			},
			"reciclado": {
				75: {Color: 0.40, Mono: 0.07},
				90: {Color: 0.45, Mono: 0.08},
			},
		},
		Bindings: map[string]float64{
			"grampo":    2.00,
			"spiral":    5.00,
			"wire-o":    8.00,
			"capa-dura": 25.00,
		},
		Finishing: map[string]float64{
			"laminacao":  3.00,
			"verniz":     2.50,
			"dobra":      1.50,
			"perfuracao": 1.00,
		},
	}
}
