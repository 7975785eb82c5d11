// Package shipping prices Packeta shipments from cart weight.
//
// Money is computed in haléře (1/100 CZK) so ceilings are exact:
//
//	q := shipping.QuoteFor(3.0, shipping.HomeDelivery) // {89 5 2.10 10 107}
package shipping

// Method is the customer's delivery choice.
type Method string

const (
	Pickup       Method = "pickup"
	HomeDelivery Method = "home_delivery"
)

// Valid reports whether m is a method the shop offers.
func (m Method) Valid() bool { return m == Pickup || m == HomeDelivery }

// DefaultUnitWeightKg is charged per unit when a product has no usable
// weight or the catalogue cannot be read.
const DefaultUnitWeightKg = 0.5

// ExtraCZK is the fixed margin added to every quote.
const ExtraCZK = 10

const fuelPercent = 5

type band struct {
	maxKg float64
	czk   int
}

// Bands are checked in order; the last entry also prices everything above it.
var (
	pickupBands = []band{
		{5, 62},
		{10, 120},
		{15, 120},
	}
	homeDeliveryBands = []band{
		{1, 89},
		{2, 89},
		{5, 89},
		{10, 130},
		{15, 130},
		{30, 250},
	}
)

// Quote is the price breakdown shown at checkout.
type Quote struct {
	BaseCZK  int     `json:"baseCZK"`
	FuelCZK  int     `json:"fuelCZK"`
	TollCZK  float64 `json:"tollCZK"`
	ExtraCZK int     `json:"extraCZK"`
	TotalCZK int     `json:"totalCZK"`
}

// BasePrice looks weightKg up in the method's band table. Unknown methods
// use the home-delivery table.
func BasePrice(weightKg float64, method Method) int {
	bands := homeDeliveryBands
	if method == Pickup {
		bands = pickupBands
	}
	for _, b := range bands {
		if weightKg <= b.maxKg {
			return b.czk
		}
	}
	return bands[len(bands)-1].czk
}

// tollHalere is the road toll surcharge in haléře.
func tollHalere(weightKg float64) int {
	if weightKg <= 5 {
		return 210
	}
	return 480
}

// TollSurcharge is the road toll in CZK: 2.10 up to 5 kg, 4.80 above.
func TollSurcharge(weightKg float64) float64 {
	return float64(tollHalere(weightKg)) / 100
}

// QuoteFor prices a parcel. Fuel and total are rounded up to whole CZK.
func QuoteFor(weightKg float64, method Method) Quote {
	base := BasePrice(weightKg, method)
	fuel := ceilDiv(base*fuelPercent, 100)
	toll := tollHalere(weightKg)

	// base, fuel and extra are whole crowns, so only the toll can carry a
	// fractional part into the ceiling.
	total := base + fuel + ExtraCZK + ceilDiv(toll, 100)

	return Quote{
		BaseCZK:  base,
		FuelCZK:  fuel,
		TollCZK:  float64(toll) / 100,
		ExtraCZK: ExtraCZK,
		TotalCZK: total,
	}
}

func ceilDiv(a, b int) int { return (a + b - 1) / b }
