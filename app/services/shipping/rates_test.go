package shipping

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBasePricePickupBands(t *testing.T) {
	cases := map[float64]int{0: 62, 0.5: 62, 5: 62, 5.01: 120, 10: 120, 14.9: 120, 15: 120, 40: 120}
	for w, want := range cases {
		assert.Equal(t, want, BasePrice(w, Pickup), "weight %v", w)
	}
}

func TestBasePriceHomeDeliveryBands(t *testing.T) {
	cases := map[float64]int{0: 89, 1: 89, 1.5: 89, 2: 89, 5: 89, 5.5: 130, 10: 130, 15: 130, 15.1: 250, 30: 250, 99: 250}
	for w, want := range cases {
		assert.Equal(t, want, BasePrice(w, HomeDelivery), "weight %v", w)
	}
}

func TestBasePriceUnknownMethodUsesHomeDelivery(t *testing.T) {
	assert.Equal(t, 89, BasePrice(3, Method("drone")))
	assert.Equal(t, 250, BasePrice(20, Method("")))
}

func TestTollSurcharge(t *testing.T) {
	assert.Equal(t, 2.10, TollSurcharge(0))
	assert.Equal(t, 2.10, TollSurcharge(5))
	assert.Equal(t, 4.80, TollSurcharge(5.001))
}

func TestQuoteForHomeDeliveryThreeKilos(t *testing.T) {
	q := QuoteFor(3.0, HomeDelivery)
	assert.Equal(t, Quote{BaseCZK: 89, FuelCZK: 5, TollCZK: 2.10, ExtraCZK: 10, TotalCZK: 107}, q)
}

func TestQuoteTotalIsCeilingOfParts(t *testing.T) {
	for _, m := range []Method{Pickup, HomeDelivery} {
		for w := 0.0; w <= 35; w += 0.25 {
			q := QuoteFor(w, m)
			want := int(math.Ceil(float64(q.BaseCZK) + math.Ceil(float64(q.BaseCZK)*0.05) + q.TollCZK + 10))
			assert.Equal(t, want, q.TotalCZK, "%s %.2f kg", m, w)
			assert.GreaterOrEqual(t, q.TotalCZK, q.BaseCZK+10)
		}
	}
}

func TestFuelRoundsUp(t *testing.T) {
	assert.Equal(t, 4, QuoteFor(1, Pickup).FuelCZK)         // 62*0.05 = 3.1
	assert.Equal(t, 6, QuoteFor(6, Pickup).FuelCZK)         // 120*0.05 = 6
	assert.Equal(t, 13, QuoteFor(20, HomeDelivery).FuelCZK) // 250*0.05 = 12.5
}
