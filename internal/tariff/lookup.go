package tariff

import (
	"github.com/shopspring/decimal"

	"github.com/septivank/submetering-worker/internal/db"
)

// UnitPriceFor returns the period's unit price for the media type.
// A missing price is zero, which is a valid tariff.
func UnitPriceFor(p db.BillingPeriod, media db.MediaType) decimal.Decimal {
	return orZero(pick(media, p.UnitPriceGas, p.UnitPriceElectricity, p.UnitPriceWater))
}

// InvoiceTotalFor returns the supplier invoice total recorded on the period.
// It is informational and does not take part in allocation.
func InvoiceTotalFor(p db.BillingPeriod, media db.MediaType) decimal.NullDecimal {
	return pick(media, p.TotalInvoiceGas, p.TotalInvoiceElectricity, p.TotalInvoiceWater)
}

func pick(media db.MediaType, gas, electricity, water decimal.NullDecimal) decimal.NullDecimal {
	switch media {
	case db.MediaGas:
		return gas
	case db.MediaElectricity:
		return electricity
	case db.MediaWater:
		return water
	}
	return decimal.NullDecimal{}
}

func orZero(v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return decimal.Zero
	}
	return v.Decimal
}
