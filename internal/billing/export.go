package billing

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/septivank/submetering-worker/internal/db"
)

// Placeholder is written for absent tenant fields and previous values
const Placeholder = "-"

// Labels localizes the CSV header and media names
type Labels struct {
	Headers [9]string
	Media   map[db.MediaType]string
}

// CzechLabels are the headers and media names of the default Czech export
var CzechLabels = Labels{
	Headers: [9]string{
		"Podnájemce",
		"IČO",
		"Měřák",
		"Typ média",
		"Předchozí stav",
		"Aktuální stav",
		"Spotřeba",
		"Cena/jednotka",
		"Celkem",
	},
	Media: map[db.MediaType]string{
		db.MediaGas:         "Plyn",
		db.MediaElectricity: "Elektřina",
		db.MediaWater:       "Voda",
	},
}

// EnglishLabels are the headers and media names of the English export
var EnglishLabels = Labels{
	Headers: [9]string{
		"Tenant",
		"Tax ID",
		"Meter",
		"Media type",
		"Previous value",
		"Current value",
		"Consumption",
		"Unit price",
		"Total",
	},
	Media: map[db.MediaType]string{
		db.MediaGas:         "Gas",
		db.MediaElectricity: "Electricity",
		db.MediaWater:       "Water",
	},
}

// LabelsFor returns the labels for a locale code, defaulting to Czech
func LabelsFor(locale string) Labels {
	if locale == "en" {
		return EnglishLabels
	}
	return CzechLabels
}

// Record renders one row as CSV fields. Rounding happens only here.
func (l Labels) Record(r Row) []string {
	tenantName, ico := Placeholder, Placeholder
	if r.Tenant != nil {
		tenantName = r.Tenant.CompanyName
		if r.Tenant.ICO != nil && *r.Tenant.ICO != "" {
			ico = *r.Tenant.ICO
		}
	}

	previous := Placeholder
	if r.Baseline.HasValue() {
		previous = r.Baseline.Value.StringFixed(3)
	}

	media, ok := l.Media[r.Meter.MediaType]
	if !ok {
		media = string(r.Meter.MediaType)
	}

	return []string{
		tenantName,
		ico,
		r.Meter.SerialNumber,
		media,
		previous,
		r.CurrentReading.Value.StringFixed(3),
		r.Consumption.StringFixed(3),
		r.UnitPrice.StringFixed(4),
		r.Total.StringFixed(2),
	}
}

// WriteCSV writes the header and one record per row
func WriteCSV(w io.Writer, rows []Row, labels Labels) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(labels.Headers[:]); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write(labels.Record(r)); err != nil {
			return fmt.Errorf("failed to write csv row for meter %s: %w", r.Meter.SerialNumber, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// FileName is the suggested export file name for a period
func FileName(p db.BillingPeriod) string {
	return fmt.Sprintf("rozuctovani-%04d-%02d.csv", p.Year, p.Month)
}
