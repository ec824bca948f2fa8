package ecb

import (
	"math"
	"testing"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<gesmes:Envelope xmlns:gesmes="http://www.gesmes.org/xml/2002-08-01" xmlns="http://www.ecb.int/vocabulary/2002-08-01/eurofxref">
	<gesmes:subject>Reference rates</gesmes:subject>
	<Cube>
		<Cube time="2025-08-29">
			<Cube currency="USD" rate="1.1042"/>
			<Cube currency="GBP" rate="0.8581"/>
			<Cube currency="JPY" rate="161.23"/>
		</Cube>
	</Cube>
</gesmes:Envelope>`

func TestParseRates(t *testing.T) {
	rates, err := parseRates([]byte(sampleFeed))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := map[string]float64{
		"EUR": 1,
		"USD": 1.1042,
		"GBP": 0.8581,
		"JPY": 161.23,
	}
	if len(rates) != len(expected) {
		t.Fatalf("expected %d rates, got %d", len(expected), len(rates))
	}
	for currency, rate := range expected {
		if math.Abs(rates[currency]-rate) > 1e-9 {
			t.Errorf("%s: expected %f, got %f", currency, rate, rates[currency])
		}
	}
}

func TestParseRatesEmptyFeed(t *testing.T) {
	if _, err := parseRates([]byte(`<Envelope><Cube></Cube></Envelope>`)); err == nil {
		t.Fatal("expected error for feed without rates")
	}
}

func TestParseRatesMalformedXML(t *testing.T) {
	if _, err := parseRates([]byte(`<Cube><unclosed>`)); err == nil {
		t.Fatal("expected error for malformed XML")
	}
}
