package domain

import (
	"encoding/json"
	"testing"
)

func TestPurchaseDate(t *testing.T) {
	got := PurchaseDate(2024, 3).Format(DateLayout)
	if got != "2024-03-01" {
		t.Errorf("PurchaseDate(2024, 3) = %s, want 2024-03-01", got)
	}
}

func TestExpiryDate(t *testing.T) {
	purchase := PurchaseDate(2024, 3)

	got := ExpiryDate(purchase, 12).Format(DateLayout)
	if got != "2025-03-01" {
		t.Errorf("ExpiryDate(+12 months) = %s, want 2025-03-01", got)
	}

	got = ExpiryDate(purchase, 6).Format(DateLayout)
	if got != "2024-09-01" {
		t.Errorf("ExpiryDate(+6 months) = %s, want 2024-09-01", got)
	}
}

func TestExpiryDateCrossesYear(t *testing.T) {
	purchase := PurchaseDate(2023, 12)
	got := ExpiryDate(purchase, 12).Format(DateLayout)
	if got != "2024-12-01" {
		t.Errorf("ExpiryDate = %s, want 2024-12-01", got)
	}
}

func TestFlexibleIDUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want FlexibleID
	}{
		{"string id", `{"product_id":"8711111111"}`, "8711111111"},
		{"numeric id", `{"product_id":8711111111}`, "8711111111"},
		{"null id", `{"product_id":null}`, ""},
		{"padded string", `{"product_id":" 871 "}`, "871"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p PurchaseInput
			if err := json.Unmarshal([]byte(tt.in), &p); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if p.ProductID != tt.want {
				t.Errorf("ProductID = %q, want %q", p.ProductID, tt.want)
			}
		})
	}
}

func TestPurchaseInputValid(t *testing.T) {
	valid := PurchaseInput{ProductID: "871", PurchaseMonth: 3, PurchaseYear: 2024}
	if !valid.Valid() {
		t.Error("expected complete purchase to be valid")
	}

	missing := []PurchaseInput{
		{PurchaseMonth: 3, PurchaseYear: 2024},
		{ProductID: "871", PurchaseYear: 2024},
		{ProductID: "871", PurchaseMonth: 3},
	}
	for i, p := range missing {
		if p.Valid() {
			t.Errorf("case %d: expected incomplete purchase to be invalid", i)
		}
	}
}
