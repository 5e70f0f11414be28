package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout формат дат покупки и истечения гарантии
const DateLayout = "2006-01-02"

// FlexibleID принимает как строковый, так и числовой идентификатор из JSON
type FlexibleID string

// UnmarshalJSON реализует json.Unmarshaler
func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*f = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*f = FlexibleID(strings.TrimSpace(str))
		return nil
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return fmt.Errorf("invalid id value %s: %w", s, err)
	}
	*f = FlexibleID(num.String())
	return nil
}

// PurchaseInput одна покупка из тела запроса
type PurchaseInput struct {
	ProductID     FlexibleID `json:"product_id"`
	PurchaseMonth int        `json:"purchase_month" validate:"omitempty,min=1,max=12"`
	PurchaseYear  int        `json:"purchase_year" validate:"omitempty,min=1900,max=2200"`
}

// Valid сообщает, достаточно ли данных для регистрации гарантии.
// Неполные записи пропускаются без ошибки.
func (p PurchaseInput) Valid() bool {
	return p.ProductID != "" && p.PurchaseMonth != 0 && p.PurchaseYear != 0
}

// WarrantyRegistration зарегистрированная покупка, привязанная к клиенту
type WarrantyRegistration struct {
	ID            string    `json:"id"` // GID метаобъекта
	CustomerID    string    `json:"customer_id"`
	ProductID     string    `json:"product_id"` // GID вида gid://shopify/Product/123
	PurchaseMonth int       `json:"purchase_month"`
	PurchaseYear  int       `json:"purchase_year"`
	PurchaseDate  time.Time `json:"purchase_date"`
	ExpiryDate    time.Time `json:"expiry_date"`
}

// PurchaseDate возвращает первый день месяца покупки (UTC)
func PurchaseDate(year, month int) time.Time {
	return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
}

// ExpiryDate возвращает дату истечения гарантии: дата покупки плюс months месяцев
func ExpiryDate(purchase time.Time, months int) time.Time {
	return purchase.AddDate(0, months, 0)
}
