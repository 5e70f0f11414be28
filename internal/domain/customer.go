package domain

import (
	"encoding/json"
	"strings"
)

// Customer представляет собой клиента в Shopify
type Customer struct {
	ID               string   `json:"id"` // GID вида gid://shopify/Customer/123
	Email            string   `json:"email"`
	FirstName        string   `json:"first_name,omitempty"`
	LastName         string   `json:"last_name,omitempty"`
	Phone            string   `json:"phone,omitempty"`
	Tags             []string `json:"tags,omitempty"`
	Note             string   `json:"note,omitempty"`
	AcceptsMarketing bool     `json:"accepts_marketing,omitempty"`
}

// HasTag проверяет наличие тега у клиента
func (c *Customer) HasTag(tag string) bool {
	for _, t := range c.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// MergeTags объединяет теги без дубликатов, сохраняя порядок
func MergeTags(existing []string, extra ...string) []string {
	seen := make(map[string]bool, len(existing)+len(extra))
	merged := make([]string, 0, len(existing)+len(extra))
	for _, t := range existing {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	for _, t := range extra {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		merged = append(merged, t)
	}
	return merged
}

// CustomerPayload профиль клиента из тела запроса
type CustomerPayload struct {
	Email            string `json:"email" validate:"omitempty,email"`
	FirstName        string `json:"first_name"`
	LastName         string `json:"last_name"`
	Phone            string `json:"phone"`
	Note             string `json:"note"`
	AcceptsMarketing bool   `json:"accepts_marketing"`
}

// UpsertRequest запрос на upsert клиента с регистрацией покупок
type UpsertRequest struct {
	Email     string          `json:"email" validate:"omitempty,email"`
	Customer  CustomerPayload `json:"customer"`
	Tags      []string        `json:"tags"`
	Purchases []PurchaseInput `json:"purchases" validate:"omitempty,dive"`
}

// UpsertResult результат upsert-операции
type UpsertResult struct {
	CustomerID  string
	Created     []string // GID созданных метаобъектов в порядке создания
	AppliedTag  bool     // Был ли клубный тег добавлен этим запросом
	LinkedCount int
	FieldKeys   map[string]string
}

// Этапы цепочки поиска клиента
const (
	WhereCustomersExact  = "customers_exact"
	WhereCustomersSearch = "customers_search"
	WhereOrders          = "orders"
	WhereNone            = "none"
)

// NoteSeenInOrders пометка: email найден в заказах, но не среди клиентов
const NoteSeenInOrders = "Email visto en órdenes, no en clientes"

// LookupResult результат поиска клиента по email
type LookupResult struct {
	Found  bool
	Where  string
	Count  int
	Data   []json.RawMessage
	Note   string
	Orders []json.RawMessage
}

// emailAliasKeys принимаемые псевдонимы ключа email
var emailAliasKeys = []string{
	"email", "Email", "e-mail", "mail", "correo", "correo_electronico",
	"customer_email", "customer[email]", "fields[email]", "contact[email]",
}

// ExtractEmail извлекает email из произвольного набора ключей.
// Проверяются известные псевдонимы, вложенный customer.email и любой
// ключ, содержащий "email". Значение возвращается без пробелов по краям.
func ExtractEmail(values map[string]any) string {
	if values == nil {
		return ""
	}

	for _, k := range emailAliasKeys {
		if v := asTrimmedString(values[k]); v != "" {
			return v
		}
	}

	if nested, ok := values["customer"].(map[string]any); ok {
		if v := asTrimmedString(nested["email"]); v != "" {
			return v
		}
	}

	for k, v := range values {
		if strings.Contains(strings.ToLower(k), "email") {
			if s := asTrimmedString(v); s != "" {
				return s
			}
		}
	}

	return ""
}

// asTrimmedString приводит значение к строке без пробелов по краям
func asTrimmedString(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}
