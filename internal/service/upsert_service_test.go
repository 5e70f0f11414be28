package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/dvigi/clubdvigi-api/config"
	"github.com/dvigi/clubdvigi-api/internal/domain"
	"github.com/dvigi/clubdvigi-api/internal/kafka/producer"
)

// fakeAdminGraphQL имитирует GraphQL Admin API для тестов upsert-а
type fakeAdminGraphQL struct {
	mu    sync.Mutex
	calls []string

	existingCustomer map[string]any // nil: поиск не находит клиента
	updateTags       []string       // теги в ответе customerUpdate
	fieldDefs        []map[string]string
	noDefinition     bool // metaobjectDefinitionByType отвечает null
	existingRefs     []string
	failCreateOn     int // 1-based: номер metaobjectCreate, отвечающего userErrors

	createInput        map[string]any
	updateInput        map[string]any
	tagsAdded          []string
	metaobjectFields   [][]map[string]string
	metafieldSetValue  string
	metafieldSetCalled bool
}

func (f *fakeAdminGraphQL) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query     string         `json:"query"`
		Variables map[string]any `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	write := func(data string) {
		fmt.Fprintf(w, `{"data":%s}`, data)
	}

	switch {
	case strings.Contains(req.Query, "customerCreate"):
		f.calls = append(f.calls, "customerCreate")
		f.createInput, _ = req.Variables["input"].(map[string]any)
		write(`{"customerCreate":{"customer":{"id":"gid://shopify/Customer/1"},"userErrors":[]}}`)

	case strings.Contains(req.Query, "customerUpdate"):
		f.calls = append(f.calls, "customerUpdate")
		f.updateInput, _ = req.Variables["input"].(map[string]any)
		tags, _ := json.Marshal(f.updateTags)
		write(fmt.Sprintf(`{"customerUpdate":{"customer":{"id":"gid://shopify/Customer/1","tags":%s},"userErrors":[]}}`, tags))

	case strings.Contains(req.Query, "tagsAdd"):
		f.calls = append(f.calls, "tagsAdd")
		for _, tag := range req.Variables["tags"].([]any) {
			f.tagsAdded = append(f.tagsAdded, tag.(string))
		}
		write(`{"tagsAdd":{"node":{"id":"gid://shopify/Customer/1"},"userErrors":[]}}`)

	case strings.Contains(req.Query, "metaobjectDefinitionByType"):
		f.calls = append(f.calls, "metaobjectDefinition")
		if f.noDefinition {
			write(`{"metaobjectDefinitionByType":null}`)
			return
		}
		defs, _ := json.Marshal(f.fieldDefs)
		write(fmt.Sprintf(`{"metaobjectDefinitionByType":{"id":"gid://shopify/MetaobjectDefinition/7","fieldDefinitions":%s}}`, defs))

	case strings.Contains(req.Query, "metaobjectCreate"):
		f.calls = append(f.calls, "metaobjectCreate")
		fields := make([]map[string]string, 0)
		for _, raw := range req.Variables["fields"].([]any) {
			m := raw.(map[string]any)
			fields = append(fields, map[string]string{
				"key":   m["key"].(string),
				"value": m["value"].(string),
			})
		}
		f.metaobjectFields = append(f.metaobjectFields, fields)

		n := len(f.metaobjectFields)
		if f.failCreateOn == n {
			write(`{"metaobjectCreate":{"metaobject":null,"userErrors":[{"field":["fields"],"message":"invalid field value"}]}}`)
			return
		}
		write(fmt.Sprintf(`{"metaobjectCreate":{"metaobject":{"id":"gid://shopify/Metaobject/%d"},"userErrors":[]}}`, n))

	case strings.Contains(req.Query, "metafieldsSet"):
		f.calls = append(f.calls, "metafieldsSet")
		f.metafieldSetCalled = true
		mf := req.Variables["metafields"].([]any)[0].(map[string]any)
		f.metafieldSetValue = mf["value"].(string)
		write(`{"metafieldsSet":{"metafields":[{"id":"gid://shopify/Metafield/1"}],"userErrors":[]}}`)

	case strings.Contains(req.Query, "metafield(namespace"):
		f.calls = append(f.calls, "metafieldGet")
		edges := make([]string, 0, len(f.existingRefs))
		for _, id := range f.existingRefs {
			edges = append(edges, fmt.Sprintf(`{"node":{"id":%q}}`, id))
		}
		write(fmt.Sprintf(`{"customer":{"id":"gid://shopify/Customer/1","metafield":{"id":"gid://shopify/Metafield/1","type":"list.metaobject_reference","value":"[]","references":{"edges":[%s]}}}}`, strings.Join(edges, ",")))

	case strings.Contains(req.Query, "customers(first:1"):
		f.calls = append(f.calls, "customerSearch")
		if f.existingCustomer == nil {
			write(`{"customers":{"edges":[]}}`)
			return
		}
		node, _ := json.Marshal(f.existingCustomer)
		write(fmt.Sprintf(`{"customers":{"edges":[{"node":%s}]}}`, node))

	default:
		http.Error(w, "unexpected query: "+req.Query, http.StatusBadRequest)
	}
}

func (f *fakeAdminGraphQL) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

func canonicalDefs() []map[string]string {
	return []map[string]string{
		{"key": "customer", "name": "Customer"},
		{"key": "product", "name": "Product"},
		{"key": "purchase_month", "name": "Purchase month"},
		{"key": "purchase_year", "name": "Purchase year"},
		{"key": "purchase_date", "name": "Purchase date"},
		{"key": "expiry_date", "name": "Expiry date"},
	}
}

func newUpsertServiceForTest(t *testing.T, fake *fakeAdminGraphQL, events producer.ClubProducer) UpsertService {
	t.Helper()
	client := newTestShopifyClient(t, fake)
	return NewUpsertService(client, testShopifyConfig(), testWarrantyConfig(), newTestMetrics(), events, newTestLogger())
}

func TestUpsertCreatesCustomerWithRegistrations(t *testing.T) {
	fake := &fakeAdminGraphQL{
		fieldDefs:    canonicalDefs(),
		existingRefs: []string{"gid://shopify/Metaobject/90"},
	}
	svc := newUpsertServiceForTest(t, fake, nil)

	req := domain.UpsertRequest{
		Customer: domain.CustomerPayload{FirstName: "Ana", LastName: "García"},
		Tags:     []string{"mayorista"},
		Purchases: []domain.PurchaseInput{
			{ProductID: "123", PurchaseMonth: 3, PurchaseYear: 2024},
			{ProductID: "456", PurchaseMonth: 11, PurchaseYear: 2023},
		},
	}

	result, err := svc.Upsert(context.Background(), "ana@example.com", req)
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if result.CustomerID != "gid://shopify/Customer/1" {
		t.Errorf("unexpected customer ID: %s", result.CustomerID)
	}
	if len(result.Created) != 2 {
		t.Fatalf("expected 2 created metaobjects, got %d", len(result.Created))
	}
	if !result.AppliedTag {
		t.Error("new customer must report the club tag as applied")
	}
	if result.LinkedCount != 3 {
		t.Errorf("expected 3 linked references (1 existing + 2 new), got %d", result.LinkedCount)
	}

	// Клиента создали с клубным тегом поверх входных
	rawTags, _ := fake.createInput["tags"].([]any)
	tags := make([]string, 0, len(rawTags))
	for _, tag := range rawTags {
		tags = append(tags, tag.(string))
	}
	if !containsTag(tags, "clubdvigi") {
		t.Errorf("create input missing club tag, got %v", tags)
	}
	if !containsTag(tags, "mayorista") {
		t.Errorf("create input missing request tag, got %v", tags)
	}

	// Первая покупка: март 2024, гарантия 12 месяцев
	fields := map[string]string{}
	for _, f := range fake.metaobjectFields[0] {
		fields[f["key"]] = f["value"]
	}
	if fields["product"] != "gid://shopify/Product/123" {
		t.Errorf("unexpected product GID: %s", fields["product"])
	}
	if fields["purchase_date"] != "2024-03-01" {
		t.Errorf("unexpected purchase date: %s", fields["purchase_date"])
	}
	if fields["expiry_date"] != "2025-03-01" {
		t.Errorf("unexpected expiry date: %s", fields["expiry_date"])
	}
	if fields["customer"] != "gid://shopify/Customer/1" {
		t.Errorf("unexpected customer reference: %s", fields["customer"])
	}

	// Запись метафилда содержит объединение без потери существующих ссылок
	var written []string
	if err := json.Unmarshal([]byte(fake.metafieldSetValue), &written); err != nil {
		t.Fatalf("metafield value is not a JSON array: %v", err)
	}
	if len(written) != 3 || written[0] != "gid://shopify/Metaobject/90" {
		t.Errorf("unexpected metafield value: %v", written)
	}
}

func TestUpsertForwardsMarketingConsent(t *testing.T) {
	fake := &fakeAdminGraphQL{fieldDefs: canonicalDefs()}
	svc := newUpsertServiceForTest(t, fake, nil)

	_, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{
		Customer: domain.CustomerPayload{AcceptsMarketing: true},
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	consent, ok := fake.createInput["emailMarketingConsent"].(map[string]any)
	if !ok {
		t.Fatalf("create input missing marketing consent, got %v", fake.createInput)
	}
	if consent["marketingState"] != "SUBSCRIBED" {
		t.Errorf("unexpected marketing state: %v", consent["marketingState"])
	}
}

func TestUpsertOmitsConsentWhenFlagUnset(t *testing.T) {
	fake := &fakeAdminGraphQL{
		existingCustomer: map[string]any{
			"id": "gid://shopify/Customer/1", "email": "ana@example.com",
			"tags": []string{"clubdvigi"},
		},
		updateTags: []string{"clubdvigi"},
		fieldDefs:  canonicalDefs(),
	}
	svc := newUpsertServiceForTest(t, fake, nil)

	_, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	// Невыставленный флаг не должен отзывать уже данное согласие
	if _, ok := fake.updateInput["emailMarketingConsent"]; ok {
		t.Errorf("update input must not carry consent for unset flag, got %v", fake.updateInput)
	}
}

func TestUpsertUpdatesExistingCustomerAndRepairsTag(t *testing.T) {
	fake := &fakeAdminGraphQL{
		existingCustomer: map[string]any{
			"id": "gid://shopify/Customer/1", "email": "ana@example.com", "tags": []string{"vip"},
		},
		// Ответ обновления без клубного тега: нужна страховочная мутация
		updateTags: []string{"vip"},
		fieldDefs:  canonicalDefs(),
	}
	svc := newUpsertServiceForTest(t, fake, nil)

	result, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if fake.callCount("customerCreate") != 0 {
		t.Error("existing customer must not be created again")
	}
	if fake.callCount("customerUpdate") != 1 {
		t.Error("expected one customerUpdate call")
	}
	if fake.callCount("tagsAdd") != 1 {
		t.Fatal("expected tagsAdd repair when update response lacks the club tag")
	}
	if !containsTag(fake.tagsAdded, "clubdvigi") {
		t.Errorf("repair must add the club tag, got %v", fake.tagsAdded)
	}
	if !result.AppliedTag {
		t.Error("repaired tag must be reported as applied")
	}

	// Объединение тегов не теряет уже имеющиеся
	rawTags, _ := fake.updateInput["tags"].([]any)
	tags := make([]string, 0, len(rawTags))
	for _, tag := range rawTags {
		tags = append(tags, tag.(string))
	}
	if !containsTag(tags, "vip") || !containsTag(tags, "clubdvigi") {
		t.Errorf("update input must carry merged tags, got %v", tags)
	}
}

func TestUpsertSkipsRepairWhenTagConfirmed(t *testing.T) {
	fake := &fakeAdminGraphQL{
		existingCustomer: map[string]any{
			"id": "gid://shopify/Customer/1", "email": "ana@example.com",
			"tags": []string{"vip", "clubdvigi"},
		},
		updateTags: []string{"vip", "clubdvigi"},
		fieldDefs:  canonicalDefs(),
	}
	svc := newUpsertServiceForTest(t, fake, nil)

	result, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if fake.callCount("tagsAdd") != 0 {
		t.Error("no repair expected when update response confirms the tag")
	}
	if result.AppliedTag {
		t.Error("tag already present must not be reported as applied")
	}
}

func TestUpsertFieldKeyFallback(t *testing.T) {
	// Схема с переименованными ключами: "customer" находится по имени,
	// остальные отсутствуют и отображаются сами на себя
	fake := &fakeAdminGraphQL{
		fieldDefs: []map[string]string{
			{"key": "cliente_ref", "name": "Customer"},
		},
	}
	svc := newUpsertServiceForTest(t, fake, nil)

	result, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{
		Purchases: []domain.PurchaseInput{{ProductID: "5", PurchaseMonth: 1, PurchaseYear: 2025}},
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if result.FieldKeys["customer"] != "cliente_ref" {
		t.Errorf("expected customer resolved by display name, got %q", result.FieldKeys["customer"])
	}
	if result.FieldKeys["product"] != "product" {
		t.Errorf("expected canonical fallback for product, got %q", result.FieldKeys["product"])
	}

	fields := map[string]string{}
	for _, f := range fake.metaobjectFields[0] {
		fields[f["key"]] = f["value"]
	}
	if _, ok := fields["cliente_ref"]; !ok {
		t.Errorf("metaobject must use the resolved key, got %v", fields)
	}
}

func TestUpsertMissingDefinitionUsesCanonicalKeys(t *testing.T) {
	fake := &fakeAdminGraphQL{noDefinition: true}
	svc := newUpsertServiceForTest(t, fake, nil)

	result, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{
		Purchases: []domain.PurchaseInput{{ProductID: "5", PurchaseMonth: 6, PurchaseYear: 2024}},
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	for _, name := range []string{"customer", "product", "purchase_month", "purchase_year", "purchase_date", "expiry_date"} {
		if result.FieldKeys[name] != name {
			t.Errorf("expected canonical key for %q, got %q", name, result.FieldKeys[name])
		}
	}
	if len(result.Created) != 1 {
		t.Errorf("expected 1 created metaobject, got %d", len(result.Created))
	}
}

func TestUpsertSkipsIncompletePurchases(t *testing.T) {
	fake := &fakeAdminGraphQL{fieldDefs: canonicalDefs()}
	svc := newUpsertServiceForTest(t, fake, nil)

	result, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{
		// Полная только последняя: без даты и без продукта пропускаются
		Purchases: []domain.PurchaseInput{
			{ProductID: "1"},
			{PurchaseMonth: 4, PurchaseYear: 2024},
			{ProductID: "2", PurchaseMonth: 4, PurchaseYear: 2024},
		},
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if fake.callCount("metaobjectCreate") != 1 {
		t.Errorf("expected 1 metaobjectCreate, got %d", fake.callCount("metaobjectCreate"))
	}
	if len(result.Created) != 1 {
		t.Errorf("expected 1 created metaobject, got %d", len(result.Created))
	}
}

func TestUpsertAbortsOnMetaobjectFailure(t *testing.T) {
	fake := &fakeAdminGraphQL{
		fieldDefs:    canonicalDefs(),
		failCreateOn: 2,
	}
	svc := newUpsertServiceForTest(t, fake, nil)

	_, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{
		Purchases: []domain.PurchaseInput{
			{ProductID: "1", PurchaseMonth: 1, PurchaseYear: 2024},
			{ProductID: "2", PurchaseMonth: 2, PurchaseYear: 2024},
			{ProductID: "3", PurchaseMonth: 3, PurchaseYear: 2024},
		},
	})

	var uErr *domain.UpstreamError
	if !errors.As(err, &uErr) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if uErr.Stage != "metaobject_create" {
		t.Errorf("expected stage metaobject_create, got %q", uErr.Stage)
	}
	if fake.callCount("metaobjectCreate") != 2 {
		t.Errorf("expected creation to stop after failure, got %d calls", fake.callCount("metaobjectCreate"))
	}
	if fake.metafieldSetCalled {
		t.Error("metafield must not be written after a failed creation")
	}
}

func TestUpsertNoPurchasesSkipsLinking(t *testing.T) {
	fake := &fakeAdminGraphQL{fieldDefs: canonicalDefs()}
	svc := newUpsertServiceForTest(t, fake, nil)

	result, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if fake.callCount("metafieldGet") != 0 || fake.metafieldSetCalled {
		t.Error("metafield must not be touched without created metaobjects")
	}
	if result.LinkedCount != 0 {
		t.Errorf("expected 0 linked references, got %d", result.LinkedCount)
	}
}

func TestUpsertValidationAndConfiguration(t *testing.T) {
	fake := &fakeAdminGraphQL{}
	svc := newUpsertServiceForTest(t, fake, nil)

	_, err := svc.Upsert(context.Background(), "", domain.UpsertRequest{})
	var vErr *domain.ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for empty email, got %v", err)
	}

	client := newTestShopifyClient(t, fake)
	svc = NewUpsertService(client, config.ShopifyConfig{}, testWarrantyConfig(), newTestMetrics(), nil, newTestLogger())
	_, err = svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{})
	var cErr *domain.ConfigurationError
	if !errors.As(err, &cErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("no upstream calls expected, got %v", fake.calls)
	}
}

// recordingProducer перехватывает события клуба в тестах
type recordingProducer struct {
	mu        sync.Mutex
	upserts   []producer.CustomerUpsertedEvent
	warranty  []producer.WarrantyRegisteredEvent
	publishOK bool
}

func (p *recordingProducer) PublishCustomerUpserted(_ context.Context, e producer.CustomerUpsertedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.upserts = append(p.upserts, e)
	if !p.publishOK {
		return errors.New("broker unavailable")
	}
	return nil
}

func (p *recordingProducer) PublishWarrantyRegistered(_ context.Context, e producer.WarrantyRegisteredEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.warranty = append(p.warranty, e)
	if !p.publishOK {
		return errors.New("broker unavailable")
	}
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func TestUpsertPublishesEvents(t *testing.T) {
	fake := &fakeAdminGraphQL{fieldDefs: canonicalDefs()}
	events := &recordingProducer{publishOK: true}
	svc := newUpsertServiceForTest(t, fake, events)

	_, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{
		Purchases: []domain.PurchaseInput{{ProductID: "1", PurchaseMonth: 5, PurchaseYear: 2024}},
	})
	if err != nil {
		t.Fatalf("Upsert returned error: %v", err)
	}

	if len(events.upserts) != 1 {
		t.Fatalf("expected 1 customer event, got %d", len(events.upserts))
	}
	if events.upserts[0].Email != "ana@example.com" {
		t.Errorf("unexpected event email: %s", events.upserts[0].Email)
	}
	if len(events.warranty) != 1 {
		t.Fatalf("expected 1 warranty event, got %d", len(events.warranty))
	}
	if len(events.warranty[0].MetaobjectIDs) != 1 {
		t.Errorf("unexpected metaobject IDs in event: %v", events.warranty[0].MetaobjectIDs)
	}
}

func TestUpsertIgnoresPublishFailures(t *testing.T) {
	fake := &fakeAdminGraphQL{fieldDefs: canonicalDefs()}
	events := &recordingProducer{publishOK: false}
	svc := newUpsertServiceForTest(t, fake, events)

	result, err := svc.Upsert(context.Background(), "ana@example.com", domain.UpsertRequest{})
	if err != nil {
		t.Fatalf("publish failure must not fail the request: %v", err)
	}
	if result.CustomerID == "" {
		t.Error("expected a customer ID despite broker failure")
	}
}
