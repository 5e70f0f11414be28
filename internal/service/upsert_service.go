package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/dvigi/clubdvigi-api/config"
	"github.com/dvigi/clubdvigi-api/internal/domain"
	"github.com/dvigi/clubdvigi-api/internal/integration/shopify"
	"github.com/dvigi/clubdvigi-api/internal/kafka/producer"
	"github.com/dvigi/clubdvigi-api/internal/metrics"
	"github.com/dvigi/clubdvigi-api/pkg/logger"
)

// Канонические имена полей метаобъекта warranty_registration
var canonicalFieldNames = []string{
	"customer", "product", "purchase_month", "purchase_year", "purchase_date", "expiry_date",
}

// UpsertService интерфейс сервиса upsert-а клиентов с регистрацией гарантий
type UpsertService interface {
	Upsert(ctx context.Context, email string, req domain.UpsertRequest) (*domain.UpsertResult, error)
}

type upsertService struct {
	client      *shopify.Client
	shopifyCfg  config.ShopifyConfig
	warrantyCfg config.WarrantyConfig
	metrics     metrics.ShopifyMetrics
	events      producer.ClubProducer // nil, если публикация событий выключена
	log         *logger.Logger
}

// NewUpsertService создает новый сервис upsert-а клиентов
func NewUpsertService(
	client *shopify.Client,
	shopifyCfg config.ShopifyConfig,
	warrantyCfg config.WarrantyConfig,
	m metrics.ShopifyMetrics,
	events producer.ClubProducer,
	log *logger.Logger,
) UpsertService {
	return &upsertService{
		client:      client,
		shopifyCfg:  shopifyCfg,
		warrantyCfg: warrantyCfg,
		metrics:     m,
		events:      events,
		log:         log,
	}
}

// Upsert находит или создает клиента, добавляет клубный тег, создает
// метаобъект на каждую валидную покупку и привязывает созданные
// метаобъекты к метафилду клиента.
//
// Чтение-объединение-запись списка ссылок не защищено от одновременных
// запросов по одному клиенту: гонка двух upsert-ов может потерять
// добавления одной из сторон.
func (s *upsertService) Upsert(ctx context.Context, email string, req domain.UpsertRequest) (*domain.UpsertResult, error) {
	if email == "" {
		return nil, domain.NewValidationError("email", "email is required", "")
	}
	if missing := s.shopifyCfg.Missing(); len(missing) > 0 {
		return nil, domain.NewConfigurationError(missing...)
	}

	// 1) Найти или создать/обновить клиента
	customerID, appliedTag, err := s.resolveOrCreateCustomer(ctx, email, req)
	if err != nil {
		return nil, err
	}

	// 2) Схема полей метаобъекта, один раз на запрос
	fieldKeys, err := s.resolveFieldKeys(ctx)
	if err != nil {
		return nil, err
	}

	// 3) Метаобъект на каждую валидную покупку, строго последовательно:
	// отказ одного создания прерывает остальные
	created, err := s.createRegistrations(ctx, customerID, fieldKeys, req.Purchases)
	if err != nil {
		return nil, err
	}

	// 4) Привязка созданных метаобъектов к метафилду клиента
	linked := 0
	if len(created) > 0 {
		linked, err = s.linkRegistrations(ctx, customerID, created)
		if err != nil {
			return nil, err
		}
	}

	result := &domain.UpsertResult{
		CustomerID:  customerID,
		Created:     created,
		AppliedTag:  appliedTag,
		LinkedCount: linked,
		FieldKeys:   fieldKeys,
	}

	s.publishEvents(ctx, email, result)
	return result, nil
}

// resolveOrCreateCustomer ищет клиента по точному email; отсутствующего
// создает с клубным тегом, существующего обновляет с объединением тегов
func (s *upsertService) resolveOrCreateCustomer(ctx context.Context, email string, req domain.UpsertRequest) (string, bool, error) {
	existing, err := s.client.SearchCustomerByEmail(ctx, email)
	if err != nil {
		return "", false, err
	}

	clubTag := s.warrantyCfg.ClubTag
	extraTags := append(append([]string{}, req.Tags...), clubTag)

	if existing == nil {
		input := shopify.CustomerInput{
			Email:                 email,
			FirstName:             req.Customer.FirstName,
			LastName:              req.Customer.LastName,
			Phone:                 req.Customer.Phone,
			Note:                  req.Customer.Note,
			Tags:                  domain.MergeTags(nil, extraTags...),
			EmailMarketingConsent: marketingConsent(req.Customer.AcceptsMarketing),
		}
		customerID, err := s.client.CreateCustomer(ctx, input)
		if err != nil {
			return "", false, err
		}
		s.metrics.IncCustomerCreated()
		return customerID, true, nil
	}

	// Объединение тегов: обновление никогда не теряет уже имеющиеся
	newTags := domain.MergeTags(existing.Tags, extraTags...)
	appliedTag := !existing.HasTag(clubTag)

	input := shopify.CustomerInput{
		ID:                    existing.ID,
		Email:                 email,
		FirstName:             req.Customer.FirstName,
		LastName:              req.Customer.LastName,
		Phone:                 req.Customer.Phone,
		Note:                  req.Customer.Note,
		Tags:                  newTags,
		EmailMarketingConsent: marketingConsent(req.Customer.AcceptsMarketing),
	}
	updatedTags, err := s.client.UpdateCustomer(ctx, input)
	if err != nil {
		return "", false, err
	}
	s.metrics.IncCustomerUpdated()

	// Страховка тега: общий путь обновления может молча игнорировать
	// изменение тегов, тогда добавляем тег отдельной мутацией
	if !containsTag(updatedTags, clubTag) {
		s.log.Warn("Update response did not confirm tag %q for %s, issuing tagsAdd repair", clubTag, existing.ID)
		if err := s.client.AddCustomerTags(ctx, existing.ID, []string{clubTag}); err != nil {
			return "", false, err
		}
		s.metrics.IncTagRepaired()
		appliedTag = true
	}

	return existing.ID, appliedTag, nil
}

// resolveFieldKeys строит отображение канонического имени поля на
// фактический ключ из схемы. Отсутствующее в схеме имя отображается
// само на себя.
func (s *upsertService) resolveFieldKeys(ctx context.Context) (map[string]string, error) {
	defs, err := s.client.MetaobjectFieldDefinitions(ctx, s.warrantyCfg.MetaobjectType)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]string, len(defs))
	byName := make(map[string]string, len(defs))
	for _, def := range defs {
		byKey[strings.ToLower(def.Key)] = def.Key
		byName[strings.ToLower(def.Name)] = def.Key
	}

	resolved := make(map[string]string, len(canonicalFieldNames))
	for _, name := range canonicalFieldNames {
		switch {
		case byKey[name] != "":
			resolved[name] = byKey[name]
		case byName[name] != "":
			resolved[name] = byName[name]
		default:
			resolved[name] = name
		}
	}
	return resolved, nil
}

// createRegistrations создает метаобъекты по одному на валидную покупку.
// Неполные покупки пропускаются без ошибки.
func (s *upsertService) createRegistrations(ctx context.Context, customerID string, fieldKeys map[string]string, purchases []domain.PurchaseInput) ([]string, error) {
	created := make([]string, 0, len(purchases))

	for _, p := range purchases {
		if !p.Valid() {
			s.log.Debug("Skipping incomplete purchase entry: %+v", p)
			continue
		}

		purchaseDate := domain.PurchaseDate(p.PurchaseYear, p.PurchaseMonth)
		expiryDate := domain.ExpiryDate(purchaseDate, s.warrantyCfg.MonthsToExpire)

		fields := []shopify.MetaobjectField{
			{Key: fieldKeys["customer"], Value: customerID},
			{Key: fieldKeys["product"], Value: shopify.ToGID("Product", string(p.ProductID))},
			{Key: fieldKeys["purchase_month"], Value: strconv.Itoa(p.PurchaseMonth)},
			{Key: fieldKeys["purchase_year"], Value: strconv.Itoa(p.PurchaseYear)},
			{Key: fieldKeys["purchase_date"], Value: purchaseDate.Format(domain.DateLayout)},
			{Key: fieldKeys["expiry_date"], Value: expiryDate.Format(domain.DateLayout)},
		}

		id, err := s.client.CreateMetaobject(ctx, s.warrantyCfg.MetaobjectType, fields)
		if err != nil {
			return nil, err
		}
		created = append(created, id)
	}

	s.metrics.IncMetaobjectsCreated(len(created))
	return created, nil
}

// linkRegistrations объединяет текущие ссылки метафилда с новыми и
// записывает объединение одним вызовом
func (s *upsertService) linkRegistrations(ctx context.Context, customerID string, created []string) (int, error) {
	ns := s.warrantyCfg.MetafieldNamespace
	key := s.warrantyCfg.MetafieldKey

	existingRefs, err := s.client.CustomerMetafieldReferences(ctx, customerID, ns, key)
	if err != nil {
		return 0, err
	}

	merged := unionRefs(existingRefs, created)
	if err := s.client.SetCustomerMetafieldReferences(ctx, customerID, ns, key, merged); err != nil {
		return 0, err
	}
	return len(merged), nil
}

// publishEvents отправляет события клуба. Сбой публикации логируется
// и не влияет на результат запроса.
func (s *upsertService) publishEvents(ctx context.Context, email string, result *domain.UpsertResult) {
	if s.events == nil {
		return
	}

	err := s.events.PublishCustomerUpserted(ctx, producer.CustomerUpsertedEvent{
		CustomerID: result.CustomerID,
		Email:      email,
		AppliedTag: result.AppliedTag,
	})
	if err != nil {
		s.log.Error("Failed to publish customer upserted event: %v", err)
	}

	if len(result.Created) == 0 {
		return
	}
	err = s.events.PublishWarrantyRegistered(ctx, producer.WarrantyRegisteredEvent{
		CustomerID:    result.CustomerID,
		MetaobjectIDs: result.Created,
		LinkedCount:   result.LinkedCount,
	})
	if err != nil {
		s.log.Error("Failed to publish warranty registered event: %v", err)
	}
}

// unionRefs объединяет списки ссылок без дубликатов, сохраняя порядок
func unionRefs(existing, created []string) []string {
	seen := make(map[string]bool, len(existing)+len(created))
	merged := make([]string, 0, len(existing)+len(created))
	for _, id := range existing {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, id)
	}
	for _, id := range created {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, id)
	}
	return merged
}

// marketingConsent строит согласие на рассылку для выставленного флага.
// Невыставленный флаг не отзывает уже данное согласие, поэтому ничего
// не отправляется.
func marketingConsent(accepts bool) *shopify.EmailMarketingConsentInput {
	if !accepts {
		return nil
	}
	return &shopify.EmailMarketingConsentInput{MarketingState: shopify.MarketingStateSubscribed}
}

// containsTag проверяет наличие тега в списке
func containsTag(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
