package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/dvigi/clubdvigi-api/internal/domain"
)

// Запросы и мутации GraphQL для работы с клиентами
const (
	qCustomerSearch = `
  query($q:String!){
    customers(first:1, query:$q){
      edges{ node{ id email firstName lastName phone tags } }
    }
  }
`

	mCustomerCreate = `
  mutation($input: CustomerInput!){
    customerCreate(input:$input){
      customer{ id }
      userErrors{ field message }
    }
  }
`

	mCustomerUpdate = `
  mutation($input: CustomerInput!){
    customerUpdate(input:$input){
      customer{ id tags }
      userErrors{ field message }
    }
  }
`

	mTagsAdd = `
  mutation($id:ID!, $tags:[String!]!){
    tagsAdd(id:$id, tags:$tags){
      node{ id }
      userErrors{ field message }
    }
  }
`
)

// MarketingStateSubscribed состояние подписки на email-рассылку
const MarketingStateSubscribed = "SUBSCRIBED"

// EmailMarketingConsentInput согласие клиента на email-рассылку
type EmailMarketingConsentInput struct {
	MarketingState string `json:"marketingState"`
}

// CustomerInput входные данные мутаций customerCreate/customerUpdate
type CustomerInput struct {
	ID                    string                      `json:"id,omitempty"`
	Email                 string                      `json:"email"`
	FirstName             string                      `json:"firstName,omitempty"`
	LastName              string                      `json:"lastName,omitempty"`
	Phone                 string                      `json:"phone,omitempty"`
	Note                  string                      `json:"note,omitempty"`
	Tags                  []string                    `json:"tags,omitempty"`
	EmailMarketingConsent *EmailMarketingConsentInput `json:"emailMarketingConsent,omitempty"`
}

// FindCustomersExact ищет клиентов по точному email через REST Admin API.
// Возвращает сырые объекты клиентов для сквозной передачи на фронт.
func (c *Client) FindCustomersExact(ctx context.Context, email string) ([]json.RawMessage, error) {
	var resp struct {
		Customers []json.RawMessage `json:"customers"`
	}
	path := "/customers.json?email=" + url.QueryEscape(email)
	if err := c.restGet(ctx, domain.WhereCustomersExact, path, &resp); err != nil {
		return nil, err
	}
	return resp.Customers, nil
}

// SearchCustomers ищет клиентов через поисковый эндпоинт REST Admin API
func (c *Client) SearchCustomers(ctx context.Context, email string) ([]json.RawMessage, error) {
	var resp struct {
		Customers []json.RawMessage `json:"customers"`
	}
	path := "/customers/search.json?query=" + url.QueryEscape("email:"+email)
	if err := c.restGet(ctx, domain.WhereCustomersSearch, path, &resp); err != nil {
		return nil, err
	}
	return resp.Customers, nil
}

// FindOrdersByEmail ищет заказы по email (гостевые покупки без аккаунта)
func (c *Client) FindOrdersByEmail(ctx context.Context, email string) ([]json.RawMessage, error) {
	var resp struct {
		Orders []json.RawMessage `json:"orders"`
	}
	path := "/orders.json?email=" + url.QueryEscape(email) + "&status=any&limit=5"
	if err := c.restGet(ctx, domain.WhereOrders, path, &resp); err != nil {
		return nil, err
	}
	return resp.Orders, nil
}

// SearchCustomerByEmail ищет клиента по email через GraphQL.
// Возвращает nil без ошибки, если клиент не найден.
func (c *Client) SearchCustomerByEmail(ctx context.Context, email string) (*domain.Customer, error) {
	var data struct {
		Customers struct {
			Edges []struct {
				Node struct {
					ID        string   `json:"id"`
					Email     string   `json:"email"`
					FirstName string   `json:"firstName"`
					LastName  string   `json:"lastName"`
					Phone     string   `json:"phone"`
					Tags      []string `json:"tags"`
				} `json:"node"`
			} `json:"edges"`
		} `json:"customers"`
	}

	variables := map[string]any{"q": fmt.Sprintf("email:%s", email)}
	if err := c.graphql(ctx, "customer_search", qCustomerSearch, variables, &data); err != nil {
		return nil, err
	}

	if len(data.Customers.Edges) == 0 {
		return nil, nil
	}

	node := data.Customers.Edges[0].Node
	return &domain.Customer{
		ID:        node.ID,
		Email:     node.Email,
		FirstName: node.FirstName,
		LastName:  node.LastName,
		Phone:     node.Phone,
		Tags:      node.Tags,
	}, nil
}

// CreateCustomer создает нового клиента и возвращает его GID
func (c *Client) CreateCustomer(ctx context.Context, input CustomerInput) (string, error) {
	c.log.Debug("Creating Shopify customer for %s", input.Email)

	var data struct {
		CustomerCreate struct {
			Customer struct {
				ID string `json:"id"`
			} `json:"customer"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"customerCreate"`
	}

	variables := map[string]any{"input": input}
	if err := c.graphql(ctx, "customer_create", mCustomerCreate, variables, &data); err != nil {
		return "", err
	}
	if err := c.checkUserErrors("customer_create", data.CustomerCreate.UserErrors); err != nil {
		return "", err
	}

	c.log.Info("Created Shopify customer with ID: %s", data.CustomerCreate.Customer.ID)
	return data.CustomerCreate.Customer.ID, nil
}

// UpdateCustomer обновляет клиента и возвращает его теги после обновления
func (c *Client) UpdateCustomer(ctx context.Context, input CustomerInput) ([]string, error) {
	c.log.Debug("Updating Shopify customer %s", input.ID)

	var data struct {
		CustomerUpdate struct {
			Customer struct {
				ID   string   `json:"id"`
				Tags []string `json:"tags"`
			} `json:"customer"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"customerUpdate"`
	}

	variables := map[string]any{"input": input}
	if err := c.graphql(ctx, "customer_update", mCustomerUpdate, variables, &data); err != nil {
		return nil, err
	}
	if err := c.checkUserErrors("customer_update", data.CustomerUpdate.UserErrors); err != nil {
		return nil, err
	}

	return data.CustomerUpdate.Customer.Tags, nil
}

// AddCustomerTags добавляет теги клиенту отдельной мутацией tagsAdd
func (c *Client) AddCustomerTags(ctx context.Context, customerID string, tags []string) error {
	c.log.Debug("Adding tags %v to customer %s", tags, customerID)

	var data struct {
		TagsAdd struct {
			Node struct {
				ID string `json:"id"`
			} `json:"node"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"tagsAdd"`
	}

	variables := map[string]any{"id": customerID, "tags": tags}
	if err := c.graphql(ctx, "tags_add", mTagsAdd, variables, &data); err != nil {
		return err
	}
	return c.checkUserErrors("tags_add", data.TagsAdd.UserErrors)
}
