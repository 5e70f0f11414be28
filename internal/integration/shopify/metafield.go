package shopify

import (
	"context"
	"encoding/json"
)

const (
	qCustomerMetafield = `
  query($id:ID!, $ns:String!, $key:String!){
    customer(id:$id){
      id
      metafield(namespace:$ns, key:$key){
        id
        type
        value
        references(first:250){
          edges{ node{ id } }
        }
      }
    }
  }
`

	mMetafieldsSet = `
  mutation($metafields:[MetafieldsSetInput!]!){
    metafieldsSet(metafields:$metafields){
      metafields{ id key namespace type value }
      userErrors{ field message }
    }
  }
`
)

// Тип метафилда-списка ссылок на метаобъекты
const metafieldTypeReferenceList = "list.metaobject_reference"

// CustomerMetafieldReferences читает текущий список ссылок метафилда клиента.
// Отсутствующий метафилд возвращает пустой список.
func (c *Client) CustomerMetafieldReferences(ctx context.Context, customerID, namespace, key string) ([]string, error) {
	var data struct {
		Customer *struct {
			ID        string `json:"id"`
			Metafield *struct {
				ID         string `json:"id"`
				Type       string `json:"type"`
				Value      string `json:"value"`
				References *struct {
					Edges []struct {
						Node struct {
							ID string `json:"id"`
						} `json:"node"`
					} `json:"edges"`
				} `json:"references"`
			} `json:"metafield"`
		} `json:"customer"`
	}

	variables := map[string]any{"id": customerID, "ns": namespace, "key": key}
	if err := c.graphql(ctx, "metafield_get", qCustomerMetafield, variables, &data); err != nil {
		return nil, err
	}

	if data.Customer == nil || data.Customer.Metafield == nil || data.Customer.Metafield.References == nil {
		return nil, nil
	}

	refs := make([]string, 0, len(data.Customer.Metafield.References.Edges))
	for _, edge := range data.Customer.Metafield.References.Edges {
		refs = append(refs, edge.Node.ID)
	}
	return refs, nil
}

// SetCustomerMetafieldReferences записывает объединенный список ссылок
// одним вызовом metafieldsSet
func (c *Client) SetCustomerMetafieldReferences(ctx context.Context, customerID, namespace, key string, ids []string) error {
	value, err := json.Marshal(ids)
	if err != nil {
		return err
	}

	var data struct {
		MetafieldsSet struct {
			Metafields []struct {
				ID string `json:"id"`
			} `json:"metafields"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"metafieldsSet"`
	}

	variables := map[string]any{
		"metafields": []map[string]any{
			{
				"ownerId":   customerID,
				"namespace": namespace,
				"key":       key,
				"type":      metafieldTypeReferenceList,
				"value":     string(value),
			},
		},
	}
	if err := c.graphql(ctx, "metafields_set", mMetafieldsSet, variables, &data); err != nil {
		return err
	}
	return c.checkUserErrors("metafields_set", data.MetafieldsSet.UserErrors)
}
