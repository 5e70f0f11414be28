package shopify

import (
	"context"
)

const (
	qMetaobjectDefinition = `
  query($type:String!){
    metaobjectDefinitionByType(type:$type){
      id
      fieldDefinitions{ key name }
    }
  }
`

	mMetaobjectCreate = `
  mutation($type:String!, $fields:[MetaobjectFieldInput!]!){
    metaobjectCreate(metaobject:{ type:$type, fields:$fields }){
      metaobject{ id }
      userErrors{ field message }
    }
  }
`
)

// FieldDefinition определение поля метаобъекта
type FieldDefinition struct {
	Key  string `json:"key"`
	Name string `json:"name"`
}

// MetaobjectField одно поле создаваемого метаобъекта
type MetaobjectField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// MetaobjectFieldDefinitions получает схему полей типа метаобъекта.
// Отсутствующее определение не является ошибкой: возвращается пустой
// список, и вызывающая сторона работает с каноническими именами.
func (c *Client) MetaobjectFieldDefinitions(ctx context.Context, moType string) ([]FieldDefinition, error) {
	var data struct {
		MetaobjectDefinitionByType *struct {
			ID               string            `json:"id"`
			FieldDefinitions []FieldDefinition `json:"fieldDefinitions"`
		} `json:"metaobjectDefinitionByType"`
	}

	variables := map[string]any{"type": moType}
	if err := c.graphql(ctx, "metaobject_definition", qMetaobjectDefinition, variables, &data); err != nil {
		return nil, err
	}

	if data.MetaobjectDefinitionByType == nil {
		c.log.Warn("Metaobject definition %q not found, falling back to canonical field keys", moType)
		return nil, nil
	}
	return data.MetaobjectDefinitionByType.FieldDefinitions, nil
}

// CreateMetaobject создает метаобъект и возвращает его GID
func (c *Client) CreateMetaobject(ctx context.Context, moType string, fields []MetaobjectField) (string, error) {
	c.log.Debug("Creating metaobject of type %s", moType)

	var data struct {
		MetaobjectCreate struct {
			Metaobject struct {
				ID string `json:"id"`
			} `json:"metaobject"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"metaobjectCreate"`
	}

	variables := map[string]any{"type": moType, "fields": fields}
	if err := c.graphql(ctx, "metaobject_create", mMetaobjectCreate, variables, &data); err != nil {
		return "", err
	}
	if err := c.checkUserErrors("metaobject_create", data.MetaobjectCreate.UserErrors); err != nil {
		return "", err
	}

	c.log.Info("Created metaobject with ID: %s", data.MetaobjectCreate.Metaobject.ID)
	return data.MetaobjectCreate.Metaobject.ID, nil
}
