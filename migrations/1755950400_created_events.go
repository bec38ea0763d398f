package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "pbc_1687431684",
			"name": "events",
			"type": "base",
			"system": false,
			"fields": [
				{
					"id": "text3208210256",
					"name": "id",
					"type": "text",
					"system": true,
					"required": true,
					"primaryKey": true,
					"autogeneratePattern": "[a-z0-9]{15}",
					"pattern": "^[a-z0-9]+$",
					"min": 15,
					"max": 15,
					"presentable": false,
					"hidden": false
				},
				{
					"id": "text724990059",
					"name": "title",
					"type": "text",
					"required": true,
					"presentable": true,
					"hidden": false,
					"system": false
				},
				{
					"id": "text1843675174",
					"name": "description",
					"type": "text",
					"required": false,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "text3545646658",
					"name": "location",
					"type": "text",
					"required": false,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "date2502384312",
					"name": "start_at",
					"type": "date",
					"required": true,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "number2392944706",
					"name": "max_capacity",
					"type": "number",
					"required": false,
					"min": 0,
					"onlyInt": true,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "number3402113753",
					"name": "price",
					"type": "number",
					"required": false,
					"min": 0,
					"onlyInt": true,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "bool1547992806",
					"name": "pay_what_you_can",
					"type": "bool",
					"required": false,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "number1542800728",
					"name": "min_price",
					"type": "number",
					"required": false,
					"min": 0,
					"onlyInt": true,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "autodate2990389176",
					"name": "created",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": false,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "autodate3332085495",
					"name": "updated",
					"type": "autodate",
					"onCreate": true,
					"onUpdate": true,
					"presentable": false,
					"hidden": false,
					"system": false
				}
			],
			"indexes": [],
			"listRule": "",
			"viewRule": "",
			"createRule": null,
			"updateRule": null,
			"deleteRule": null
		}`

		collection := &core.Collection{}
		if err := json.Unmarshal([]byte(jsonData), &collection); err != nil {
			return err
		}

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("pbc_1687431684")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
