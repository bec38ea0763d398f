package migrations

import (
	"encoding/json"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		jsonData := `{
			"id": "pbc_2153001328",
			"name": "rsvps",
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
					"id": "relation2375276105",
					"name": "user",
					"type": "relation",
					"required": true,
					"collectionId": "_pb_users_auth_",
					"cascadeDelete": false,
					"maxSelect": 1,
					"minSelect": 0,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "relation1001261735",
					"name": "event",
					"type": "relation",
					"required": true,
					"collectionId": "pbc_1687431684",
					"cascadeDelete": true,
					"maxSelect": 1,
					"minSelect": 0,
					"presentable": false,
					"hidden": false,
					"system": false
				},
				{
					"id": "select2063623452",
					"name": "status",
					"type": "select",
					"required": true,
					"maxSelect": 1,
					"values": [
						"going",
						"interested",
						"not_going"
					],
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
			"indexes": [
				"CREATE UNIQUE INDEX ` + "`" + `idx_rsvps_user_event` + "`" + ` ON ` + "`" + `rsvps` + "`" + ` (` + "`" + `user` + "`" + `, ` + "`" + `event` + "`" + `)"
			],
			"listRule": null,
			"viewRule": null,
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
		collection, err := app.FindCollectionByNameOrId("pbc_2153001328")
		if err != nil {
			return err
		}

		return app.Delete(collection)
	})
}
