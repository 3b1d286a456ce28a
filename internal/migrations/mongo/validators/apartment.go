package validators

import "go.mongodb.org/mongo-driver/bson"

var ApartmentValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"registry_number",
			"name",
			"province",
			"active",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"registry_number": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"name": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 200,
			},

			"province": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},

			"capacity": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
			},

			"latitude": bson.M{
				"bsonType": "double",
				"minimum":  -90,
				"maximum":  90,
			},

			"longitude": bson.M{
				"bsonType": "double",
				"minimum":  -180,
				"maximum":  180,
			},

			"price_per_night": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},

			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
