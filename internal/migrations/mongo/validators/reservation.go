package validators

import "go.mongodb.org/mongo-driver/bson"

var ReservationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"apartment_id",
			"guest_name",
			"guest_phone",
			"entry",
			"exit",
			"guests",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"apartment_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"maxLength": 64,
			},

			"guest_name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"guest_phone": bson.M{
				"bsonType": "string",
				"pattern":  `^\+[1-9]\d{6,14}$`,
			},

			"guest_email": bson.M{
				"bsonType":  "string",
				"maxLength": 254,
			},

			"entry": bson.M{
				"bsonType": "date",
			},

			"exit": bson.M{
				"bsonType": "date",
			},

			"guests": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  50,
			},

			"price": bson.M{
				"bsonType": []string{"double", "int", "long", "decimal"},
				"minimum":  0,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"cancelled",
					"completed",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var ReservationLockValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "owner", "expires_at"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"owner": bson.M{
				"bsonType": "string",
			},
			"expires_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
