package validators

import "go.mongodb.org/mongo-driver/bson"

var SyncHistoryValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"timestamp", "success"},
		"properties": bson.M{
			"timestamp": bson.M{
				"bsonType": "date",
			},
			"success": bson.M{
				"bsonType": "bool",
			},
			"error": bson.M{
				"bsonType": "string",
			},
		},
	},
}

// Sync_state holds a single marker document.
var SyncStateValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "timestamp"},
		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "string",
			},
			"timestamp": bson.M{
				"bsonType": "date",
			},
		},
	},
}
