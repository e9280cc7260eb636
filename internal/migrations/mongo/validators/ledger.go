package validators

import "go.mongodb.org/mongo-driver/bson"

// Counters are stored as long; unsigned values keep their bit pattern.

var LedgerMetaValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "round", "next_app_id"},
		"properties": bson.M{
			"_id":         bson.M{"bsonType": "string"},
			"round":       bson.M{"bsonType": "long"},
			"next_app_id": bson.M{"bsonType": "long"},
		},
	},
}

var AccountValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "balance"},
		"properties": bson.M{
			"_id":     bson.M{"bsonType": "string", "minLength": 1},
			"balance": bson.M{"bsonType": "long"},
		},
	},
}

var keyValueSchema = bson.M{
	"bsonType": "array",
	"items": bson.M{
		"bsonType": "object",
		"required": []string{"key", "type"},
		"properties": bson.M{
			"key":   bson.M{"bsonType": "string", "minLength": 1},
			"type":  bson.M{"enum": []string{"bytes", "uint"}},
			"bytes": bson.M{"bsonType": "binData"},
			"uint":  bson.M{"bsonType": "long"},
		},
	},
}

var ApplicationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "creator", "program_hash", "global", "created_round", "version"},
		"properties": bson.M{
			"_id":           bson.M{"bsonType": "long"},
			"creator":       bson.M{"bsonType": "string", "minLength": 1},
			"program_hash":  bson.M{"bsonType": "string", "minLength": 64, "maxLength": 64},
			"global":        keyValueSchema,
			"created_round": bson.M{"bsonType": "long"},
			"version":       bson.M{"bsonType": "long", "minimum": 1},
		},
	},
}

var LocalStateValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "app_id", "account", "values"},
		"properties": bson.M{
			"_id":     bson.M{"bsonType": "string"},
			"app_id":  bson.M{"bsonType": "long"},
			"account": bson.M{"bsonType": "string", "minLength": 1},
			"values":  keyValueSchema,
		},
	},
}

var ReceiptValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"_id", "group_id", "round", "operations", "committed_at"},
		"properties": bson.M{
			"_id":          bson.M{"bsonType": "string", "minLength": 1},
			"group_id":     bson.M{"bsonType": "string", "minLength": 64, "maxLength": 64},
			"round":        bson.M{"bsonType": "long"},
			"app_id":       bson.M{"bsonType": "long"},
			"operations":   bson.M{"bsonType": "int", "minimum": 1, "maximum": 16},
			"committed_at": bson.M{"bsonType": "date"},
		},
	},
}
