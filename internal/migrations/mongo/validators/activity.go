package validators

import "go.mongodb.org/mongo-driver/bson"

var ActivityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"_id",
			"type",
			"booking_id",
			"actor",
			"bundle_id",
			"round",
			"phase",
			"occurred_at",
			"indexed_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"booking.created",
					"booking.escrow_initialized",
					"booking.escrow_funded",
					"booking.updated",
					"booking.opted_in",
					"booking.participated",
					"booking.participation_cancelled",
					"booking.started",
					"booking.finished",
					"booking.deleted",
					"booking.closed_out",
				},
			},

			"booking_id": bson.M{
				"bsonType": "long",
				"minimum":  1,
			},

			"actor": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"bundle_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"round": bson.M{
				"bsonType": "long",
			},

			"phase": bson.M{
				"bsonType": "string",
				"enum":     []string{"not_initialized", "initialized", "ready", "finished"},
			},

			"occurred_at": bson.M{
				"bsonType": "date",
			},

			"indexed_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
