package client

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tripshare/pkg/logger"
)

// Client holds the process-wide connections released on shutdown.
type Client struct {
	Mongo   *mongo.Client
	closers []namedCloser
}

type namedCloser struct {
	name string
	c    io.Closer
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) SetMongo(log *logger.Logger, mongoURI string, mongoConnTimeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatal("Failed to connect to MongoDB", "error", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		log.Fatal("Failed to ping MongoDB", "error", err)
	}

	log.Info("Successfully connected to MongoDB")
	c.Mongo = client
}

// Track registers a connection (Kafka producer, consumer) to close on shutdown.
func (c *Client) Track(name string, closer io.Closer) {
	c.closers = append(c.closers, namedCloser{name: name, c: closer})
}

// GracefulShutdown closes tracked connections in reverse order, then MongoDB.
func (c *Client) GracefulShutdown(log *logger.Logger, timeout time.Duration) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		nc := c.closers[i]
		if err := nc.c.Close(); err != nil {
			log.Error("Failed to close connection", "connection", nc.name, "error", err)
		}
	}
	c.closers = nil

	if c.Mongo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := c.Mongo.Disconnect(ctx); err != nil {
		log.Error("Failed to disconnect from MongoDB", "error", err)
		return
	}
	log.Info("Disconnected from MongoDB")
}
