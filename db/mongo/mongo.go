package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoDB struct {
	Client   *mongo.Client
	Ctx      context.Context
	Cancel   context.CancelFunc
	URL      string
	Database string
}

func NewMongoDB(url, database string, timeout time.Duration) *MongoDB {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	return &MongoDB{
		Ctx:      ctx,
		Cancel:   cancel,
		URL:      url,
		Database: database,
	}
}

func (m *MongoDB) Connect() error {
	client, err := mongo.Connect(m.Ctx, options.Client().ApplyURI(m.URL))
	if err != nil {
		return err
	}
	m.Client = client
	return m.Client.Ping(m.Ctx, nil)
}

func (m *MongoDB) Disconnect() error {
	m.Cancel()
	if m.Client == nil {
		return nil
	}
	return m.Client.Disconnect(context.Background())
}

func (m *MongoDB) GetContext() context.Context {
	return m.Ctx
}
