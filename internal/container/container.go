// Package container builds the store, infrastructure clients and services from configuration
package container

import (
	"context"
	"errors"
	"fmt"
	"time"

	"musicstore-backend/internal/config"
	"musicstore-backend/internal/events"
	"musicstore-backend/internal/lock"
	"musicstore-backend/internal/logger"
	"musicstore-backend/internal/repository"
	"musicstore-backend/internal/repository/mongodb"
	"musicstore-backend/internal/repository/postgres"
	"musicstore-backend/internal/repository/redisseq"
	"musicstore-backend/internal/service"

	"github.com/redis/go-redis/v9"
)

// sequenceTTL keeps a day's rental number counter around well past the day itself
const sequenceTTL = 72 * time.Hour

// Container owns every long-lived dependency of a process
type Container struct {
	Config *config.Config

	Store     repository.Store
	Redis     redis.UniversalClient
	Locker    lock.Locker
	Sequences repository.SequenceRepository
	Publisher events.Publisher
	Email     service.EmailService

	Availability service.AvailabilityService
	Catalog      service.CatalogService
	Quotes       service.QuoteService
	Rentals      service.RentalService
}

// New connects to every configured backend in dependency order. On failure whatever was
// already opened is closed again.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{Config: cfg}

	steps := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"store", c.initStore},
		{"redis", c.initRedis},
		{"locker", c.initLocker},
		{"publisher", c.initPublisher},
		{"email", c.initEmail},
	}
	for _, step := range steps {
		if err := step.fn(ctx); err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to initialize %s: %w", step.name, err)
		}
	}

	c.initServices()
	logger.Info("Container initialized",
		"driver", cfg.Database.Driver,
		"lock", cfg.Rental.LockDriver,
		"kafka", cfg.Kafka.Enabled,
		"sendgrid", cfg.SendGrid.Enabled)
	return c, nil
}

func (c *Container) initStore(ctx context.Context) error {
	db := c.Config.Database
	switch db.Driver {
	case config.DriverMongoDB:
		store, err := mongodb.Connect(mongodb.Config{
			URI:            db.MongoURI,
			Database:       db.MongoDatabase,
			ConnectTimeout: time.Duration(db.MongoTimeoutSeconds) * time.Second,
			MaxPoolSize:    db.MongoMaxPoolSize,
		})
		if err != nil {
			return err
		}
		c.Store = store
	default:
		conn, err := postgres.Open(ctx, c.Config.GetDatabaseConnectionString(), db.MaxOpenConns, db.MaxIdleConns)
		if err != nil {
			return err
		}
		store := postgres.NewStore(conn)
		c.Store = store
		if db.Migrate {
			if err := store.Migrate(ctx); err != nil {
				return err
			}
		}
	}
	c.Sequences = c.Store.Sequences()
	logger.Info("Store connected", "driver", db.Driver)
	return nil
}

func (c *Container) initRedis(ctx context.Context) error {
	rc := c.Config.Redis
	if !rc.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return fmt.Errorf("failed to ping redis at %s: %w", rc.Addr, err)
	}
	c.Redis = client
	c.Sequences = redisseq.NewSequenceRepository(client, sequenceTTL)
	logger.Info("Redis connected", "addr", rc.Addr)
	return nil
}

func (c *Container) initLocker(_ context.Context) error {
	rc := c.Config.Rental
	if rc.LockDriver == config.LockRedis {
		if c.Redis == nil {
			return errors.New("redis lock driver requires redis.enabled")
		}
		c.Locker = lock.NewRedisLocker(c.Redis, rc.LockTTL(), rc.LockWait())
		return nil
	}
	c.Locker = lock.NewMemoryLocker(rc.LockWait())
	return nil
}

func (c *Container) initPublisher(_ context.Context) error {
	kc := c.Config.Kafka
	if !kc.Enabled {
		c.Publisher = events.NewLogPublisher()
		return nil
	}
	publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers:  kc.Brokers,
		Topic:    kc.Topic,
		Retries:  kc.Retries,
		ClientID: kc.ClientID,
	})
	if err != nil {
		return err
	}
	c.Publisher = publisher
	return nil
}

func (c *Container) initEmail(_ context.Context) error {
	sg := c.Config.SendGrid
	if !sg.Enabled {
		c.Email = service.NewLogEmailService()
		return nil
	}
	c.Email = service.NewEmailService(sg.APIKey, sg.FromEmail, sg.FromName)
	return nil
}

func (c *Container) initServices() {
	policy := c.Config.Rental.PricingPolicy()
	c.Availability = service.NewAvailabilityService(c.Store.Products(), c.Store.Rentals())
	c.Catalog = service.NewCatalogService(c.Store.Products(), c.Availability)
	c.Quotes = service.NewQuoteService(c.Availability, policy, nil)
	c.Rentals = service.NewRentalService(
		c.Store.Rentals(),
		c.Sequences,
		c.Availability,
		c.Locker,
		c.Publisher,
		c.Email,
		service.RentalOptions{
			Policy:       policy,
			NumberPrefix: c.Config.Rental.NumberPrefix,
		},
	)
}

// Close releases the publisher, redis client and store, in reverse order of creation
func (c *Container) Close() {
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			logger.Error("Failed to close publisher", "error", err)
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			logger.Error("Failed to close redis client", "error", err)
		}
	}
	if c.Store != nil {
		if err := c.Store.Close(); err != nil {
			logger.Error("Failed to close store", "error", err)
		}
	}
}
