package tcpostgres

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const postgresPort nat.Port = "5432/tcp"

// Container is a postgres container holding the zenride test database
type Container struct {
	testcontainers.Container
	cfg containerConfig
}

type containerConfig struct {
	image    string
	name     string
	user     string
	password string
	database string
	startup  time.Duration
}

type ContainerOption func(cfg *containerConfig)

func WithImage(image string) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.image = image
	}
}

// WithName sets the container name. Named containers are reused between
// test runs, an empty name starts a fresh container.
func WithName(name string) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.name = name
	}
}

func WithCredentials(user, password string) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.user = user
		cfg.password = password
	}
}

func WithDatabase(name string) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.database = name
	}
}

func WithStartupTimeout(d time.Duration) ContainerOption {
	return func(cfg *containerConfig) {
		cfg.startup = d
	}
}

func StartContainer(ctx context.Context, opts ...ContainerOption) (*Container, error) {
	cfg := containerConfig{
		image:    "postgres:16",
		name:     "zenride-test",
		user:     "postgres",
		password: "password",
		database: "zenride",
		startup:  time.Minute,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	req := testcontainers.ContainerRequest{
		Image: cfg.image,
		Name:  cfg.name,
		Env: map[string]string{
			"POSTGRES_USER":     cfg.user,
			"POSTGRES_PASSWORD": cfg.password,
			"POSTGRES_DB":       cfg.database,
		},
		ExposedPorts: []string{string(postgresPort)},
		Cmd:          []string{"postgres", "-c", "fsync=off"},
		// postgres logs readiness twice: after initdb and after the restart
		WaitingFor: wait.ForAll(
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			wait.ForListeningPort(postgresPort),
		).WithDeadline(cfg.startup),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
		Reuse:            cfg.name != "",
	})
	if err != nil {
		return nil, err
	}
	return &Container{Container: c, cfg: cfg}, nil
}

// URL returns the connection string for the test database
func (c *Container) URL(ctx context.Context) (string, error) {
	port, err := c.MappedPort(ctx, postgresPort)
	if err != nil {
		return "", err
	}
	host, err := c.Host(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("postgresql://%s:%s@%s:%s/%s?sslmode=disable",
		c.cfg.user, c.cfg.password, host, port.Port(), c.cfg.database), nil
}
