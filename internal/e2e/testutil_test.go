//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	tcpg "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/nidhogg/nuka-bot/internal/app"
	"github.com/nidhogg/nuka-bot/internal/config"
	"github.com/nidhogg/nuka-bot/internal/gateway"
)

// startPostgres starts a PostgreSQL testcontainer, returns DSN + cleanup func.
func startPostgres(ctx context.Context) (string, func(), error) {
	container, err := tcpg.Run(ctx, "postgres:16-alpine",
		tcpg.WithDatabase("nuka_test"),
		tcpg.WithUsername("test"),
		tcpg.WithPassword("test"),
		tcpg.BasicWaitStrategies(),
	)
	if err != nil {
		return "", nil, fmt.Errorf("start postgres: %w", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		testcontainers.TerminateContainer(container)
		return "", nil, fmt.Errorf("pg connection string: %w", err)
	}
	cleanup := func() { testcontainers.TerminateContainer(container) }
	return dsn, cleanup, nil
}

// startRedis starts a Redis testcontainer, returns URL + cleanup func.
func startRedis(ctx context.Context) (string, func(), error) {
	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		return "", nil, fmt.Errorf("start redis: %w", err)
	}
	url, err := container.ConnectionString(ctx)
	if err != nil {
		testcontainers.TerminateContainer(container)
		return "", nil, fmt.Errorf("redis connection string: %w", err)
	}
	cleanup := func() { testcontainers.TerminateContainer(container) }
	return url, cleanup, nil
}

// newBot builds a bot backed by the shared containers and serves its API.
const apiToken = "e2e-token"

func newBot(t *testing.T) (*app.App, *httptest.Server) {
	t.Helper()
	cfg := config.Default()
	cfg.Dispatch.Prefixes = []string{"!"}
	cfg.Dispatch.Owners = []string{"owner"}
	cfg.Gateway.REST.Enabled = true
	cfg.Server.APIToken = apiToken
	cfg.Database.Postgres.DSN = testPGDSN
	cfg.Database.Redis.URL = testRedisURL

	bot, err := app.New(context.Background(), cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("new bot: %v", err)
	}
	ts := httptest.NewServer(bot.Handler())
	t.Cleanup(func() {
		ts.Close()
		bot.Close()
	})
	return bot, ts
}

// sendMessage POSTs a chat message through the REST gateway.
func sendMessage(t *testing.T, ts *httptest.Server, user, content string) gateway.MessageResponse {
	t.Helper()
	body, err := json.Marshal(gateway.MessageRequest{UserID: user, UserName: user, Content: content})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/gateway/rest/message", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/gateway/rest/message: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var msg gateway.MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return msg
}

func do(t *testing.T, method, url string) *http.Response {
	t.Helper()
	req, _ := http.NewRequest(method, url, nil)
	req.Header.Set("Authorization", "Bearer "+apiToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	return resp
}
