// Command chat sends lines from stdin to the bot's REST gateway and prints
// the replies.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nidhogg/nuka-bot/internal/gateway"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "bot server URL")
	token := flag.String("token", os.Getenv("BOT_API_TOKEN"), "API token (defaults to $BOT_API_TOKEN)")
	user := flag.String("user", "cli-user", "user id to send as")
	direct := flag.Bool("direct", false, "send as a direct message")
	perms := flag.String("perms", "", "comma separated permissions held by the user")
	flag.Parse()

	c := &client{
		url:   strings.TrimRight(*server, "/") + "/api/gateway/rest/message",
		token: *token,
		http:  &http.Client{Timeout: 65 * time.Second},
	}
	req := gateway.MessageRequest{UserID: *user, UserName: *user, Direct: *direct}
	for _, p := range strings.Split(*perms, ",") {
		if p = strings.TrimSpace(p); p != "" {
			req.Permissions = append(req.Permissions, p)
		}
	}

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		req.Content = strings.TrimSpace(scanner.Text())
		if req.Content == "" {
			continue
		}
		msg, err := c.send(req)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		for _, r := range msg.Replies {
			fmt.Println(r.Content)
		}
		if msg.Rejection != "" {
			fmt.Printf("[%s %s]\n", msg.Command, msg.Rejection)
		}
	}
}

type client struct {
	url   string
	token string
	http  *http.Client
}

func (c *client) send(req gateway.MessageRequest) (*gateway.MessageResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server error (%d): %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var msg gateway.MessageResponse
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &msg, nil
}
