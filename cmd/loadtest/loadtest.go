// Command loadtest registers a batch of users, connects each one over the
// websocket endpoint and measures how many broadcasts make it back.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/johndosdos/chatroom/internal/model"
)

type result struct {
	sent     atomic.Int64
	received atomic.Int64
	failed   atomic.Int64
}

func main() {
	base := flag.String("addr", "http://127.0.0.1:8000", "server base url")
	clients := flag.Int("clients", 20, "number of concurrent users")
	messages := flag.Int("messages", 10, "messages sent per user")
	interval := flag.Duration("interval", 100*time.Millisecond, "delay between messages")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
		With().
		Timestamp().
		Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	var (
		res   result
		wg    sync.WaitGroup
		start = time.Now()
	)
	for i := 0; i < *clients; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			log := logger.With().Int("worker", i).Logger()
			if err := runClient(ctx, *base, *messages, *interval, *clients, &res); err != nil {
				res.failed.Add(1)
				log.Error().Err(err).Msg("client failed")
			}
		}()
	}
	wg.Wait()

	expected := int64(*clients) * res.sent.Load()
	logger.Info().
		Dur("elapsed", time.Since(start)).
		Int64("sent", res.sent.Load()).
		Int64("received", res.received.Load()).
		Int64("expected_max", expected).
		Int64("failed_clients", res.failed.Load()).
		Msg("load test finished")
}

func runClient(ctx context.Context, base string, messages int, interval time.Duration, peers int, res *result) error {
	email := uuid.NewString() + "@loadtest.local"
	password := "loadtest-" + uuid.NewString()

	if err := postJSON(ctx, base+"/register", model.RegisterRequest{
		Username: "load-" + email[:8],
		Email:    email,
		Password: password,
	}, http.StatusCreated, nil); err != nil {
		return fmt.Errorf("register: %w", err)
	}

	var login model.LoginResponse
	if err := postJSON(ctx, base+"/login", model.LoginRequest{
		Email:    email,
		Password: password,
	}, http.StatusOK, &login); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	wsURL := "ws" + strings.TrimPrefix(base, "http") + fmt.Sprintf("/ws/%d", login.User)
	if login.Token != "" {
		wsURL += "?token=" + url.QueryEscape(login.Token)
	}

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.CloseNow()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, _, err := conn.Read(ctx)
			if err != nil {
				return
			}
			res.received.Add(1)
		}
	}()

	for n := 0; n < messages; n++ {
		msg := fmt.Sprintf("message %d from %d", n, login.User)
		if err := conn.Write(ctx, websocket.MessageText, []byte(msg)); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		res.sent.Add(1)
		time.Sleep(interval)
	}

	// Leave time for the last broadcasts from other peers to arrive.
	time.Sleep(time.Duration(peers) * interval)
	err = conn.Close(websocket.StatusNormalClosure, "done")
	<-done

	return err
}

func postJSON(ctx context.Context, endpoint string, body any, want int, out any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
