// Command sse-load holds many board streams open against stream-service and
// reports how many board snapshots arrived.
package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	integration "roadmap-planner/tests/integration"
)

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func main() {
	roadmapID := os.Getenv("ROADMAP_ID")
	if roadmapID == "" {
		fmt.Println("ROADMAP_ID is required")
		os.Exit(2)
	}
	streamURL := getenv("STREAM_URL", "http://localhost:9000/stream") + "?roadmapId=" + url.QueryEscape(roadmapID)
	conns := getenvInt("SSE_CONNECTIONS", 200)
	duration := time.Duration(getenvInt("DURATION_SEC", 120)) * time.Second
	bearer := os.Getenv("TEST_BEARER")
	if bearer == "" {
		tok, err := integration.TestToken(getenv("SSE_USER", "sse-load"), os.Getenv("SSE_EMAIL"))
		if err != nil {
			fmt.Println("mint token:", err)
			os.Exit(2)
		}
		bearer = tok
	}

	var events uint64
	var closed uint64
	var attempts uint64
	var failures uint64

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	defer cancel()

	client := &http.Client{}
	var wg sync.WaitGroup
	wg.Add(conns)
	for range conns {
		go func() {
			defer wg.Done()
			backoff := time.Second
			for {
				if ctx.Err() != nil {
					return
				}
				atomic.AddUint64(&attempts, 1)
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, streamURL, nil)
				if err != nil {
					atomic.AddUint64(&failures, 1)
					time.Sleep(backoff)
					backoff = min(backoff*2, 5*time.Second)
					continue
				}
				req.Header.Set("Authorization", "Bearer "+bearer)
				req.Header.Set("Accept", "text/event-stream")
				resp, err := client.Do(req)
				if err != nil || resp.StatusCode != http.StatusOK {
					if resp != nil {
						resp.Body.Close()
					}
					atomic.AddUint64(&failures, 1)
					time.Sleep(backoff)
					backoff = min(backoff*2, 5*time.Second)
					continue
				}
				backoff = time.Second
				scanner := bufio.NewScanner(resp.Body)
				scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
				for scanner.Scan() {
					line := scanner.Text()
					if line == "event: closed" {
						atomic.AddUint64(&closed, 1)
						resp.Body.Close()
						return
					}
					if strings.HasPrefix(line, "data:") {
						atomic.AddUint64(&events, 1)
					}
					if ctx.Err() != nil {
						resp.Body.Close()
						return
					}
				}
				resp.Body.Close()
				if ctx.Err() != nil {
					return
				}
				atomic.AddUint64(&failures, 1)
				time.Sleep(backoff)
				backoff = min(backoff*2, 5*time.Second)
			}
		}()
	}

	go func() {
		select {
		case <-time.After(60 * time.Second):
			if atomic.LoadUint64(&events) == 0 {
				fmt.Println("no board snapshots received in 60s")
				os.Exit(1)
			}
		case <-ctx.Done():
		}
	}()

	wg.Wait()
	failuresVal := atomic.LoadUint64(&failures)
	attemptsVal := atomic.LoadUint64(&attempts)
	eventsVal := atomic.LoadUint64(&events)
	failureRate := 0.0
	if attemptsVal > 0 {
		failureRate = float64(failuresVal) / float64(attemptsVal)
	}
	fmt.Printf("connections=%d duration_sec=%d snapshots_received=%d streams_closed=%d connection_failures=%d\n",
		conns, int(duration.Seconds()), eventsVal, atomic.LoadUint64(&closed), failuresVal)
	if eventsVal == 0 || failureRate > 0.01 {
		os.Exit(1)
	}
}
