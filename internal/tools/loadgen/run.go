// Package loadgen drives synthetic login traffic against a running instance,
// mixing good and bad credentials so the throttle and risk paths both see
// load.
package loadgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

type Config struct {
	BaseURL     string
	Email       string
	Password    string
	Duration    time.Duration
	RPS         int
	Concurrency int
	FailureRate float64 // fraction of requests sent with a wrong password
	Seed        int64
}

type Result struct {
	TotalRequests int64
	Failures      int64
	Locked        int64
	RateLimited   int64
}

func Run(ctx context.Context, cfg Config) (Result, error) {
	if cfg.RPS <= 0 {
		cfg.RPS = 10
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Duration <= 0 {
		cfg.Duration = 10 * time.Second
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		cfg.FailureRate = 0.3
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	var result Result
	rng := rand.New(rand.NewSource(cfg.Seed))
	var rngMu sync.Mutex
	ticker := time.NewTicker(time.Second / time.Duration(cfg.RPS))
	defer ticker.Stop()

	jobs := make(chan bool)
	var wg sync.WaitGroup
	client := &http.Client{Timeout: 10 * time.Second}
	for i := 0; i < cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sendBad := range jobs {
				status, err := attemptLogin(ctx, client, cfg, sendBad)
				atomic.AddInt64(&result.TotalRequests, 1)
				switch {
				case err != nil || status >= 500:
					atomic.AddInt64(&result.Failures, 1)
				case status == http.StatusLocked:
					atomic.AddInt64(&result.Locked, 1)
				case status == http.StatusTooManyRequests:
					atomic.AddInt64(&result.RateLimited, 1)
				}
			}
		}()
	}

loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case <-ticker.C:
			rngMu.Lock()
			sendBad := rng.Float64() < cfg.FailureRate
			rngMu.Unlock()
			select {
			case jobs <- sendBad:
			case <-ctx.Done():
				break loop
			}
		}
	}
	close(jobs)
	wg.Wait()
	return result, nil
}

func attemptLogin(ctx context.Context, client *http.Client, cfg Config, sendBad bool) (int, error) {
	password := cfg.Password
	if sendBad {
		password = password + "-wrong"
	}
	body, err := json.Marshal(map[string]string{"email": cfg.Email, "password": password})
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s/api/v1/auth/login", cfg.BaseURL), bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()
	return resp.StatusCode, nil
}
