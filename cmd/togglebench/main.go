package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/d60-Lab/azit-engine/internal/engage"
	"github.com/d60-Lab/azit-engine/internal/gateway"
	"github.com/d60-Lab/azit-engine/internal/model"
	"github.com/d60-Lab/azit-engine/internal/session"
)

// 对同一内容做并发 toggle 风暴，校验串行化后计数不漂移。
func main() {
	N := 10000
	if s := os.Getenv("N"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			N = n
		}
	}
	CONC := 16
	if s := os.Getenv("CONC"); s != "" {
		if c, err := strconv.Atoi(s); err == nil && c > 0 {
			CONC = c
		}
	}

	fake := gateway.NewFake()
	fake.SeedViewer("bench@example.com", "bench")
	contentID := fake.SeedContent(model.KindFeed, "author@example.com", "author", "bench post")

	sess := session.New()
	sess.SetViewer(&model.UserSnapshot{Email: "bench@example.com", Name: "bench"})
	reg := engage.NewRegistry()
	rec := engage.NewReconciler(fake, sess, reg, nil)
	rec.PrimeHeart(contentID, false, 0)

	ctx := context.Background()
	latencies := make([]time.Duration, N)

	var wg sync.WaitGroup
	start := time.Now()
	jobs := make(chan int, N)
	for i := 0; i < N; i++ {
		jobs <- i
	}
	close(jobs)
	for w := 0; w < CONC; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				t0 := time.Now()
				if _, err := rec.ToggleHeart(ctx, model.KindFeed, contentID); err != nil {
					panic(err)
				}
				latencies[i] = time.Since(t0)
			}
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// 引擎视角 vs 服务端真相
	local := rec.HeartStateOf(ctx, contentID)
	item, err := fake.FetchContent(ctx, model.KindFeed, contentID)
	if err != nil {
		panic(err)
	}

	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p := func(q float64) time.Duration { return latencies[int(float64(N-1)*q)] }

	fmt.Printf("toggles=%d conc=%d elapsed=%v qps=%.0f\n", N, CONC, elapsed, float64(N)/elapsed.Seconds())
	fmt.Printf("p50=%v p95=%v p99=%v\n", p(0.50), p(0.95), p(0.99))
	fmt.Printf("local: hearted=%v count=%d\n", local.Hearted, local.Count)
	fmt.Printf("server: hearted=%v count=%d\n", item.IsHearted, item.HeartCount)
	if local.Hearted != item.IsHearted || local.Count != item.HeartCount {
		fmt.Println("DRIFT DETECTED")
		os.Exit(1)
	}
	fmt.Println("no drift")
}
