package main

import (
	"bytes"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
)

const (
	baseURL        = "http://127.0.0.1:8080"
	numWorkers     = 50
	testDuration   = 10 * time.Second
	numArtists     = 200
	numTracks      = 20
	playsPerImport = 50
)

var metrics = []string{"totalMs", "playCount", "lastPlayedAt"}

var httpClient = &http.Client{
	Timeout: 5 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        200,
		MaxIdleConnsPerHost: 200,
		IdleConnTimeout:     30 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   2 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	},
}

type result struct {
	endpoint string
	status   int
	latency  time.Duration
	err      bool
}

type stats struct {
	count     int64
	errors    int64
	latencies []time.Duration
}

type extendedPlay struct {
	Ts       string `json:"ts"`
	MsPlayed int64  `json:"ms_played"`
	Track    string `json:"master_metadata_track_name"`
	Artist   string `json:"master_metadata_album_artist_name"`
}

func main() {
	fmt.Println("=== listentier Load Test ===")
	fmt.Printf("Workers: %d | Duration: %s\n", numWorkers, testDuration)
	fmt.Printf("Artists: %d | Tracks per artist: %d | Plays per import: %d\n\n", numArtists, numTracks, playsPerImport)

	// Wait for server
	fmt.Print("Waiting for server... ")
	for i := 0; i < 30; i++ {
		resp, err := httpClient.Get(baseURL + "/health")
		if err == nil {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			break
		}
		if i == 29 {
			fmt.Println("FAILED: server not responding")
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	fmt.Println("OK")

	// Phase 1: Seed history with imports
	fmt.Println("\n--- Phase 1: Seeding history (POST /import) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		return doImport(rng)
	})

	// Phase 2: Mixed read/write load
	fmt.Println("\n--- Phase 2: Mixed load (30% import, 70% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.30:
			return doImport(rng)
		case r < 0.50:
			return doGet("GET /stats", "/stats")
		case r < 0.70:
			return doGet("GET /top/artists", "/top/artists?limit=10&metric="+metrics[rng.Intn(len(metrics))])
		case r < 0.85:
			return doGet("GET /top/tracks", "/top/tracks?limit=10&metric="+metrics[rng.Intn(len(metrics))])
		default:
			return doGet("GET /tier", "/tier")
		}
	})

	// Phase 3: Read-heavy load
	fmt.Println("\n--- Phase 3: Read-heavy load (5% import, 95% GET) ---")
	runPhase(testDuration, func(rng *rand.Rand) result {
		r := rng.Float64()
		switch {
		case r < 0.05:
			return doImport(rng)
		case r < 0.40:
			return doGet("GET /stats", "/stats?from=2024-01-01&to=2024-06-30")
		case r < 0.70:
			return doGet("GET /top/artists", "/top/artists?limit=10")
		case r < 0.85:
			return doGet("GET /reward", "/reward")
		default:
			return doGet("GET /tier", "/tier?popularity="+fmt.Sprint(rng.Intn(101)))
		}
	})
}

func runPhase(duration time.Duration, workFn func(rng *rand.Rand) result) {
	results := make(chan result, 10000)
	var wg sync.WaitGroup
	var totalOps atomic.Int64
	stop := make(chan struct{})

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for {
				select {
				case <-stop:
					return
				default:
					r := workFn(rng)
					totalOps.Add(1)
					results <- r
				}
			}
		}(rand.Int63() + int64(i))
	}

	allResults := make(map[string]*stats)
	done := make(chan struct{})
	go func() {
		for r := range results {
			s, ok := allResults[r.endpoint]
			if !ok {
				s = &stats{}
				allResults[r.endpoint] = s
			}
			s.count++
			if r.err {
				s.errors++
			}
			s.latencies = append(s.latencies, r.latency)
		}
		close(done)
	}()

	time.Sleep(duration)
	close(stop)
	wg.Wait()
	close(results)
	<-done

	printResults(allResults, duration)
}

func printResults(allResults map[string]*stats, duration time.Duration) {
	var totalOps int64
	var totalErrors int64

	endpoints := make([]string, 0, len(allResults))
	for ep := range allResults {
		endpoints = append(endpoints, ep)
	}
	sort.Strings(endpoints)

	fmt.Printf("\n  %-22s %8s %6s %10s %10s %10s %10s\n",
		"Endpoint", "Reqs", "Errs", "Avg", "P50", "P95", "P99")
	fmt.Println("  " + strings.Repeat("-", 88))

	for _, ep := range endpoints {
		s := allResults[ep]
		totalOps += s.count
		totalErrors += s.errors

		sort.Slice(s.latencies, func(i, j int) bool {
			return s.latencies[i] < s.latencies[j]
		})

		avg := avgDuration(s.latencies)
		p50 := percentile(s.latencies, 0.50)
		p95 := percentile(s.latencies, 0.95)
		p99 := percentile(s.latencies, 0.99)

		fmt.Printf("  %-22s %8d %6d %10s %10s %10s %10s\n",
			ep, s.count, s.errors, fmtDur(avg), fmtDur(p50), fmtDur(p95), fmtDur(p99))
	}

	rps := float64(totalOps) / duration.Seconds()
	fmt.Println("  " + strings.Repeat("-", 88))
	fmt.Printf("  Total: %d reqs | Errors: %d (%.1f%%) | RPS: %.0f\n",
		totalOps, totalErrors, float64(totalErrors)/float64(totalOps)*100, rps)
}

func doImport(rng *rand.Rand) result {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	plays := make([]extendedPlay, playsPerImport)
	for i := range plays {
		artist := rng.Intn(numArtists)
		plays[i] = extendedPlay{
			Ts:       base.Add(time.Duration(rng.Intn(365*24*60)) * time.Minute).Format(time.RFC3339),
			MsPlayed: int64(rng.Intn(300_000)),
			Track:    fmt.Sprintf("Track %d-%d", artist, rng.Intn(numTracks)),
			Artist:   fmt.Sprintf("Artist %d", artist),
		}
	}

	data, _ := json.Marshal(plays)
	start := time.Now()
	resp, err := httpClient.Post(baseURL+"/import", "application/json", bytes.NewReader(data))
	lat := time.Since(start)
	if err != nil {
		return result{"POST /import", 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{"POST /import", resp.StatusCode, lat, resp.StatusCode != http.StatusOK}
}

func doGet(label, path string) result {
	start := time.Now()
	resp, err := httpClient.Get(baseURL + path)
	lat := time.Since(start)
	if err != nil {
		return result{label, 0, lat, true}
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return result{label, resp.StatusCode, lat, resp.StatusCode != http.StatusOK}
}

func avgDuration(d []time.Duration) time.Duration {
	if len(d) == 0 {
		return 0
	}
	var sum time.Duration
	for _, v := range d {
		sum += v
	}
	return sum / time.Duration(len(d))
}

func percentile(d []time.Duration, p float64) time.Duration {
	if len(d) == 0 {
		return 0
	}
	idx := int(float64(len(d)) * p)
	if idx >= len(d) {
		idx = len(d) - 1
	}
	return d[idx]
}

func fmtDur(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	}
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000.0)
}
