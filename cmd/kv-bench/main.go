package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"net"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loganszeto/respkv/internal/protocol"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:6379", "server address")
	clients := flag.Int("clients", 10, "number of connections")
	threads := flag.Int("threads", 10, "goroutines")
	ops := flag.Int("ops", 10000, "total operations")
	ratioGet := flag.Float64("ratio_get", 0.8, "get ratio")
	valueSize := flag.Int("value_size", 128, "value size bytes")
	flag.Parse()

	if *threads <= 0 || *clients <= 0 {
		fmt.Fprintln(os.Stderr, "threads and clients must be > 0")
		os.Exit(1)
	}

	value := strings.Repeat("x", *valueSize)
	keys := make([]string, 1000)
	for i := range keys {
		keys[i] = fmt.Sprintf("key:%d", i)
	}

	var opsDone atomic.Int64
	var errCount atomic.Int64
	latCh := make(chan time.Duration, *ops)

	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < *threads; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			conn, err := net.Dial("tcp", *addr)
			if err != nil {
				return
			}
			defer conn.Close()
			reader := bufio.NewReader(conn)
			rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)))
			for {
				idx := int(opsDone.Add(1)) - 1
				if idx >= *ops {
					return
				}
				key := keys[rng.Intn(len(keys))]
				doGet := rng.Float64() < *ratioGet
				var req []byte
				if doGet {
					req = protocol.EncodeCommand("GET", key)
				} else {
					req = protocol.EncodeCommand("SET", key, value)
				}
				startOp := time.Now()
				if _, err := conn.Write(req); err != nil {
					return
				}
				reply, err := protocol.ReadReply(reader)
				if err != nil {
					return
				}
				if reply.Kind == protocol.KindError {
					errCount.Add(1)
				}
				latCh <- time.Since(startOp)
			}
		}(i)
		if (i+1)%*clients == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}

	wg.Wait()
	close(latCh)

	elapsed := time.Since(start)
	totalOps := opsDone.Load()
	if totalOps > int64(*ops) {
		totalOps = int64(*ops)
	}
	fmt.Printf("Total ops: %d\n", totalOps)
	fmt.Printf("Elapsed: %s\n", elapsed)
	fmt.Printf("Ops/sec: %.2f\n", float64(totalOps)/elapsed.Seconds())
	fmt.Printf("Error replies: %d\n", errCount.Load())

	var lats []time.Duration
	for d := range latCh {
		lats = append(lats, d)
	}
	printLatencyStats(lats)
}

func printLatencyStats(lats []time.Duration) {
	if len(lats) == 0 {
		fmt.Println("No latency samples")
		return
	}
	sortDurations(lats)
	p50 := lats[len(lats)*50/100]
	p95 := lats[len(lats)*95/100]
	p99 := lats[len(lats)*99/100]
	fmt.Printf("p50: %s\n", p50)
	fmt.Printf("p95: %s\n", p95)
	fmt.Printf("p99: %s\n", p99)
}

func sortDurations(vals []time.Duration) {
	sort.Slice(vals, func(i, j int) bool { return vals[i] < vals[j] })
}
