package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"time"

	"github.com/cluso/lsmkv/pkg/db"
)

func main() {
	keys := flag.Int("keys", 100000, "Number of keys to write")
	workers := flag.Int("workers", 8, "Concurrent writer goroutines")
	valueSize := flag.Int("value-size", 128, "Random value size in bytes")
	dataDir := flag.String("dir", "./data/lsmkv-bench", "Database directory")
	flag.Parse()

	fmt.Println("lsmkv write/read benchmark")
	fmt.Println("==========================")
	fmt.Printf("keys=%d workers=%d value_size=%d dir=%s\n\n", *keys, *workers, *valueSize, *dataDir)

	os.RemoveAll(*dataDir)

	writeTime := benchmarkWrite(*dataDir, *keys, *workers, *valueSize)
	fmt.Printf("write: %v total, %.0f keys/sec\n", writeTime, float64(*keys)/writeTime.Seconds())

	readTime := benchmarkRead(*dataDir, *keys, *workers)
	fmt.Printf("read:  %v total, %.0f keys/sec\n", readTime, float64(*keys)/readTime.Seconds())
}

func benchmarkWrite(dir string, keyCount, numWorkers, valueSize int) time.Duration {
	database, err := db.Open(db.Options{Dir: dir}, nil)
	if err != nil {
		log.Fatalf("open: %v", err)
	}
	defer database.Close()

	start := time.Now()
	perWorker := keyCount / numWorkers

	var wg sync.WaitGroup
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(id int) {
			defer wg.Done()
			ctx := context.Background()
			rng := rand.New(rand.NewSource(int64(id)))
			value := make([]byte, valueSize)

			lo, hi := id*perWorker, (id+1)*perWorker
			for i := lo; i < hi; i++ {
				rng.Read(value)
				key := []byte(fmt.Sprintf("key-%08d", i))
				if err := database.Put(ctx, db.DefaultColumnName, key, value); err != nil {
					log.Printf("put %s: %v", key, err)
				}
			}
		}(w)
	}
	wg.Wait()

	if err := database.Sync(); err != nil {
		log.Fatalf("sync: %v", err)
	}
	return time.Since(start)
}

func benchmarkRead(dir string, keyCount, numWorkers int) time.Duration {
	database, err := db.Open(db.Options{Dir: dir}, nil)
	if err != nil {
		log.Fatalf("reopen: %v", err)
	}
	defer database.Close()

	start := time.Now()
	perWorker := keyCount / numWorkers

	var wg sync.WaitGroup
	var misses int64
	var mu sync.Mutex
	wg.Add(numWorkers)
	for w := 0; w < numWorkers; w++ {
		go func(id int) {
			defer wg.Done()
			lo, hi := id*perWorker, (id+1)*perWorker
			localMisses := int64(0)
			for i := lo; i < hi; i++ {
				key := []byte(fmt.Sprintf("key-%08d", i))
				if _, err := database.Get(db.DefaultColumnName, key); err != nil {
					localMisses++
				}
			}
			mu.Lock()
			misses += localMisses
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	if misses > 0 {
		fmt.Printf("warning: %d keys not found on read-back\n", misses)
	}
	return time.Since(start)
}
