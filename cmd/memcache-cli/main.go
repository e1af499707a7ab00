package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pior/metacache"
)

func main() {
	fmt.Println("Memcache CLI Tool")
	fmt.Println("================")
	fmt.Println("Commands: get <key>, set <key> <value> [ttl], delete <key>, multi-get <key1> <key2> ..., stats, flush, quit")
	fmt.Println()

	client, err := metacache.NewClient(nil)
	if err != nil {
		fmt.Printf("Failed to create client: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		command := strings.ToLower(parts[0])
		ctx := context.Background()

		switch command {
		case "get":
			if len(parts) != 2 {
				fmt.Println("Usage: get <key>")
				continue
			}
			handleGet(ctx, client, parts[1])

		case "set":
			if len(parts) < 3 || len(parts) > 4 {
				fmt.Println("Usage: set <key> <value> [ttl_seconds]")
				continue
			}
			ttl := time.Duration(0)
			if len(parts) == 4 {
				ttlSecs, err := strconv.Atoi(parts[3])
				if err != nil {
					fmt.Printf("Invalid TTL: %v\n", err)
					continue
				}
				ttl = time.Duration(ttlSecs) * time.Second
			}
			handleSet(ctx, client, parts[1], parts[2], ttl)

		case "delete", "del":
			if len(parts) != 2 {
				fmt.Println("Usage: delete <key>")
				continue
			}
			handleDelete(ctx, client, parts[1])

		case "invalidate":
			if len(parts) != 2 {
				fmt.Println("Usage: invalidate <key>")
				continue
			}
			handleInvalidate(ctx, client, parts[1])

		case "multi-get", "mget":
			if len(parts) < 2 {
				fmt.Println("Usage: multi-get <key1> <key2> ...")
				continue
			}
			handleMultiGet(ctx, client, parts[1:])

		case "incr":
			if len(parts) != 3 {
				fmt.Println("Usage: incr <key> <delta>")
				continue
			}
			handleIncr(ctx, client, parts[1], parts[2], false)

		case "decr":
			if len(parts) != 3 {
				fmt.Println("Usage: decr <key> <delta>")
				continue
			}
			handleIncr(ctx, client, parts[1], parts[2], true)

		case "flush":
			handleFlush(ctx, client)

		case "stats":
			handleStats(client)

		case "help":
			fmt.Println("Commands:")
			fmt.Println("  get <key>                 - Get a value by key")
			fmt.Println("  set <key> <value> [ttl]   - Set a key-value pair with optional TTL")
			fmt.Println("  delete <key>              - Delete a key")
			fmt.Println("  invalidate <key>          - Mark a key stale instead of deleting it")
			fmt.Println("  multi-get <key1> <key2>   - Get multiple keys at once")
			fmt.Println("  incr <key> <delta>        - Increment a counter")
			fmt.Println("  decr <key> <delta>        - Decrement a counter")
			fmt.Println("  flush                     - Flush every configured endpoint")
			fmt.Println("  stats                     - Show client and server statistics")
			fmt.Println("  quit                      - Exit the CLI")

		case "quit", "exit":
			fmt.Println("Goodbye!")
			return

		default:
			fmt.Printf("Unknown command: %s. Type 'help' for available commands.\n", command)
		}
	}

	if err := scanner.Err(); err != nil {
		fmt.Printf("Error reading input: %v\n", err)
	}
}

func handleGet(ctx context.Context, client *metacache.Client, key string) {
	start := time.Now()
	result, err := metacache.Get[string](ctx, client, key)
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v (took %v)\n", err, duration)
		return
	}
	if result.Value == nil {
		fmt.Printf("Key not found (took %v)\n", duration)
		return
	}

	fmt.Printf("Value: %s (took %v)\n", *result.Value, duration)
}

func handleSet(ctx context.Context, client *metacache.Client, key, value string, ttl time.Duration) {
	start := time.Now()
	err := client.Set(ctx, key, value, ttl)
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v (took %v)\n", err, duration)
		return
	}

	fmt.Printf("Stored successfully (took %v)\n", duration)
}

func handleDelete(ctx context.Context, client *metacache.Client, key string) {
	start := time.Now()
	err := client.Delete(ctx, key, nil)
	duration := time.Since(start)

	var notFound *metacache.NotFoundError
	switch {
	case errors.As(err, &notFound):
		fmt.Printf("Key not found (took %v)\n", duration)
	case err != nil:
		fmt.Printf("Error: %v (took %v)\n", err, duration)
	default:
		fmt.Printf("Delete successful (took %v)\n", duration)
	}
}

func handleInvalidate(ctx context.Context, client *metacache.Client, key string) {
	start := time.Now()
	err := client.Invalidate(ctx, key, nil, nil)
	duration := time.Since(start)

	var notFound *metacache.NotFoundError
	switch {
	case errors.As(err, &notFound):
		fmt.Printf("Key not found (took %v)\n", duration)
	case err != nil:
		fmt.Printf("Error: %v (took %v)\n", err, duration)
	default:
		fmt.Printf("Invalidate successful (took %v)\n", duration)
	}
}

func handleMultiGet(ctx context.Context, client *metacache.Client, keys []string) {
	start := time.Now()
	items, err := client.GetMany(ctx, keys)
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v (took %v)\n", err, duration)
		return
	}

	found := 0
	for _, item := range items {
		if item.Found {
			found++
			fmt.Printf("  %s: %s\n", item.Key, string(item.Value))
		} else {
			fmt.Printf("  %s: <not found>\n", item.Key)
		}
	}

	fmt.Printf("Retrieved %d out of %d keys (took %v)\n", found, len(keys), duration)
}

func handleIncr(ctx context.Context, client *metacache.Client, key, deltaStr string, decrement bool) {
	delta, err := strconv.ParseUint(deltaStr, 10, 64)
	if err != nil {
		fmt.Printf("Invalid delta: %v\n", err)
		return
	}

	start := time.Now()
	var value uint64
	if decrement {
		value, err = client.Decr(ctx, key, delta, true, 0, 0)
	} else {
		value, err = client.Incr(ctx, key, delta, true, 0, 0)
	}
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v (took %v)\n", err, duration)
		return
	}

	fmt.Printf("Value: %d (took %v)\n", value, duration)
}

func handleFlush(ctx context.Context, client *metacache.Client) {
	start := time.Now()
	err := client.FlushAll(ctx, 0)
	duration := time.Since(start)

	if err != nil {
		fmt.Printf("Error: %v (took %v)\n", err, duration)
		return
	}

	fmt.Printf("Flushed all endpoints (took %v)\n", duration)
}

func handleStats(client *metacache.Client) {
	stats := client.Stats()
	fmt.Println("Client Statistics:")
	fmt.Printf("  Gets: %d (hits: %d, misses: %d, hit rate: %.2f%%)\n",
		stats.Gets, stats.CacheHits, stats.CacheMisses, stats.HitRate()*100)
	fmt.Printf("  Sets: %d  Adds: %d  Deletes: %d  Increments: %d  Errors: %d\n",
		stats.Sets, stats.Adds, stats.Deletes, stats.Increments, stats.Errors)
	fmt.Println()

	serverStats := client.ServerStats()
	fmt.Println("Server Statistics:")
	for _, s := range serverStats {
		fmt.Printf("Endpoint %s:\n", s.Addr)
		fmt.Printf("  Total Connections: %d  Active: %d  Idle: %d\n",
			s.PoolStats.TotalConns, s.PoolStats.ActiveConns, s.PoolStats.IdleConns)
		fmt.Printf("  Circuit Breaker: %s\n", s.CircuitBreakerState)
		fmt.Println()
	}
}
