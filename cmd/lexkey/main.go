// lexkey command-line store
// Packs tuples of typed values into order-preserving keys, persists them in
// a WAL-durable sorted key-value store, and dumps decoded tuples back out.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/nainya/lexkey/internal/logger"
	"github.com/nainya/lexkey/internal/metrics"
	"github.com/nainya/lexkey/internal/server"
	"github.com/nainya/lexkey/pkg/keycodec"
	"github.com/nainya/lexkey/pkg/storage"
)

var (
	dbPath      = flag.String("db", "lexkey.db", "Database file path")
	prefix      = flag.Uint("prefix", 0, "32-bit namespace prefix for the key")
	metricsAddr = flag.String("metrics-addr", "", "address to serve /metrics and /health on (disabled if empty)")
	logLevel    = flag.String("log-level", "info", "debug, info, warn, error")
	logPretty   = flag.Bool("log-pretty", false, "pretty-print logs for local use")
)

func usage() {
	fmt.Fprintf(os.Stderr, `lexkey: order-preserving tuple key store

Usage:
  lexkey [flags] put <value> [value...]
  lexkey [flags] get <value> [value...]
  lexkey [flags] del <value> [value...]
  lexkey [flags] scan
  lexkey [flags] pack <value> [value...]
  lexkey [flags] unpack <hex-key>

Value syntax (each positional argument is one tuple element):
  n               NULL
  bool:true|false BOOL
  i:123           INTEGER/NEG_INTEGER
  s:hello         TEXT
  b:68656c6c6f    BLOB, hex-encoded
  u:<uuid>        UUID
  t:<RFC3339>     TIME

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	logger.InitGlobalLogger(logger.Config{Level: *logLevel, Pretty: *logPretty})
	log := logger.GetGlobalLogger()
	m := metrics.NewMetrics()

	if *metricsAddr != "" {
		obs := server.NewObservabilityServer(*metricsAddr, log)
		go func() {
			if err := obs.Start(); err != nil {
				log.Error("observability server exited").Err(err).Send()
			}
		}()
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigChan
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			obs.Shutdown(ctx)
		}()
	}

	args := flag.Args()
	if len(args) < 1 {
		usage()
		os.Exit(2)
	}

	cmd, rest := args[0], args[1:]

	if cmd == "pack" || cmd == "unpack" {
		if err := runCodecOnly(cmd, rest); err != nil {
			log.Fatal("command failed").Err(err).Send()
		}
		return
	}

	db := &storage.KV{Path: *dbPath, Log: log, Metrics: m}
	if err := db.Open(); err != nil {
		log.Fatal("failed to open database").Str("path", *dbPath).Err(err).Send()
	}
	defer db.Close()

	var err error
	switch cmd {
	case "put":
		err = runPut(db, rest)
	case "get":
		err = runGet(db, rest)
	case "del":
		err = runDel(db, rest)
	case "scan":
		err = runScan(db)
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		log.Error("command failed").Str("command", cmd).Err(err).Send()
		os.Exit(1)
	}
}

func runCodecOnly(cmd string, rest []string) error {
	switch cmd {
	case "pack":
		vals, err := parseValues(rest)
		if err != nil {
			return err
		}
		key := storage.EncodeKey(uint32(*prefix), vals)
		fmt.Println(hex.EncodeToString(key))
		return nil
	case "unpack":
		if len(rest) != 1 {
			return fmt.Errorf("unpack takes exactly one hex-encoded key")
		}
		key, err := hex.DecodeString(rest[0])
		if err != nil {
			return fmt.Errorf("decode hex: %w", err)
		}
		vals, err := storage.ExtractValues(key)
		if err != nil {
			return fmt.Errorf("decode key: %w", err)
		}
		fmt.Println(formatTuple(vals))
		return nil
	}
	return nil
}

func runPut(db *storage.KV, rest []string) error {
	if len(rest) < 1 {
		return fmt.Errorf("put requires at least one value")
	}
	vals, err := parseValues(rest)
	if err != nil {
		return err
	}
	key := storage.EncodeKey(uint32(*prefix), vals)
	return db.Set(key, []byte{1})
}

func runGet(db *storage.KV, rest []string) error {
	if len(rest) < 1 {
		return fmt.Errorf("get requires at least one value")
	}
	vals, err := parseValues(rest)
	if err != nil {
		return err
	}
	key := storage.EncodeKey(uint32(*prefix), vals)
	if _, ok := db.Get(key); !ok {
		fmt.Println("not found")
		return nil
	}
	fmt.Println(formatTuple(vals))
	return nil
}

func runDel(db *storage.KV, rest []string) error {
	if len(rest) < 1 {
		return fmt.Errorf("del requires at least one value")
	}
	vals, err := parseValues(rest)
	if err != nil {
		return err
	}
	key := storage.EncodeKey(uint32(*prefix), vals)
	deleted, err := db.Del(key)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Println("not found")
	}
	return nil
}

func runScan(db *storage.KV) error {
	var pfx [4]byte
	binPutUint32(pfx[:], uint32(*prefix))
	count := 0
	db.Scan(pfx[:], func(key, val []byte) bool {
		if storage.ExtractPrefix(key) != uint32(*prefix) {
			return false
		}
		vals, err := storage.ExtractValues(key)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skip undecodable key: %v\n", err)
			return true
		}
		fmt.Println(formatTuple(vals))
		count++
		return true
	})
	if count == 0 {
		fmt.Println("(empty)")
	}
	return nil
}

func binPutUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// parseValues parses each command-line token into a keycodec.Value per the
// syntax documented in usage().
func parseValues(tokens []string) ([]storage.Value, error) {
	vals := make([]storage.Value, 0, len(tokens))
	for _, tok := range tokens {
		v, err := parseValue(tok)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", tok, err)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func parseValue(tok string) (storage.Value, error) {
	if tok == "n" {
		return keycodec.Null(), nil
	}
	kind, rest, ok := strings.Cut(tok, ":")
	if !ok {
		return storage.Value{}, fmt.Errorf("expected kind:payload or n")
	}
	switch kind {
	case "bool":
		b, err := strconv.ParseBool(rest)
		if err != nil {
			return storage.Value{}, err
		}
		return keycodec.BoolValue(b), nil
	case "i":
		n, err := strconv.ParseInt(rest, 10, 64)
		if err != nil {
			return storage.Value{}, err
		}
		return keycodec.IntValue(n), nil
	case "s":
		return keycodec.TextValue(rest), nil
	case "b":
		raw, err := hex.DecodeString(rest)
		if err != nil {
			return storage.Value{}, err
		}
		return keycodec.BlobValue(raw), nil
	case "u":
		id, err := uuid.Parse(rest)
		if err != nil {
			return storage.Value{}, err
		}
		return keycodec.UUIDFromGoogle(id), nil
	case "t":
		t, err := time.Parse(time.RFC3339, rest)
		if err != nil {
			return storage.Value{}, err
		}
		return keycodec.TimeValue(keycodec.FromTime(t)), nil
	default:
		return storage.Value{}, fmt.Errorf("unrecognized kind %q", kind)
	}
}

func formatTuple(vals []storage.Value) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, ", ")
}

func formatValue(v storage.Value) string {
	switch v.Kind {
	case keycodec.KindNull:
		return "null"
	case keycodec.KindBool:
		return strconv.FormatBool(v.Bool)
	case keycodec.KindInt, keycodec.KindNegInt:
		return strconv.FormatInt(v.Int, 10)
	case keycodec.KindBlob:
		return "b:" + hex.EncodeToString(v.Blob)
	case keycodec.KindText:
		return strconv.Quote(v.Text)
	case keycodec.KindUUID:
		return v.Google().String()
	case keycodec.KindTime, keycodec.KindNegTime:
		dt := v.Time
		return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02d", dt.Year, dt.Month, dt.Day, dt.Hour, dt.Min, dt.Sec)
	default:
		return fmt.Sprintf("<kind %02x>", byte(v.Kind))
	}
}
