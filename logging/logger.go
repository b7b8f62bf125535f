package logging

import (
	"encoding/hex"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu  sync.RWMutex
	log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}).With().Timestamp().Logger()
)

func Logger() *zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	l := log
	return &l
}

func SetJSONOutput() {
	mu.Lock()
	defer mu.Unlock()
	log = zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// SetLevel parses a zerolog level name ("debug", "info", ...).
func SetLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	mu.Lock()
	defer mu.Unlock()
	log = log.Level(lvl)
	return nil
}

// ShortHex renders at most the first four bytes of b, for log lines.
func ShortHex(b []byte) string {
	if len(b) > 4 {
		b = b[:4]
	}
	return hex.EncodeToString(b) + "..."
}
