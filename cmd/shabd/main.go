package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shabd/internal/pkg/shabd/config"
	"shabd/internal/pkg/shabd/server"
	"shabd/internal/pkg/shabd/tokenizer"
)

func main() {
	fmt.Fprintf(os.Stderr, "shabd %s\n", Version)

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.LoadApp(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse configuration")
	}

	if err := setupLogging(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup logging")
	}

	tok, err := tokenizer.New(cfg.Tokenizer, tokenizer.Config{Logger: log.Logger})
	if err != nil {
		log.Fatal().Err(err).Str("tokenizer", cfg.Tokenizer).Msg("Failed to create tokenizer")
	}

	if err := tok.Load(cfg.VocabPath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Fatal().Str("path", cfg.VocabPath).Msg("Vocabulary file not found, run shabd-train first")
		}
		log.Fatal().Err(err).Str("path", cfg.VocabPath).Msg("Failed to load vocabulary")
	}
	log.Debug().Str("path", cfg.VocabPath).Int("vocab", tok.VocabSize()).Msg("Vocabulary loaded")

	switch {
	case cfg.Serve:
		srv := server.New(tok, log.Logger)
		if err := srv.Run(cfg.Listen); err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}

	case cfg.DecodeIDs != "":
		ids, err := parseIDs(cfg.DecodeIDs)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to parse token ids")
		}
		fmt.Println(tok.Decode(ids))

	default:
		ids, err := tok.Encode(cfg.Text)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode text")
		}
		parts := make([]string, len(ids))
		for i, id := range ids {
			parts[i] = strconv.Itoa(id)
		}
		fmt.Println(strings.Join(parts, " "))
		log.Debug().Int("tokens", len(ids)).Msg("Encoded")
	}
}

func parseIDs(s string) ([]int, error) {
	fields := strings.Split(s, ",")
	ids := make([]int, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		id, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("invalid token id %q: %w", f, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func setupLogging(levelStr, logFile string) error {
	level, err := zerolog.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		log.Logger = zerolog.New(f).With().Timestamp().Logger()
	}

	return nil
}
