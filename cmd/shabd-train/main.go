package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"shabd/internal/pkg/shabd/config"
	"shabd/internal/pkg/shabd/corpus"
	"shabd/internal/pkg/shabd/tokenizer"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.LoadTrain(os.Args[1:])
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse configuration")
	}

	if err := setupLogging(cfg.LogLevel, cfg.LogFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to setup logging")
	}

	if err := os.MkdirAll(cfg.ModelDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.ModelDir).Msg("Failed to create model directory")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("Failed to create data directory")
	}

	loader := corpus.NewLoader(log.Logger)

	var text string
	if cfg.CorpusFile != "" {
		log.Info().Str("path", cfg.CorpusFile).Msg("Loading corpus from file")
		text, err = loader.LoadFile(cfg.CorpusFile)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load corpus")
		}
	} else {
		text, err = loader.Stream(context.Background(), corpus.StreamSpec{
			Dataset:     cfg.Dataset,
			Config:      cfg.Subset,
			Split:       cfg.Split,
			Field:       cfg.Field,
			MaxExamples: cfg.NumExamples,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to stream corpus")
		}
		corpusPath := filepath.Join(cfg.DataDir, cfg.CorpusOut)
		if err := loader.SaveText(text, corpusPath); err != nil {
			log.Fatal().Err(err).Msg("Failed to save corpus text")
		}
	}

	tok, err := tokenizer.New(cfg.Tokenizer, tokenizer.Config{Logger: log.Logger})
	if err != nil {
		log.Fatal().Err(err).Str("tokenizer", cfg.Tokenizer).Msg("Failed to create tokenizer")
	}

	log.Info().Int("vocab_size", cfg.VocabSize).Msg("Training tokenizer")
	startTime := time.Now()
	if err := tok.Train(text, cfg.VocabSize); err != nil {
		log.Fatal().Err(err).Msg("Training failed")
	}
	log.Info().Dur("elapsed", time.Since(startTime)).Int("vocab", tok.VocabSize()).Msg("Training finished")

	vocabPath := filepath.Join(cfg.ModelDir, "vocab.json")
	if err := tok.Save(vocabPath); err != nil {
		log.Fatal().Err(err).Str("path", vocabPath).Msg("Failed to save vocabulary")
	}
	log.Info().Str("path", vocabPath).Msg("Saved vocabulary")
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
