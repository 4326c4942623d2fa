package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// TrainConfig drives the shabd-train binary.
type TrainConfig struct {
	Dataset     string `mapstructure:"dataset"`
	Subset      string `mapstructure:"subset"`
	Split       string `mapstructure:"split"`
	Field       string `mapstructure:"field"`
	NumExamples int    `mapstructure:"num_examples"`
	VocabSize   int    `mapstructure:"vocab_size"`
	CorpusFile  string `mapstructure:"corpus_file"`
	ModelDir    string `mapstructure:"model_dir"`
	DataDir     string `mapstructure:"data_dir"`
	CorpusOut   string `mapstructure:"corpus_out"`
	Tokenizer   string `mapstructure:"tokenizer"`
	LogLevel    string `mapstructure:"log_level"`
	LogFile     string `mapstructure:"log_file"`
}

// LoadTrain parses flags, config file and SHABD_* environment variables
// for the training binary. args is normally os.Args[1:].
func LoadTrain(args []string) (*TrainConfig, error) {
	v := viper.New()
	v.SetDefault("dataset", "ai4bharat/samanantar")
	v.SetDefault("subset", "mr")
	v.SetDefault("split", "train")
	v.SetDefault("field", "tgt")
	v.SetDefault("num_examples", 10000)
	v.SetDefault("vocab_size", 5000)
	v.SetDefault("corpus_file", "")
	v.SetDefault("model_dir", "model")
	v.SetDefault("data_dir", "data")
	v.SetDefault("corpus_out", "corpus.txt")
	v.SetDefault("tokenizer", "bpe")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	flagSet := pflag.NewFlagSet("shabd-train", pflag.ContinueOnError)
	configFile := flagSet.StringP("config", "c", "", "Path to config file")
	flagSet.StringP("dataset", "d", "", "Dataset to stream from the Hugging Face datasets server")
	flagSet.String("subset", "", "Dataset subset/config (e.g. language code)")
	flagSet.String("split", "", "Dataset split")
	flagSet.String("field", "", "Row field holding the text (e.g. src/tgt)")
	flagSet.IntP("num-examples", "n", 10000, "Number of examples to load (0 for all)")
	flagSet.IntP("vocab-size", "s", 5000, "Target vocabulary size")
	flagSet.StringP("corpus-file", "f", "", "Train from a local corpus file instead of streaming")
	flagSet.String("model-dir", "", "Directory for the trained vocabulary")
	flagSet.String("data-dir", "", "Directory for the assembled corpus text")
	flagSet.String("corpus-out", "", "Filename for the assembled corpus text")
	flagSet.String("tokenizer", "", "Tokenizer backend to train")
	flagSet.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	flagSet.String("log-file", "", "Log file path")
	helpFlag := flagSet.BoolP("help", "h", false, "Show help message")

	if err := flagSet.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *helpFlag {
		fmt.Fprintf(os.Stderr, "Usage: shabd-train [options]\n\nOptions:\n")
		flagSet.PrintDefaults()
		os.Exit(0)
	}

	bindings := map[string]string{
		"dataset":      "dataset",
		"subset":       "subset",
		"split":        "split",
		"field":        "field",
		"num_examples": "num-examples",
		"vocab_size":   "vocab-size",
		"corpus_file":  "corpus-file",
		"model_dir":    "model-dir",
		"data_dir":     "data-dir",
		"corpus_out":   "corpus-out",
		"tokenizer":    "tokenizer",
		"log_level":    "log-level",
		"log_file":     "log-file",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flagSet.Lookup(flag)); err != nil {
			return nil, err
		}
	}

	if err := readConfigFile(v, *configFile); err != nil {
		return nil, err
	}

	var cfg TrainConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.VocabSize <= 0 {
		return nil, fmt.Errorf("vocab size must be positive, got %d", cfg.VocabSize)
	}
	return &cfg, nil
}

// AppConfig drives the shabd binary (CLI encode/decode and the
// visualization server).
type AppConfig struct {
	VocabPath string `mapstructure:"vocab_path"`
	Text      string `mapstructure:"text"`
	DecodeIDs string `mapstructure:"decode"`
	Serve     bool   `mapstructure:"serve"`
	Listen    string `mapstructure:"listen"`
	Tokenizer string `mapstructure:"tokenizer"`
	LogLevel  string `mapstructure:"log_level"`
	LogFile   string `mapstructure:"log_file"`
}

// LoadApp parses flags, config file and SHABD_* environment variables
// for the tokenizer CLI. args is normally os.Args[1:].
func LoadApp(args []string) (*AppConfig, error) {
	v := viper.New()
	v.SetDefault("vocab_path", filepath.Join("model", "vocab.json"))
	v.SetDefault("listen", ":8080")
	v.SetDefault("tokenizer", "bpe")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")

	flagSet := pflag.NewFlagSet("shabd", pflag.ContinueOnError)
	configFile := flagSet.StringP("config", "c", "", "Path to config file")
	flagSet.StringP("text", "t", "", "Text to encode (use '-' to read from stdin)")
	flagSet.StringP("decode", "d", "", "Comma-separated token ids to decode")
	flagSet.StringP("vocab", "m", "", "Path to the trained vocabulary file")
	flagSet.Bool("serve", false, "Run the token inspection server")
	flagSet.String("listen", "", "Listen address for the server")
	flagSet.String("tokenizer", "", "Tokenizer backend to use")
	flagSet.StringP("log-level", "l", "", "Log level (debug, info, warn, error)")
	flagSet.String("log-file", "", "Log file path")
	helpFlag := flagSet.BoolP("help", "h", false, "Show help message")

	if err := flagSet.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %w", err)
	}

	if *helpFlag {
		fmt.Fprintf(os.Stderr, "Usage: shabd [options] [text]\n\nOptions:\n")
		flagSet.PrintDefaults()
		os.Exit(0)
	}

	bindings := map[string]string{
		"text":       "text",
		"decode":     "decode",
		"vocab_path": "vocab",
		"serve":      "serve",
		"listen":     "listen",
		"tokenizer":  "tokenizer",
		"log_level":  "log-level",
		"log_file":   "log-file",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flagSet.Lookup(flag)); err != nil {
			return nil, err
		}
	}

	if err := readConfigFile(v, *configFile); err != nil {
		return nil, err
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Text == "-" {
		content, err := io.ReadAll(os.Stdin)
		if err != nil {
			return nil, fmt.Errorf("failed to read from stdin: %w", err)
		}
		cfg.Text = strings.TrimSpace(string(content))
	} else if cfg.Text == "" {
		if rest := flagSet.Args(); len(rest) > 0 {
			cfg.Text = strings.Join(rest, " ")
		}
	}

	if cfg.Text == "" && cfg.DecodeIDs == "" && !cfg.Serve {
		return nil, fmt.Errorf("nothing to do (use -t, -d or --serve)")
	}
	return &cfg, nil
}

func readConfigFile(v *viper.Viper, configFile string) error {
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("shabd.cfg")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "shabd"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("SHABD")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return nil
}
