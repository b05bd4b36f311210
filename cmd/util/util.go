package util

import (
	"context"
	"fmt"
	"github.com/ValentinKolb/dSync/lib/common"
	"github.com/ValentinKolb/dSync/lib/docdb"
	"github.com/ValentinKolb/dSync/lib/docdb/engines/memory"
	"github.com/ValentinKolb/dSync/lib/docdb/engines/redis"
	"github.com/ValentinKolb/dSync/lib/serializer"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
	"io"
	"strings"
	"time"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		wordWidth := len(word)

		// Check if we need to wrap
		if lineWidth > 0 && lineWidth+1+wordWidth > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}

		// Add space before word (if not first word on line)
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}

		currentLine.WriteString(word)
		lineWidth += wordWidth
	}

	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}

	return strings.Join(wrappedLines, "\n")
}

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// SetupClientFlags adds the flags selecting and configuring the document store to a command
func SetupClientFlags(cmd *cobra.Command) {
	key := "engine"
	cmd.PersistentFlags().String(key, "redis", WrapString("The document store engine to use (redis, memory). The memory engine lives only as long as the process"))

	key = "redis-addr"
	cmd.PersistentFlags().String(key, "localhost:6379", WrapString("The address of the redis server"))

	key = "redis-db"
	cmd.PersistentFlags().Int(key, 0, WrapString("The redis database to use"))

	key = "redis-password"
	cmd.PersistentFlags().String(key, "", WrapString("The password of the redis server"))

	key = "redis-prefix"
	cmd.PersistentFlags().String(key, redis.DefaultPrefix, WrapString("The prefix of every redis key and channel used by dSync"))

	key = "serializer"
	cmd.PersistentFlags().String(key, "json", WrapString("The serializer documents are stored with (json, gob)"))

	key = "timeout"
	cmd.PersistentFlags().Int(key, 10, WrapString("The timeout in seconds of a single operation (0 disables the timeout)"))

	key = "log-level"
	cmd.PersistentFlags().String(key, "error", WrapString("LogLevel is the level at which logs will be output (silent, debug, info, warn, error)"))
}

// InitClientConfig initializes configuration from environment variables
func InitClientConfig() {
	// load env files
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	// initialize viper
	viper.SetEnvPrefix("dsync")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetClientConfig reads and validates the client configuration from viper
func GetClientConfig() (*common.ClientConfig, error) {
	engine, err := common.ParseEngineType(viper.GetString("engine"))
	if err != nil {
		return nil, err
	}
	if _, err := common.ParseLogLevel(viper.GetString("log-level")); err != nil {
		return nil, err
	}

	return &common.ClientConfig{
		Engine: engine,
		Redis: common.RedisConfig{
			Addr:     viper.GetString("redis-addr"),
			DB:       viper.GetInt("redis-db"),
			Password: viper.GetString("redis-password"),
			Prefix:   viper.GetString("redis-prefix"),
		},
		Serializer:    viper.GetString("serializer"),
		TimeoutSecond: viper.GetInt("timeout"),
		LogLevel:      viper.GetString("log-level"),
	}, nil
}

// GetLogLevel returns the parsed log level of a validated configuration
func GetLogLevel(conf *common.ClientConfig) logger.LogLevel {
	level, _ := common.ParseLogLevel(conf.LogLevel)
	return level
}

// OpenDatabase creates the document store selected by the configuration
func OpenDatabase(conf *common.ClientConfig) (docdb.IDatabase, error) {
	switch conf.Engine {
	case common.EngineMemory:
		return memory.NewMemoryDB(nil), nil
	case common.EngineRedis:
		s, err := serializer.New(conf.Serializer)
		if err != nil {
			return nil, err
		}
		return redis.NewRedisDB(redis.Options{
			Addr:       conf.Redis.Addr,
			DB:         conf.Redis.DB,
			Password:   conf.Redis.Password,
			Prefix:     conf.Redis.Prefix,
			Serializer: s,
		}), nil
	default:
		return nil, fmt.Errorf("invalid engine %s", conf.Engine)
	}
}

// Context returns the context of a single operation, bounded by the configured timeout
func Context(conf *common.ClientConfig) (context.Context, context.CancelFunc) {
	if conf.TimeoutSecond <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), time.Duration(conf.TimeoutSecond)*time.Second)
}

// --------------------------------------------------------------------------
// Input & Output
// --------------------------------------------------------------------------

// ParsePayload parses a JSON object given on the command line
func ParsePayload(text string) (map[string]any, error) {
	var p map[string]any
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return nil, fmt.Errorf("payload must be a JSON object: %w", err)
	}
	if p == nil {
		return nil, fmt.Errorf("payload must be a JSON object, got null")
	}
	return p, nil
}

// WriteOutput writes v to out in the given format (json, yaml)
func WriteOutput(out io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json", "":
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, string(b))
		return err
	case "yaml":
		enc := yaml.NewEncoder(out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("invalid output format %s (expected one of: json, yaml)", format)
	}
}
