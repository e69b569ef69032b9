package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults for the audio pipelines. The outbound rate is fixed by the
// remote service's PCM_16000 input format; the inbound rate has varied
// across provider versions, so it stays configurable.
const (
	DefaultDeviceSampleRate = 48000
	DefaultInputSampleRate  = 16000
	DefaultOutputSampleRate = 16000
	DefaultBlockSize        = 1024
	DefaultChunkInterval    = 50 * time.Millisecond
	DefaultFadeSamples      = 32
	DefaultPlayTimeout      = 10 * time.Second
	DefaultKeepaliveWindow  = 60 * time.Second
	DefaultPingInterval     = 30 * time.Second
)

// Client holds configuration for the chat client binary and the audio
// engines. Passed explicitly into constructors; there is no process-wide
// mutable audio configuration.
type Client struct {
	BrokerURL        string
	AgentID          string
	DeviceSampleRate int
	InputSampleRate  int
	OutputSampleRate int
	BlockSize        int
	ChunkInterval    time.Duration
	FadeSamples      int
	PlayTimeout      time.Duration
	KeepaliveWindow  time.Duration
	PingInterval     time.Duration
}

// Broker holds configuration for the reverse-proxy backend that keeps the
// provider API key out of the client.
type Broker struct {
	Port       string
	APIKey     string
	APIBaseURL string
	JWTSecret  string // empty disables bearer-token auth on /api
}

// ClientFromEnv builds a Client config from environment variables, falling
// back to defaults. Call godotenv.Load beforehand if a .env file should be
// honored.
func ClientFromEnv() Client {
	c := Client{
		BrokerURL:        getEnv("WICARA_BROKER_URL", "http://localhost:3001"),
		AgentID:          os.Getenv("WICARA_AGENT_ID"),
		DeviceSampleRate: getEnvInt("WICARA_DEVICE_SAMPLE_RATE", DefaultDeviceSampleRate),
		InputSampleRate:  DefaultInputSampleRate,
		OutputSampleRate: getEnvInt("WICARA_OUTPUT_SAMPLE_RATE", DefaultOutputSampleRate),
		BlockSize:        getEnvInt("WICARA_BLOCK_SIZE", DefaultBlockSize),
		ChunkInterval:    DefaultChunkInterval,
		FadeSamples:      DefaultFadeSamples,
		PlayTimeout:      DefaultPlayTimeout,
		KeepaliveWindow:  DefaultKeepaliveWindow,
		PingInterval:     DefaultPingInterval,
	}
	return c
}

// BrokerFromEnv builds a Broker config from environment variables.
func BrokerFromEnv() Broker {
	return Broker{
		Port:       getEnv("PORT", "3001"),
		APIKey:     os.Getenv("ELEVEN_LABS_API_KEY"),
		APIBaseURL: getEnv("ELEVEN_LABS_API_BASE_URL", "https://api.elevenlabs.io/v1"),
		JWTSecret:  os.Getenv("WICARA_JWT_SECRET"),
	}
}

// Validate checks the client configuration for values the pipelines cannot
// work with.
func (c *Client) Validate() error {
	if c.BrokerURL == "" {
		return fmt.Errorf("broker URL cannot be empty")
	}
	if c.DeviceSampleRate < 8000 || c.DeviceSampleRate > 48000 {
		return fmt.Errorf("device sample rate must be between 8000 and 48000 Hz, got %d", c.DeviceSampleRate)
	}
	if c.InputSampleRate < 8000 || c.InputSampleRate > 48000 {
		return fmt.Errorf("input sample rate must be between 8000 and 48000 Hz, got %d", c.InputSampleRate)
	}
	if c.OutputSampleRate < 8000 || c.OutputSampleRate > 48000 {
		return fmt.Errorf("output sample rate must be between 8000 and 48000 Hz, got %d", c.OutputSampleRate)
	}
	if c.BlockSize < 128 || c.BlockSize > 16384 {
		return fmt.Errorf("block size must be between 128 and 16384 samples, got %d", c.BlockSize)
	}
	if c.BlockSize&(c.BlockSize-1) != 0 {
		return fmt.Errorf("block size must be a power of two, got %d", c.BlockSize)
	}
	if c.ChunkInterval <= 0 {
		return fmt.Errorf("chunk interval must be positive, got %v", c.ChunkInterval)
	}
	if c.FadeSamples < 0 {
		return fmt.Errorf("fade samples cannot be negative, got %d", c.FadeSamples)
	}
	if c.PlayTimeout < time.Second {
		return fmt.Errorf("play timeout must be at least 1s, got %v", c.PlayTimeout)
	}
	if c.KeepaliveWindow < 10*time.Second {
		return fmt.Errorf("keepalive window must be at least 10s, got %v", c.KeepaliveWindow)
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.KeepaliveWindow {
		return fmt.Errorf("ping interval must be positive and below the keepalive window, got %v", c.PingInterval)
	}
	return nil
}

// Validate checks the broker configuration.
func (b *Broker) Validate() error {
	if b.Port == "" {
		return fmt.Errorf("port cannot be empty")
	}
	if b.APIKey == "" {
		return fmt.Errorf("ELEVEN_LABS_API_KEY environment variable is required")
	}
	if b.APIBaseURL == "" {
		return fmt.Errorf("API base URL cannot be empty")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
