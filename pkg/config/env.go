package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Credentials API 凭证（只从 .env / 环境变量读取，从不写入配置文件）
type Credentials struct {
	APIKey         string
	APISecret      string
	TelegramToken  string
	TelegramChatID string
}

// TelegramEnabled token 和 chat id 都配置了才启用
func (c Credentials) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != ""
}

// LoadCredentials 加载 .env（文件不存在时只读环境变量）。已存在的环境变量优先。
func LoadCredentials(envFile string) (Credentials, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return Credentials{}, fmt.Errorf("加载 %s 失败: %w", envFile, err)
		}
	}
	return Credentials{
		APIKey:         firstEnv("api_key", "BYBIT_API_KEY"),
		APISecret:      firstEnv("api_secret", "BYBIT_API_SECRET"),
		TelegramToken:  firstEnv("tg_api_key", "TELEGRAM_TOKEN"),
		TelegramChatID: firstEnv("tg_chat_id", "TELEGRAM_CHAT_ID"),
	}, nil
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// getEnv 获取环境变量，如果不存在则返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseBoolEnv 解析布尔环境变量
func parseBoolEnv(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}
