// internal/utils/logger/config.go
package logger

type Config struct {
	LogFile     string `mapstructure:"file"`
	MaxSize     int    `mapstructure:"max_size"`    // мегабайты
	MaxAge      int    `mapstructure:"max_age"`     // дни
	MaxBackups  int    `mapstructure:"max_backups"` // количество файлов
	Compress    bool   `mapstructure:"compress"`
	Development bool   `mapstructure:"development"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		LogFile:    "swap-router.log",
		MaxSize:    100,
		MaxAge:     7,
		MaxBackups: 3,
		Compress:   true,
	}
}
