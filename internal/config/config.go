package config

import (
	"fmt"
	"log"
	"time"

	"github.com/spf13/viper"
)

// Структура для прямоугольника экрана
type Rect struct {
	X      int `mapstructure:"x"`
	Y      int `mapstructure:"y"`
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Структура для захвата экрана
type Capture struct {
	Display int  `mapstructure:"display"`
	Region  Rect `mapstructure:"region"` // нулевая ширина/высота = искать окно игры
}

// Пороговые значения детектора. Подобраны под темную тему инвентаря,
// это эмпирика, а не гарантия.
type Detector struct {
	DarkThreshold    int     `mapstructure:"dark_threshold"`
	MinRegionWidth   int     `mapstructure:"min_region_width"`
	MinRegionHeight  int     `mapstructure:"min_region_height"`
	AspectMin        float64 `mapstructure:"aspect_min"`
	AspectMax        float64 `mapstructure:"aspect_max"`
	SlotSize         int     `mapstructure:"slot_size"`
	EmptyMeanLow     float64 `mapstructure:"empty_mean_low"`
	EmptyMeanHigh    float64 `mapstructure:"empty_mean_high"`
	EmptyVarianceMax float64 `mapstructure:"empty_variance_max"`
}

// Структура для распознавания предметов
type Recognizer struct {
	ItemsDir            string  `mapstructure:"items_dir"`
	ConfidenceThreshold float64 `mapstructure:"confidence_threshold"`
}

// Структура для кеша цен
type Price struct {
	CacheFile  string  `mapstructure:"cache_file"`
	CacheHours float64 `mapstructure:"cache_hours"`
}

// Структура для API каталога
type API struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxAttempts    int    `mapstructure:"max_attempts"`
	RateLimitMs    int    `mapstructure:"rate_limit_ms"`
}

// Структура для цикла сканирования
type Scanner struct {
	ScanInterval       float64 `mapstructure:"scan_interval"`        // секунды между циклами
	ReportPollInterval float64 `mapstructure:"report_poll_interval"` // секунды между опросами канала
	ReportBuffer       int     `mapstructure:"report_buffer"`
	ShutdownTimeout    float64 `mapstructure:"shutdown_timeout"` // секунды ожидания фонового цикла
	SaveDebugFrames    int     `mapstructure:"save_debug_frames"`
	DebugFrameDir      string  `mapstructure:"debug_frame_dir"`
}

// Структура для базы данных
type Database struct {
	Enabled int    `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
}

// Структура для статусной панели на Arduino
type Arduino struct {
	Enabled  int    `mapstructure:"enabled"`
	Port     string `mapstructure:"port"`
	BaudRate int    `mapstructure:"baud_rate"`
}

// Структура для офлайн сборщика библиотеки иконок
type Builder struct {
	MinValue  int `mapstructure:"min_value"`
	ItemLimit int `mapstructure:"item_limit"` // 0 = без ограничения
}

// Основная структура конфигурации
type Config struct {
	LogFilePath string     `mapstructure:"log_file_path"`
	Capture     Capture    `mapstructure:"capture"`
	Detector    Detector   `mapstructure:"detector"`
	Recognizer  Recognizer `mapstructure:"recognizer"`
	Price       Price      `mapstructure:"price"`
	API         API        `mapstructure:"api"`
	Scanner     Scanner    `mapstructure:"scanner"`
	Database    Database   `mapstructure:"database"`
	Arduino     Arduino    `mapstructure:"arduino"`
	Builder     Builder    `mapstructure:"builder"`
}

// ScanIntervalDuration возвращает паузу между циклами
func (c *Config) ScanIntervalDuration() time.Duration {
	return time.Duration(c.Scanner.ScanInterval * float64(time.Second))
}

// ReportPollDuration возвращает период опроса канала отчетов
func (c *Config) ReportPollDuration() time.Duration {
	return time.Duration(c.Scanner.ReportPollInterval * float64(time.Second))
}

// ShutdownTimeoutDuration возвращает предел ожидания фонового цикла при выходе
func (c *Config) ShutdownTimeoutDuration() time.Duration {
	return time.Duration(c.Scanner.ShutdownTimeout * float64(time.Second))
}

// CacheDuration возвращает срок жизни записи в кеше цен
func (p Price) CacheDuration() time.Duration {
	return time.Duration(p.CacheHours * float64(time.Hour))
}

func setDefaults() {
	viper.SetDefault("log_file_path", "shmon.log")

	viper.SetDefault("capture.display", 0)

	viper.SetDefault("detector.dark_threshold", 50)
	viper.SetDefault("detector.min_region_width", 400)
	viper.SetDefault("detector.min_region_height", 400)
	viper.SetDefault("detector.aspect_min", 0.8)
	viper.SetDefault("detector.aspect_max", 1.5)
	viper.SetDefault("detector.slot_size", 63)
	viper.SetDefault("detector.empty_mean_low", 40)
	viper.SetDefault("detector.empty_mean_high", 80)
	viper.SetDefault("detector.empty_variance_max", 100)

	viper.SetDefault("recognizer.items_dir", "data/items")
	viper.SetDefault("recognizer.confidence_threshold", 0.8)

	viper.SetDefault("price.cache_file", "data/price_cache.json")
	viper.SetDefault("price.cache_hours", 6)

	viper.SetDefault("api.url", "https://api.tarkov.dev/graphql")
	viper.SetDefault("api.timeout_seconds", 10)
	viper.SetDefault("api.max_attempts", 3)
	viper.SetDefault("api.rate_limit_ms", 100)

	viper.SetDefault("scanner.scan_interval", 1.0)
	viper.SetDefault("scanner.report_poll_interval", 0.1)
	viper.SetDefault("scanner.report_buffer", 32)
	viper.SetDefault("scanner.shutdown_timeout", 2.0)
	viper.SetDefault("scanner.save_debug_frames", 0)
	viper.SetDefault("scanner.debug_frame_dir", "debug_frames")

	viper.SetDefault("database.enabled", 0)
	viper.SetDefault("database.dsn", "root:root@tcp(127.0.0.1:3306)/shmon?parseTime=true")

	viper.SetDefault("arduino.enabled", 0)
	viper.SetDefault("arduino.port", "COM3")
	viper.SetDefault("arduino.baud_rate", 9600)

	viper.SetDefault("builder.min_value", 50000)
	viper.SetDefault("builder.item_limit", 0)
}

var InitConfig = func() (error, Config) {
	// Инициализация viper для чтения конфигурации из .yaml файла
	viper.SetConfigName("config") // Имя конфигурационного файла без расширения
	viper.AddConfigPath(".")      // Путь к файлу конфигурации
	viper.SetConfigType("yaml")   // Формат файла

	setDefaults()

	// Чтение конфигурации. Отсутствие файла не ошибка, работаем на дефолтах.
	if err := viper.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			log.Fatalf("Error reading config file, %s", err)
		}
		fmt.Println("Config file not found, using defaults")
	}

	// Создание структуры и заполнение её данными из конфигурации
	var config Config
	err := viper.Unmarshal(&config)
	if err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
		return err, config
	}

	return nil, config
}
