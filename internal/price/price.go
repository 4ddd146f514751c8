package price

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"shmon/internal/config"
	"shmon/internal/logger"
	"shmon/internal/tarkovdev"
)

// PriceRecord — цена предмета у лучшего торговца
type PriceRecord struct {
	PriceRUB  int64     `json:"price_rub"`
	Currency  string    `json:"currency"`
	Trader    string    `json:"trader"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Catalog — источник живых цен. Реализуется клиентом tarkov.dev,
// в тестах подменяется заглушкой.
type Catalog interface {
	GetBestPrice(ctx context.Context, name string) (tarkovdev.BestOffer, bool, error)
}

// PriceTracker кэширует цены предметов, чтобы не дергать API на каждом цикле.
// Кэшем владеет только фоновый цикл сканирования, блокировки не нужны.
type PriceTracker struct {
	catalog   Catalog
	cache     map[string]PriceRecord
	fallback  map[string]PriceRecord
	cacheFile string
	cacheTTL  time.Duration
	logger    *logger.LoggerManager
}

// NewPriceTracker создает трекер цен с резервной таблицей для ходовых предметов
func NewPriceTracker(cfg config.Price, catalog Catalog, loggerManager *logger.LoggerManager) *PriceTracker {
	return &PriceTracker{
		catalog:   catalog,
		cache:     make(map[string]PriceRecord),
		cacheFile: cfg.CacheFile,
		cacheTTL:  cfg.CacheDuration(),
		logger:    loggerManager,
		// Резервные цены на случай недоступности API.
		// Добавляйте новые по мере необходимости.
		fallback: map[string]PriceRecord{
			"Graphics Card": {PriceRUB: 285000, Currency: "RUB", Trader: "Mechanic"},
			"Bitcoin":       {PriceRUB: 445000, Currency: "RUB", Trader: "Therapist"},
			"LEDX":          {PriceRUB: 890000, Currency: "RUB", Trader: "Therapist"},
			"Red Rebel":     {PriceRUB: 2800000, Currency: "RUB", Trader: "Jaeger"},
		},
	}
}

// GetPrice возвращает цену предмета: кэш, затем живой запрос, затем резерв.
// Просроченные записи кэша не возвращаются никогда. Отказ источника не
// фатален: в худшем случае предмет остается без цены.
func (p *PriceTracker) GetPrice(ctx context.Context, name string) (PriceRecord, bool) {
	if record, ok := p.cache[name]; ok {
		if time.Since(record.FetchedAt) < p.cacheTTL {
			return record, true
		}
	}

	if p.catalog != nil {
		offer, ok, err := p.catalog.GetBestPrice(ctx, name)
		if err != nil {
			if p.logger != nil {
				p.logger.Warn("⚠️ Не удалось получить цену для %s: %v", name, err)
			}
		} else if ok {
			record := PriceRecord{
				PriceRUB:  offer.PriceRUB,
				Currency:  offer.Currency,
				Trader:    offer.Trader,
				FetchedAt: time.Now(),
			}
			p.cache[name] = record
			if err := p.SaveCache(); err != nil && p.logger != nil {
				p.logger.Warn("⚠️ Не удалось сохранить кэш цен: %v", err)
			}
			return record, true
		}
	}

	if record, ok := p.fallback[name]; ok {
		return record, true
	}
	return PriceRecord{}, false
}

// LoadCache загружает кэш цен с диска. Отсутствие или порча файла не ошибка:
// начинаем с пустого кэша.
func (p *PriceTracker) LoadCache() {
	data, err := os.ReadFile(p.cacheFile)
	if err != nil {
		if os.IsNotExist(err) {
			if p.logger != nil {
				p.logger.Info("💾 Файл кэша цен не найден, начинаем с чистого листа")
			}
		} else if p.logger != nil {
			p.logger.Warn("⚠️ Ошибка чтения кэша цен: %v", err)
		}
		return
	}

	loaded := make(map[string]PriceRecord)
	if err := json.Unmarshal(data, &loaded); err != nil {
		if p.logger != nil {
			p.logger.Warn("⚠️ Кэш цен поврежден, игнорируем: %v", err)
		}
		return
	}

	p.cache = loaded
	if p.logger != nil {
		p.logger.Info("💾 Загружено %d кэшированных цен", len(p.cache))
	}
}

// SaveCache сохраняет кэш цен на диск в формате JSON
func (p *PriceTracker) SaveCache() error {
	if p.cacheFile == "" {
		return nil
	}
	if dir := filepath.Dir(p.cacheFile); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create cache dir: %v", err)
		}
	}
	data, err := json.MarshalIndent(p.cache, "", "  ")
	if err != nil {
		return fmt.Errorf("ошибка сериализации кэша: %v", err)
	}
	if err := os.WriteFile(p.cacheFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write cache file: %v", err)
	}
	return nil
}

// CachedCount возвращает количество записей в кэше
func (p *PriceTracker) CachedCount() int {
	return len(p.cache)
}
