package tarkovdev

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"shmon/internal/config"
	"shmon/internal/logger"
)

// Vendor — продавец из каталога
type Vendor struct {
	Name           string `json:"name"`
	NormalizedName string `json:"normalizedName"`
}

// SellOffer — одно предложение о продаже предмета
type SellOffer struct {
	Source   string `json:"source"`
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
	PriceRUB int64  `json:"priceRUB"`
	Vendor   Vendor `json:"vendor"`
}

// Item — предмет каталога tarkov.dev
type Item struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	ShortName      string      `json:"shortName"`
	NormalizedName string      `json:"normalizedName"`
	IconLink       string      `json:"iconLink"`
	GridImageLink  string      `json:"gridImageLink"`
	BasePrice      int64       `json:"basePrice"`
	Width          int         `json:"width"`
	Height         int         `json:"height"`
	Avg24hPrice    int64       `json:"avg24hPrice"`
	Low24hPrice    int64       `json:"low24hPrice"`
	High24hPrice   int64       `json:"high24hPrice"`
	LastLowPrice   int64       `json:"lastLowPrice"`
	SellFor        []SellOffer `json:"sellFor"`
}

// BestOffer — лучшее предложение торговца (без барахолки)
type BestOffer struct {
	PriceRUB int64
	Trader   string
	Currency string
}

const allItemsQuery = `
{
    items {
        id
        name
        shortName
        normalizedName
        iconLink
        gridImageLink
        basePrice
        width
        height
        avg24hPrice
        low24hPrice
        high24hPrice
        lastLowPrice
        sellFor {
            source
            price
            currency
            priceRUB
            vendor {
                name
                normalizedName
            }
        }
    }
}
`

const itemByNameQuery = `
query ($name: String!) {
    items(name: $name) {
        id
        name
        normalizedName
        sellFor {
            source
            price
            currency
            priceRUB
            vendor {
                name
                normalizedName
            }
        }
    }
}
`

// Client ходит в GraphQL каталог tarkov.dev. Не потокобезопасен:
// им пользуется либо фоновый цикл сканирования, либо офлайн сборщик,
// но не оба сразу.
type Client struct {
	url         string
	httpClient  *http.Client
	maxAttempts int
	minInterval time.Duration
	lastRequest time.Time
	logger      *logger.LoggerManager
}

// NewClient создает клиента каталога с ограничением частоты запросов
func NewClient(cfg config.API, loggerManager *logger.LoggerManager) *Client {
	return &Client{
		url: cfg.URL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		maxAttempts: cfg.MaxAttempts,
		minInterval: time.Duration(cfg.RateLimitMs) * time.Millisecond,
		logger:      loggerManager,
	}
}

// rateLimit выдерживает паузу между запросами, API щедрый, но наглеть не надо
func (c *Client) rateLimit() {
	since := time.Since(c.lastRequest)
	if since < c.minInterval {
		time.Sleep(c.minInterval - since)
	}
	c.lastRequest = time.Now()
}

// ExecuteQuery выполняет GraphQL запрос с ограниченным числом попыток.
// Транспортные ошибки и плохие статусы повторяются, ошибки GraphQL
// возвращаются сразу: повторять некорректный запрос нет смысла.
func (c *Client) ExecuteQuery(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	c.rateLimit()

	payload := map[string]interface{}{"query": query}
	if variables != nil {
		payload["variables"] = variables
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("ошибка сериализации запроса: %v", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		data, err := c.post(ctx, body)
		if err != nil {
			lastErr = err
			if c.logger != nil {
				c.logger.Warn("⚠️ Попытка %d/%d запроса к каталогу не удалась: %v", attempt, c.maxAttempts, err)
			}
			continue
		}

		var envelope struct {
			Data   json.RawMessage `json:"data"`
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			lastErr = fmt.Errorf("ошибка разбора ответа: %v", err)
			continue
		}
		if len(envelope.Errors) > 0 {
			return fmt.Errorf("GraphQL errors: %s", envelope.Errors[0].Message)
		}
		if out != nil {
			if err := json.Unmarshal(envelope.Data, out); err != nil {
				return fmt.Errorf("ошибка разбора данных: %v", err)
			}
		}
		return nil
	}
	return fmt.Errorf("каталог недоступен после %d попыток: %v", c.maxAttempts, lastErr)
}

func (c *Client) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// FetchAllItems забирает весь каталог предметов с ценами и ссылками на иконки
func (c *Client) FetchAllItems(ctx context.Context) ([]Item, error) {
	if c.logger != nil {
		c.logger.Info("🔄 Загружаем каталог предметов с tarkov.dev...")
	}

	var result struct {
		Items []Item `json:"items"`
	}
	if err := c.ExecuteQuery(ctx, allItemsQuery, nil, &result); err != nil {
		return nil, err
	}

	if c.logger != nil {
		c.logger.Info("✅ Получено %d предметов из каталога", len(result.Items))
	}
	return result.Items, nil
}

// GetBestPrice запрашивает предмет по имени и возвращает лучшее предложение торговца
func (c *Client) GetBestPrice(ctx context.Context, name string) (BestOffer, bool, error) {
	var result struct {
		Items []Item `json:"items"`
	}
	err := c.ExecuteQuery(ctx, itemByNameQuery, map[string]interface{}{"name": name}, &result)
	if err != nil {
		return BestOffer{}, false, err
	}

	// Поиск по имени нестрогий, сперва пробуем точное совпадение
	for _, item := range result.Items {
		if item.Name == name {
			offer, ok := BestTraderOffer(item)
			return offer, ok, nil
		}
	}
	if len(result.Items) > 0 {
		offer, ok := BestTraderOffer(result.Items[0])
		return offer, ok, nil
	}
	return BestOffer{}, false, nil
}

// BestTraderOffer выбирает среди предложений максимальную цену в рублях,
// предложения барахолки не учитываются: нас интересуют торговцы
func BestTraderOffer(item Item) (BestOffer, bool) {
	var best BestOffer
	found := false
	for _, offer := range item.SellFor {
		if offer.Source == "fleaMarket" {
			continue
		}
		if offer.PriceRUB > best.PriceRUB {
			best = BestOffer{
				PriceRUB: offer.PriceRUB,
				Trader:   offer.Vendor.Name,
				Currency: offer.Currency,
			}
			found = true
		}
	}
	return best, found
}

// DownloadIcon скачивает иконку предмета по ссылке из каталога
func (c *Client) DownloadIcon(ctx context.Context, url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("пустая ссылка на иконку")
	}
	c.rateLimit()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки иконки: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
