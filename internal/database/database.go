package database

import (
	"database/sql"
	"fmt"
	"sync"

	"shmon/internal/logger"
)

// DatabaseManager пишет историю сканирования в базу данных
type DatabaseManager struct {
	db     *sql.DB
	logger *logger.LoggerManager
	wg     sync.WaitGroup // для ожидания завершения асинхронных операций
}

// NewDatabaseManager создает новый экземпляр DatabaseManager
func NewDatabaseManager(db *sql.DB, loggerManager *logger.LoggerManager) *DatabaseManager {
	return &DatabaseManager{
		db:     db,
		logger: loggerManager,
	}
}

// SaveCycle сохраняет итог цикла сканирования и возвращает ID записи.
// Предметы цикла дописываются асинхронно, чтобы не тормозить конвейер.
func (h *DatabaseManager) SaveCycle(record CycleRecord, items []ItemRecord) (int, error) {
	// Создаем таблицу, если она не существует
	createTableSQL := `
	CREATE TABLE IF NOT EXISTS scan_cycles (
		id INT AUTO_INCREMENT PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		inventory_found BOOLEAN DEFAULT FALSE,
		item_count INT DEFAULT 0,
		total_value BIGINT DEFAULT 0,
		error_text VARCHAR(512),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := h.db.Exec(createTableSQL)
	if err != nil {
		return 0, fmt.Errorf("ошибка создания таблицы: %v", err)
	}

	insertSQL := `INSERT INTO scan_cycles (started_at, inventory_found, item_count, total_value, error_text) VALUES (?, ?, ?, ?, ?)`
	result, err := h.db.Exec(insertSQL, record.StartedAt, record.InventoryFound, record.ItemCount, record.TotalValue, record.ErrorText)
	if err != nil {
		return 0, fmt.Errorf("ошибка вставки данных: %v", err)
	}

	cycleID, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка получения ID записи: %v", err)
	}

	// Сохраняем предметы цикла асинхронно
	if len(items) > 0 {
		h.wg.Add(1)
		go func(id int, batch []ItemRecord) {
			defer h.wg.Done()
			if err := SaveItemsBatch(h.db, id, batch); err != nil {
				h.logger.LogError(err, "Ошибка асинхронного сохранения предметов цикла")
			} else {
				h.logger.Debug("✅ Предметы цикла сохранены асинхронно (cycle ID: %d)", id)
			}
		}(int(cycleID), items)
	}

	return int(cycleID), nil
}

// SaveCycleAsync сохраняет итог цикла в фоне, ошибки только логируются.
// Конвейер сканирования никогда не ждет базу.
func (h *DatabaseManager) SaveCycleAsync(record CycleRecord, items []ItemRecord) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if _, err := h.SaveCycle(record, items); err != nil {
			h.logger.LogError(err, "Ошибка сохранения цикла сканирования")
		}
	}()
}

// WaitForAsyncOperations ожидает завершения всех асинхронных операций сохранения
func (h *DatabaseManager) WaitForAsyncOperations() {
	h.logger.Info("⏳ Ожидаем завершения асинхронных операций сохранения...")
	h.wg.Wait()
	h.logger.Info("✅ Все асинхронные операции сохранения завершены")
}
