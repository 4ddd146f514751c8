package database

import (
	"database/sql"
	"fmt"
)

// SaveItemsBatch сохраняет предметы цикла одной транзакцией
func SaveItemsBatch(db *sql.DB, cycleID int, items []ItemRecord) error {
	if len(items) == 0 {
		return nil // Нет данных для сохранения
	}

	// Создаем таблицу, если она не существует
	createTableSQL := `CREATE TABLE IF NOT EXISTS scan_items (
		id INT AUTO_INCREMENT PRIMARY KEY,
		scan_cycle_id INT,
		item_name VARCHAR(255) NOT NULL,
		row_pos INT,
		col_pos INT,
		score DOUBLE,
		price_rub BIGINT,
		trader VARCHAR(64),
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (scan_cycle_id) REFERENCES scan_cycles(id) ON DELETE CASCADE
	)`

	_, err := db.Exec(createTableSQL)
	if err != nil {
		return fmt.Errorf("ошибка создания таблицы scan_items: %v", err)
	}

	// Начинаем транзакцию для batch обработки
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции: %v", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	insertSQL := `INSERT INTO scan_items (scan_cycle_id, item_name, row_pos, col_pos, score, price_rub, trader) VALUES (?, ?, ?, ?, ?, ?, ?)`
	stmt, err := tx.Prepare(insertSQL)
	if err != nil {
		return fmt.Errorf("ошибка подготовки запроса: %v", err)
	}
	defer stmt.Close()

	for _, item := range items {
		_, err = stmt.Exec(cycleID, item.Name, item.Row, item.Col, item.Score, item.PriceRUB, item.Trader)
		if err != nil {
			return fmt.Errorf("ошибка вставки предмета: %v", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return fmt.Errorf("ошибка подтверждения транзакции: %v", err)
	}
	return nil
}
