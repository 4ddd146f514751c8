package arduino

import (
	"fmt"

	"shmon/internal/config"
	"shmon/internal/logger"

	"github.com/tarm/serial"
)

var sendScanStateToArduino = func(active bool, port *serial.Port) error {
	return SendScanStateToArduino(port, active)
}

var sendCycleSummaryToArduino = func(count int, totalValue int64, port *serial.Port) error {
	return SendCycleSummaryToArduino(port, count, totalValue)
}

var waitForArduinoResponse = func(expectedResponse string, port *serial.Port) (string, error) {
	return WaitForArduinoResponse(port, expectedResponse)
}

// StatusPanel — физический индикатор состояния сканера на Arduino.
// Нулевой указатель допустим: все методы тогда молча ничего не делают,
// панель это дополнение, а не зависимость.
type StatusPanel struct {
	port   *serial.Port
	logger *logger.LoggerManager
}

// NewStatusPanel открывает порт панели. Возвращает nil без ошибки,
// если панель выключена в конфигурации.
func NewStatusPanel(cfg config.Arduino, loggerManager *logger.LoggerManager) (*StatusPanel, error) {
	if cfg.Enabled != 1 {
		return nil, nil
	}
	port, err := InitializePort(cfg.Port, cfg.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия порта %s: %v", cfg.Port, err)
	}
	loggerManager.Info("✅ Статусная панель подключена на %s", cfg.Port)
	return &StatusPanel{port: port, logger: loggerManager}, nil
}

// NotifyScanState сообщает панели, идет ли сканирование.
// Отказ панели не фатален, только пишется в лог.
func (s *StatusPanel) NotifyScanState(active bool) {
	if s == nil {
		return
	}
	err := ProcessAndWait(func(p *serial.Port) error {
		return sendScanStateToArduino(active, p)
	}, waitForArduinoResponse, s.port)
	if err != nil {
		s.logger.Warn("⚠️ Панель не подтвердила состояние сканирования: %v", err)
	}
}

// NotifyCycleSummary сообщает панели итог цикла: число предметов и сумму
func (s *StatusPanel) NotifyCycleSummary(count int, totalValue int64) {
	if s == nil {
		return
	}
	err := ProcessAndWait(func(p *serial.Port) error {
		return sendCycleSummaryToArduino(count, totalValue, p)
	}, waitForArduinoResponse, s.port)
	if err != nil {
		s.logger.Warn("⚠️ Панель не подтвердила итог цикла: %v", err)
	}
}

// Close закрывает порт панели
func (s *StatusPanel) Close() error {
	if s == nil || s.port == nil {
		return nil
	}
	return s.port.Close()
}
