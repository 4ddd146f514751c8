package scanner

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"shmon/internal/arduino"
	"shmon/internal/capture"
	"shmon/internal/config"
	"shmon/internal/database"
	"shmon/internal/detector"
	"shmon/internal/imageutils"
	"shmon/internal/logger"
	"shmon/internal/price"
	"shmon/internal/recognizer"
)

// State — состояние координатора сканирования
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// ReportItem — распознанный предмет в отчете цикла
type ReportItem struct {
	Name     string
	Row      int
	Col      int
	Score    float64
	PriceRUB int64
	Trader   string
	Priced   bool
}

// Report — итог одного цикла сканирования. Ровно один отчет на цикл
// уходит в канал отчетов, даже если инвентарь не найден или цикл упал.
type Report struct {
	Timestamp      time.Time
	InventoryFound bool
	Items          []ReportItem
	TotalValue     int64 // сумма только по предметам с известной ценой
	Err            error
}

// captureBackend — захват экрана глазами координатора.
// Боевая реализация это CaptureContext, в тестах подменяется заглушкой.
type captureBackend interface {
	Capture(region config.Rect) (*capture.Frame, error)
	Close()
}

// Бэкенд захвата вынесен в переменную для подмены в тестах.
// Контекст захвата создается внутри фоновой горутины и принадлежит
// только ей, делить его между горутинами нельзя.
var newCaptureBackend = func(cfg *config.Config) (captureBackend, config.Rect) {
	ctx := capture.NewContext(cfg.Capture.Display)
	region := capture.ResolveRegion(ctx, cfg)
	return ctx, region
}

// ScanManager — координатор сканирования: владеет фоновым циклом,
// каналом отчетов и флагами остановки. Флаги рекомендательные,
// цикл проверяет их на границах, ничего не прерывается на середине.
type ScanManager struct {
	cfg         *config.Config
	library     *recognizer.Library
	prices      *price.PriceTracker
	dbManager   *database.DatabaseManager // nil = история отключена
	statusPanel *arduino.StatusPanel      // nil = панели нет
	logger      *logger.LoggerManager

	state     atomic.Int32
	stopScan  atomic.Bool
	terminate atomic.Bool
	reports   chan Report
	done      chan struct{} // закрывается фоновым циклом при выходе
}

// NewScanManager создает координатор сканирования
func NewScanManager(cfg *config.Config, library *recognizer.Library, prices *price.PriceTracker,
	dbManager *database.DatabaseManager, statusPanel *arduino.StatusPanel,
	loggerManager *logger.LoggerManager) *ScanManager {

	return &ScanManager{
		cfg:         cfg,
		library:     library,
		prices:      prices,
		dbManager:   dbManager,
		statusPanel: statusPanel,
		logger:      loggerManager,
		reports:     make(chan Report, cfg.Scanner.ReportBuffer),
	}
}

// State возвращает текущее состояние координатора
func (sm *ScanManager) State() State {
	return State(sm.state.Load())
}

// Reports возвращает канал отчетов. Производитель один (фоновый цикл),
// потребитель один (передний план), отчет читается ровно один раз.
func (sm *ScanManager) Reports() <-chan Report {
	return sm.reports
}

// StartScanning запускает фоновый цикл сканирования.
// Возвращает false, если цикл уже работает.
func (sm *ScanManager) StartScanning() bool {
	if !sm.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return false
	}
	sm.stopScan.Store(false)
	sm.done = make(chan struct{})
	sm.logger.Info("🚀 Сканирование запущено")
	go sm.scanLoop(sm.done)
	return true
}

// StopScanning просит фоновый цикл завершиться после текущего цикла.
// Флаг рекомендательный: цикл в полете доводится до конца или бросается
// целиком, но не прерывается посередине захвата.
func (sm *ScanManager) StopScanning() {
	if sm.State() != StateRunning {
		return
	}
	sm.stopScan.Store(true)
	sm.logger.Info("⏹️ Запрошена остановка сканирования...")
}

// Terminate останавливает координатор насовсем и ждет фоновый цикл
// ограниченное время. Зависший цикл не держит выход: по таймауту
// продолжаем, его результат игнорируется.
func (sm *ScanManager) Terminate() {
	sm.terminate.Store(true)
	sm.stopScan.Store(true)

	if !sm.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}

	select {
	case <-sm.done:
		sm.logger.Info("✅ Фоновый цикл завершился штатно")
	case <-time.After(sm.cfg.ShutdownTimeoutDuration()):
		sm.logger.Warn("⚠️ Фоновый цикл не завершился за отведенное время, выходим без него")
	}
	sm.state.Store(int32(StateIdle))
}

// publish кладет отчет в канал без блокировки. Если передний план
// не успевает читать, отчет отбрасывается: следующий цикл принесет новый.
func (sm *ScanManager) publish(report Report) {
	select {
	case sm.reports <- report:
	default:
		sm.logger.Warn("⚠️ Буфер отчетов переполнен, отчет цикла отброшен")
	}
}

// sleepInterval выдерживает паузу между циклами, поглядывая на флаги.
// Возвращает false, если за время паузы запросили остановку.
func (sm *ScanManager) sleepInterval() bool {
	deadline := time.Now().Add(sm.cfg.ScanIntervalDuration())
	for time.Now().Before(deadline) {
		if sm.stopScan.Load() || sm.terminate.Load() {
			return false
		}
		remaining := time.Until(deadline)
		if remaining > 50*time.Millisecond {
			remaining = 50 * time.Millisecond
		}
		time.Sleep(remaining)
	}
	return !sm.stopScan.Load() && !sm.terminate.Load()
}

// scanLoop — фоновый цикл сканирования. Пауза между циклами одинаковая,
// нашелся инвентарь или нет. Одна плохая итерация не останавливает цикл.
func (sm *ScanManager) scanLoop(done chan struct{}) {
	defer close(done)
	defer sm.state.Store(int32(StateIdle))

	var backend captureBackend
	var region config.Rect
	defer func() {
		if backend != nil {
			backend.Close()
		}
	}()

	sm.statusPanel.NotifyScanState(true)
	defer sm.statusPanel.NotifyScanState(false)

	for {
		if sm.stopScan.Load() || sm.terminate.Load() {
			sm.logger.Info("⏹️ Фоновый цикл сканирования остановлен")
			return
		}

		if backend == nil {
			backend, region = newCaptureBackend(sm.cfg)
			sm.logger.Info("📍 Область сканирования: %dx%d @ (%d,%d)", region.Width, region.Height, region.X, region.Y)
		}

		report := sm.runCycle(backend, region)
		sm.publish(report)
		sm.recordHistory(report)

		if !sm.sleepInterval() {
			sm.logger.Info("⏹️ Фоновый цикл сканирования остановлен")
			return
		}
	}
}

// runCycle выполняет один проход конвейера:
// захват → поиск инвентаря → нарезка → распознавание → цены.
// Любая ошибка внутри цикла попадает в отчет маркером, не наружу.
func (sm *ScanManager) runCycle(backend captureBackend, region config.Rect) Report {
	report := Report{Timestamp: time.Now()}

	frame, err := backend.Capture(region)
	if err != nil {
		report.Err = fmt.Errorf("ошибка захвата экрана: %v", err)
		sm.logger.LogError(report.Err, "Цикл сканирования пропущен")
		return report
	}

	inventory, found := detector.LocateInventory(frame, sm.cfg.Detector)
	if !found {
		// Инвентарь закрыт. Частое и ожидаемое состояние, не ошибка
		sm.logger.Debug("🔍 Инвентарь не найден в кадре")
		return report
	}
	report.InventoryFound = true
	sm.logger.Debug("📸 Инвентарь найден: %dx%d @ (%d,%d)", inventory.Width, inventory.Height, inventory.X, inventory.Y)

	if sm.cfg.Scanner.SaveDebugFrames == 1 {
		sm.saveDebugFrame(frame)
	}

	ctx := context.Background()
	slots := detector.SegmentSlots(frame, inventory, sm.cfg.Detector)
	for _, slot := range slots {
		if slot.Empty {
			continue
		}

		match, ok := sm.library.Recognize(slot.Img, sm.cfg.Recognizer.ConfidenceThreshold)
		if !ok {
			continue
		}

		item := ReportItem{
			Name:  match.Name,
			Row:   slot.Row,
			Col:   slot.Col,
			Score: match.Score,
		}
		if record, priced := sm.prices.GetPrice(ctx, match.Name); priced {
			item.PriceRUB = record.PriceRUB
			item.Trader = record.Trader
			item.Priced = true
			report.TotalValue += record.PriceRUB
		}
		report.Items = append(report.Items, item)

		sm.logger.Info("✅ [%d,%d] %s (%.2f) — %d ₽", slot.Row, slot.Col, item.Name, item.Score, item.PriceRUB)
	}

	sm.logger.Info("📋 Цикл завершен: %d предметов на %d ₽", len(report.Items), report.TotalValue)
	return report
}

// recordHistory отправляет итог цикла в историю и на статусную панель
func (sm *ScanManager) recordHistory(report Report) {
	if sm.dbManager != nil {
		record := database.CycleRecord{
			StartedAt:      report.Timestamp,
			InventoryFound: report.InventoryFound,
			ItemCount:      len(report.Items),
			TotalValue:     report.TotalValue,
		}
		if report.Err != nil {
			record.ErrorText = report.Err.Error()
		}
		items := make([]database.ItemRecord, 0, len(report.Items))
		for _, item := range report.Items {
			items = append(items, database.ItemRecord{
				Name:     item.Name,
				Row:      item.Row,
				Col:      item.Col,
				Score:    item.Score,
				PriceRUB: item.PriceRUB,
				Trader:   item.Trader,
			})
		}
		sm.dbManager.SaveCycleAsync(record, items)
	}

	if report.Err == nil {
		sm.statusPanel.NotifyCycleSummary(len(report.Items), report.TotalValue)
	}
}

// saveDebugFrame сохраняет кадр с найденным инвентарем для отладки порогов
func (sm *ScanManager) saveDebugFrame(frame *capture.Frame) {
	name := fmt.Sprintf("frame_%d.png", time.Now().UnixMilli())
	path := filepath.Join(sm.cfg.Scanner.DebugFrameDir, name)
	if err := imageutils.SavePNG(frame.Img, path); err != nil {
		sm.logger.Warn("⚠️ Не удалось сохранить отладочный кадр: %v", err)
	} else {
		sm.logger.Debug("💾 Отладочный кадр сохранен: %s", path)
	}
}
