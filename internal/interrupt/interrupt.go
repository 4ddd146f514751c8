package interrupt

import (
	"sync"
	"sync/atomic"

	"shmon/internal/logger"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"
)

// InterruptManager управляет горячими клавишами и сигналами управления.
// Сигналы рекомендательные: доставляются через буферизованные каналы
// емкостью 1, повторное нажатие при необработанном сигнале теряется.
type InterruptManager struct {
	startScanChan   chan bool
	stopScanChan    chan bool
	showOverlayChan chan bool
	hideOverlayChan chan bool
	terminateChan   chan bool
	scanActive      atomic.Bool
	overlayVisible  atomic.Bool
	done            chan struct{}
	stopOnce        sync.Once
	loggerManager   *logger.LoggerManager
}

// NewInterruptManager создает новый менеджер прерываний
func NewInterruptManager(loggerManager *logger.LoggerManager) *InterruptManager {
	return &InterruptManager{
		startScanChan:   make(chan bool, 1),
		stopScanChan:    make(chan bool, 1),
		showOverlayChan: make(chan bool, 1),
		hideOverlayChan: make(chan bool, 1),
		terminateChan:   make(chan bool, 1),
		done:            make(chan struct{}),
		loggerManager:   loggerManager,
	}
}

// StartMonitoring запускает мониторинг горячих клавиш
func (im *InterruptManager) StartMonitoring() {
	go im.monitorHotkeys()
}

// Stop останавливает мониторинг горячих клавиш
func (im *InterruptManager) Stop() {
	im.stopOnce.Do(func() {
		close(im.done)
	})
}

// GetStartScanChan возвращает канал сигнала запуска сканирования
func (im *InterruptManager) GetStartScanChan() <-chan bool {
	return im.startScanChan
}

// GetStopScanChan возвращает канал сигнала остановки сканирования
func (im *InterruptManager) GetStopScanChan() <-chan bool {
	return im.stopScanChan
}

// GetShowOverlayChan возвращает канал сигнала показа оверлея
func (im *InterruptManager) GetShowOverlayChan() <-chan bool {
	return im.showOverlayChan
}

// GetHideOverlayChan возвращает канал сигнала скрытия оверлея
func (im *InterruptManager) GetHideOverlayChan() <-chan bool {
	return im.hideOverlayChan
}

// GetTerminateChan возвращает канал сигнала завершения программы
func (im *InterruptManager) GetTerminateChan() <-chan bool {
	return im.terminateChan
}

// SetScanActive сообщает менеджеру текущее состояние сканирования,
// от него зависит направление переключения по F9
func (im *InterruptManager) SetScanActive(active bool) {
	im.scanActive.Store(active)
}

// IsScanActive возвращает последнее известное состояние сканирования
func (im *InterruptManager) IsScanActive() bool {
	return im.scanActive.Load()
}

// SetOverlayVisible сообщает менеджеру текущее состояние оверлея
func (im *InterruptManager) SetOverlayVisible(visible bool) {
	im.overlayVisible.Store(visible)
}

// IsOverlayVisible возвращает последнее известное состояние оверлея
func (im *InterruptManager) IsOverlayVisible() bool {
	return im.overlayVisible.Load()
}

// push кладет сигнал без блокировки, лишние сигналы отбрасываются
func (im *InterruptManager) push(ch chan bool) {
	select {
	case ch <- true:
	default:
	}
}

// RequestStartScan программно запрашивает запуск сканирования
func (im *InterruptManager) RequestStartScan() {
	im.push(im.startScanChan)
}

// RequestStopScan программно запрашивает остановку сканирования
func (im *InterruptManager) RequestStopScan() {
	im.push(im.stopScanChan)
}

// RequestShowOverlay программно запрашивает показ оверлея
func (im *InterruptManager) RequestShowOverlay() {
	im.push(im.showOverlayChan)
}

// RequestHideOverlay программно запрашивает скрытие оверлея
func (im *InterruptManager) RequestHideOverlay() {
	im.push(im.hideOverlayChan)
}

// RequestTerminate программно запрашивает завершение программы
func (im *InterruptManager) RequestTerminate() {
	im.push(im.terminateChan)
}

// monitorHotkeys мониторит горячие клавиши:
// F9 переключает сканирование, F10 переключает оверлей, ESC завершает
func (im *InterruptManager) monitorHotkeys() {
	eventChan := make(chan types.KeyboardEvent, 100)
	go keyboard.Install(nil, eventChan)
	defer keyboard.Uninstall()

	for {
		select {
		case <-im.done:
			return
		case event := <-eventChan:
			if event.Message != types.WM_KEYDOWN {
				continue
			}
			switch event.VKCode {
			case types.VK_F9:
				if im.scanActive.Load() {
					im.loggerManager.Info("⏹️ F9: останавливаем сканирование")
					im.RequestStopScan()
				} else {
					im.loggerManager.Info("🚀 F9: запускаем сканирование")
					im.RequestStartScan()
				}
			case types.VK_F10:
				if im.overlayVisible.Load() {
					im.loggerManager.Info("🔍 F10: скрываем оверлей")
					im.RequestHideOverlay()
				} else {
					im.loggerManager.Info("🔍 F10: показываем оверлей")
					im.RequestShowOverlay()
				}
			case types.VK_ESCAPE:
				im.loggerManager.Info("⏹️ ESC: завершаем программу")
				im.RequestTerminate()
			}
		}
	}
}
