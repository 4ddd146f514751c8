package main

import (
	"database/sql"
	"log"
	"os"
	"time"

	"shmon/internal/arduino"
	"shmon/internal/config"
	"shmon/internal/database"
	"shmon/internal/interrupt"
	"shmon/internal/logger"
	"shmon/internal/overlay"
	"shmon/internal/price"
	"shmon/internal/recognizer"
	"shmon/internal/scanner"
	"shmon/internal/tarkovdev"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	// init конфигурации
	err, c := config.InitConfig()
	if err != nil {
		return
	}

	// Инициализация логгера
	loggerManager, err := logger.NewLoggerManager(c.LogFilePath)
	if err != nil {
		log.Fatal("Error initializing logger: ", err)
	}
	defer loggerManager.Close()

	loggerManager.Info("🚀 Запуск сканера ШМОН")

	// Подключение к базе данных MySQL, история сканирования необязательна
	var dbManager *database.DatabaseManager
	if c.Database.Enabled == 1 {
		db, err := sql.Open("mysql", c.Database.DSN)
		if err != nil {
			loggerManager.LogError(err, "Error connecting to database")
			return
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			loggerManager.LogError(err, "Error pinging database")
			return
		}
		loggerManager.Info("✅ Успешное подключение к базе данных")
		dbManager = database.NewDatabaseManager(db, loggerManager)
	} else {
		loggerManager.Info("💾 История сканирования отключена (database.enabled = 0)")
	}

	// Статусная панель на Arduino, без нее тоже работаем
	statusPanel, err := arduino.NewStatusPanel(c.Arduino, loggerManager)
	if err != nil {
		loggerManager.Warn("⚠️ Статусная панель недоступна: %v", err)
	}
	defer statusPanel.Close()

	// Библиотека шаблонов предметов
	library, err := recognizer.LoadLibrary(c.Recognizer.ItemsDir)
	if err != nil {
		loggerManager.LogError(err, "Ошибка загрузки библиотеки шаблонов")
		return
	}
	if library.Count() == 0 {
		loggerManager.Warn("⚠️ Библиотека шаблонов пуста, наполните ее командой build_items")
	} else {
		loggerManager.Info("✅ Загружено шаблонов: %d", library.Count())
	}

	// Каталог и трекер цен
	catalog := tarkovdev.NewClient(c.API, loggerManager)
	priceTracker := price.NewPriceTracker(c.Price, catalog, loggerManager)
	priceTracker.LoadCache()

	// Координатор сканирования и оверлей
	scanManager := scanner.NewScanManager(&c, library, priceTracker, dbManager, statusPanel, loggerManager)
	overlayManager := overlay.NewOverlayManager(os.Stdout, loggerManager)

	// Менеджер прерываний
	interruptManager := interrupt.NewInterruptManager(loggerManager)
	interruptManager.SetOverlayVisible(overlayManager.IsVisible())
	loggerManager.Info("⏸️ Программа готова к работе")
	loggerManager.Info("🔥 Горячие клавиши: F9 запуск/остановка сканирования, F10 показать/скрыть оверлей, ESC выход")

	// Пока оверлей видим, консоль принадлежит ему, лог идет только в файл
	loggerManager.SetConsoleEcho(!overlayManager.IsVisible())

	interruptManager.StartMonitoring()
	defer interruptManager.Stop()

	pollTicker := time.NewTicker(c.ReportPollDuration())
	defer pollTicker.Stop()

	for {
		select {
		case <-interruptManager.GetStartScanChan():
			if scanManager.StartScanning() {
				interruptManager.SetScanActive(true)
				// Запуск сканирования поднимает оверлей
				overlayManager.Show()
				interruptManager.SetOverlayVisible(true)
				loggerManager.SetConsoleEcho(false)
			}

		case <-interruptManager.GetStopScanChan():
			scanManager.StopScanning()
			interruptManager.SetScanActive(false)

		case <-interruptManager.GetShowOverlayChan():
			overlayManager.Show()
			interruptManager.SetOverlayVisible(true)
			loggerManager.SetConsoleEcho(false)

		case <-interruptManager.GetHideOverlayChan():
			overlayManager.Hide()
			interruptManager.SetOverlayVisible(false)
			loggerManager.SetConsoleEcho(true)

		case <-interruptManager.GetTerminateChan():
			loggerManager.Info("⏹️ Завершение работы...")
			scanManager.Terminate()
			if dbManager != nil {
				dbManager.WaitForAsyncOperations()
			}
			if err := priceTracker.SaveCache(); err != nil {
				loggerManager.Warn("⚠️ Не удалось сохранить кэш цен: %v", err)
			}
			loggerManager.Info("✅ Работа завершена")
			return

		case <-pollTicker.C:
			// Снимаем накопившиеся отчеты без блокировки,
			// пустой канал означает "обновлений пока нет"
		drain:
			for {
				select {
				case report := <-scanManager.Reports():
					overlayManager.Render(report)
				default:
					break drain
				}
			}
		}
	}
}
