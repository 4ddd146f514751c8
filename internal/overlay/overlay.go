package overlay

import (
	"fmt"
	"io"

	"shmon/internal/logger"
	"shmon/internal/scanner"
)

// OverlayManager — консольное представление результатов сканирования.
// Живет только в переднем контексте, видимостью управляет F10.
// Скрытый оверлей продолжает принимать отчеты, но ничего не печатает,
// канал отчетов при этом не копится.
type OverlayManager struct {
	visible bool
	out     io.Writer
	lastKey string
	logger  *logger.LoggerManager
}

// NewOverlayManager создает оверлей, пишущий в указанный поток
func NewOverlayManager(out io.Writer, loggerManager *logger.LoggerManager) *OverlayManager {
	return &OverlayManager{
		visible: true,
		out:     out,
		logger:  loggerManager,
	}
}

// Show делает оверлей видимым, следующий отчет будет напечатан заново
func (o *OverlayManager) Show() {
	o.visible = true
	o.lastKey = ""
	o.logger.Debug("🔍 Оверлей включен")
}

// Hide скрывает оверлей
func (o *OverlayManager) Hide() {
	o.visible = false
	o.logger.Debug("🔍 Оверлей скрыт")
}

// IsVisible возвращает видимость оверлея
func (o *OverlayManager) IsVisible() bool {
	return o.visible
}

// Render печатает отчет цикла. Одинаковые подряд отчеты печатаются один раз,
// чтобы не заливать консоль на каждом цикле.
func (o *OverlayManager) Render(report scanner.Report) {
	if !o.visible {
		return
	}

	key := summaryKey(report)
	if key == o.lastKey {
		return
	}
	o.lastKey = key

	if report.Err != nil {
		fmt.Fprintf(o.out, "⚠️ Цикл не удался: %v\n", report.Err)
		return
	}
	if !report.InventoryFound {
		fmt.Fprintln(o.out, "🔍 Инвентарь не найден")
		return
	}

	fmt.Fprintf(o.out, "📋 %s — предметов: %d\n", report.Timestamp.Format("15:04:05"), len(report.Items))
	for _, item := range report.Items {
		if item.Priced {
			fmt.Fprintf(o.out, "  [%d,%d] %s — %d ₽ (%s, %.2f)\n",
				item.Row, item.Col, item.Name, item.PriceRUB, item.Trader, item.Score)
		} else {
			fmt.Fprintf(o.out, "  [%d,%d] %s — цена неизвестна (%.2f)\n",
				item.Row, item.Col, item.Name, item.Score)
		}
	}
	fmt.Fprintf(o.out, "💰 Итого: %d ₽\n", report.TotalValue)
}

// summaryKey сводит отчет к строке для подавления повторов.
// Время в ключ не входит: два цикла с одинаковым содержимым равны.
func summaryKey(report scanner.Report) string {
	if report.Err != nil {
		return "err:" + report.Err.Error()
	}
	if !report.InventoryFound {
		return "empty"
	}
	key := fmt.Sprintf("total:%d", report.TotalValue)
	for _, item := range report.Items {
		key += fmt.Sprintf("|%d,%d:%s:%d", item.Row, item.Col, item.Name, item.PriceRUB)
	}
	return key
}
