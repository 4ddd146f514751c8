package capture

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"

	"shmon/internal/config"
	"shmon/internal/imageutils"
)

// Frame — один захваченный кадр плюс метаданные области захвата на экране.
// После создания не меняется; этап конвейера, получивший кадр, владеет им
// до конца цикла, дальше кадр выбрасывается.
type Frame struct {
	Img    *image.RGBA
	Top    int
	Left   int
	Width  int
	Height int
}

// Бэкенды захвата вынесены в переменные, чтобы подменять их в тестах
var captureRect = func(rect image.Rectangle) (*image.RGBA, error) {
	return screenshot.CaptureRect(rect)
}

var captureDisplay = func(display int) (*image.RGBA, error) {
	return screenshot.CaptureDisplay(display)
}

var displayBounds = func(display int) image.Rectangle {
	return screenshot.GetDisplayBounds(display)
}

var numDisplays = func() int {
	return screenshot.NumActiveDisplays()
}

// CaptureContext держит состояние захвата одной горутины.
// Не потокобезопасен: каждая горутина создает свой контекст
// и закрывает его при выходе, делить один контекст нельзя.
type CaptureContext struct {
	display int
	bounds  image.Rectangle
	closed  bool
}

// NewContext создает контекст захвата для указанного дисплея
func NewContext(display int) *CaptureContext {
	return &CaptureContext{display: display}
}

// Close помечает контекст закрытым, дальнейшие захваты через него запрещены
func (c *CaptureContext) Close() {
	c.closed = true
}

// FullBounds возвращает границы дисплея, кешируются при первом обращении
func (c *CaptureContext) FullBounds() image.Rectangle {
	if c.bounds.Empty() {
		if numDisplays() > c.display {
			c.bounds = displayBounds(c.display)
		} else {
			c.bounds = image.Rect(0, 0, 1920, 1080) // Стандартное разрешение, можно адаптировать
		}
	}
	return c.bounds
}

// Capture захватывает область экрана и возвращает кадр.
// Сначала основной бэкенд, при его отказе один повтор через запасной
// (снимок всего дисплея с вырезанием области). Отказ обоих возвращает
// ошибку, процесс при этом не останавливается.
func (c *CaptureContext) Capture(region config.Rect) (*Frame, error) {
	if c.closed {
		return nil, fmt.Errorf("контекст захвата уже закрыт")
	}
	if region.Width <= 0 || region.Height <= 0 {
		return nil, fmt.Errorf("некорректная область захвата: %dx%d", region.Width, region.Height)
	}

	rect := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height)

	img, err := captureRect(rect)
	if err != nil {
		img, err = c.captureFallback(rect)
		if err != nil {
			return nil, fmt.Errorf("failed to capture screenshot: %v", err)
		}
	}

	return &Frame{
		Img:    img,
		Top:    region.Y,
		Left:   region.X,
		Width:  img.Bounds().Dx(),
		Height: img.Bounds().Dy(),
	}, nil
}

// captureFallback снимает весь дисплей и вырезает из него нужную область
func (c *CaptureContext) captureFallback(rect image.Rectangle) (*image.RGBA, error) {
	full, err := captureDisplay(c.display)
	if err != nil {
		return nil, fmt.Errorf("запасной бэкенд тоже отказал: %v", err)
	}

	// Переводим экранные координаты в координаты снимка дисплея
	crop := rect.Sub(c.FullBounds().Min)
	crop = crop.Intersect(full.Bounds())
	if crop.Empty() {
		return nil, fmt.Errorf("область %v вне границ дисплея", rect)
	}

	return imageutils.CropRGBA(full, crop), nil
}
