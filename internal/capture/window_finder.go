package capture

import (
	"shmon/internal/config"
	"shmon/internal/imageutils"
)

// DetectGameSurface ищет на дисплее прямоугольник окна игры: ограничивающий
// прямоугольник нечерных пикселей (любой канал >= 10). Это заглушка, а не
// честный поиск окна: на пестром рабочем столе вернет весь экран.
// При любой неудаче возвращаются полные границы дисплея.
func DetectGameSurface(c *CaptureContext) config.Rect {
	full := c.FullBounds()
	fullRect := config.Rect{X: full.Min.X, Y: full.Min.Y, Width: full.Dx(), Height: full.Dy()}

	img, err := captureDisplay(c.display)
	if err != nil {
		return fullRect
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	// Скан с шагом 4: точность до пары пикселей здесь не нужна
	const step = 4
	found := false
	left, top := width, height
	right, bottom := 0, 0
	for y := 0; y < height; y += step {
		for x := 0; x < width; x += step {
			r8, g8, b8, _ := imageutils.GetPixelColor(img, bounds.Min.X+x, bounds.Min.Y+y)
			if r8 >= 10 || g8 >= 10 || b8 >= 10 {
				found = true
				if x < left {
					left = x
				}
				if x > right {
					right = x
				}
				if y < top {
					top = y
				}
				if y > bottom {
					bottom = y
				}
			}
		}
	}
	if !found {
		return fullRect
	}

	return config.Rect{
		X:      full.Min.X + left,
		Y:      full.Min.Y + top,
		Width:  right - left + 1,
		Height: bottom - top + 1,
	}
}

// ResolveRegion определяет область захвата: явная область из конфига,
// иначе поиск окна игры, иначе весь дисплей
func ResolveRegion(c *CaptureContext, cfg *config.Config) config.Rect {
	if cfg.Capture.Region.Width > 0 && cfg.Capture.Region.Height > 0 {
		return cfg.Capture.Region
	}
	return DetectGameSurface(c)
}
