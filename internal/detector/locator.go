package detector

import (
	"shmon/internal/capture"
	"shmon/internal/config"
	"shmon/internal/imageutils"
)

// Region — прямоугольник инвентаря внутри кадра.
// Координаты относительно левого верхнего угла кадра, всегда внутри его границ.
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
}

// LocateInventory ищет сетку инвентаря в кадре: перевод в градации серого,
// порог по темным пикселям, связные компоненты, и берется ПЕРВАЯ компонента
// (в порядке обхода сверху вниз, слева направо), у которой ширина и высота
// строго больше минимума и соотношение сторон лежит в (aspect_min, aspect_max).
// Без выбора лучшей из всех: так делал исходный детектор, кандидат на улучшение.
//
// Это эвристика: большой темный прямоугольник на экране может оказаться чем
// угодно, вызывающий обязан спокойно переживать ложные пропуски и ложные
// срабатывания. Нет подходящей компоненты — вернется false, это не ошибка,
// а обычное состояние, когда инвентарь закрыт.
func LocateInventory(frame *capture.Frame, p config.Detector) (Region, bool) {
	bounds := frame.Img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	if width == 0 || height == 0 {
		return Region{}, false
	}

	// Маска темных пикселей по яркости
	dark := make([]bool, width*height)
	pix := frame.Img.Pix
	for y := 0; y < height; y++ {
		rowOff := frame.Img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < width; x++ {
			off := rowOff + x*4
			gray := imageutils.Luma(int(pix[off]), int(pix[off+1]), int(pix[off+2]))
			dark[y*width+x] = gray < p.DarkThreshold
		}
	}

	// Связные компоненты заливкой (4-связность), очередь вместо рекурсии
	visited := make([]bool, width*height)
	queue := make([]int, 0, 1024)
	for start := 0; start < width*height; start++ {
		if !dark[start] || visited[start] {
			continue
		}

		minX, minY := width, height
		maxX, maxY := 0, 0
		queue = queue[:0]
		queue = append(queue, start)
		visited[start] = true
		for len(queue) > 0 {
			idx := queue[len(queue)-1]
			queue = queue[:len(queue)-1]
			x := idx % width
			y := idx / width
			if x < minX {
				minX = x
			}
			if x > maxX {
				maxX = x
			}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}

			if x > 0 && dark[idx-1] && !visited[idx-1] {
				visited[idx-1] = true
				queue = append(queue, idx-1)
			}
			if x < width-1 && dark[idx+1] && !visited[idx+1] {
				visited[idx+1] = true
				queue = append(queue, idx+1)
			}
			if y > 0 && dark[idx-width] && !visited[idx-width] {
				visited[idx-width] = true
				queue = append(queue, idx-width)
			}
			if y < height-1 && dark[idx+width] && !visited[idx+width] {
				visited[idx+width] = true
				queue = append(queue, idx+width)
			}
		}

		w := maxX - minX + 1
		h := maxY - minY + 1
		if w > p.MinRegionWidth && h > p.MinRegionHeight {
			aspect := float64(w) / float64(h)
			if aspect > p.AspectMin && aspect < p.AspectMax {
				return Region{X: minX, Y: minY, Width: w, Height: h}, true
			}
		}
	}

	return Region{}, false
}
