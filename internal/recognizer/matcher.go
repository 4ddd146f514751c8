package recognizer

import (
	"image"
	"math"

	"shmon/internal/imageutils"
)

const varianceEps = 1e-9

// Match — результат распознавания одной ячейки
type Match struct {
	Name  string
	Score float64
}

// grayImage — изображение в яркостях с предрасчитанными статистиками
// для нормированной кросс-корреляции
type grayImage struct {
	w, h int
	lum  []float64
	mean float64
	norm float64 // sqrt(сумма квадратов отклонений от среднего)
}

func newGrayImage(img *image.RGBA) *grayImage {
	bounds := img.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	g := &grayImage{w: w, h: h, lum: make([]float64, w*h)}

	var sum float64
	for y := 0; y < h; y++ {
		rowOff := img.PixOffset(bounds.Min.X, bounds.Min.Y+y)
		for x := 0; x < w; x++ {
			off := rowOff + x*4
			v := float64(imageutils.Luma(int(img.Pix[off]), int(img.Pix[off+1]), int(img.Pix[off+2])))
			g.lum[y*w+x] = v
			sum += v
		}
	}
	n := float64(len(g.lum))
	g.mean = sum / n

	var sq float64
	for _, v := range g.lum {
		d := v - g.mean
		sq += d * d
	}
	g.norm = math.Sqrt(sq)
	return g
}

// nccScore считает нормированную кросс-корреляцию двух изображений
// одинакового размера. Диапазон [-1, 1], у совпадающих картинок ровно 1.
// Почти нулевая дисперсия с обеих сторон сравнивается по средним,
// чтобы не делить на ноль на однотонных картинках.
func nccScore(a, b *grayImage) float64 {
	if a.norm < varianceEps && b.norm < varianceEps {
		if math.Abs(a.mean-b.mean) <= 1 {
			return 1
		}
		return 0
	}
	if a.norm < varianceEps || b.norm < varianceEps {
		return 0
	}

	var dot float64
	for i, v := range a.lum {
		dot += v * b.lum[i]
	}
	n := float64(len(a.lum))
	num := dot - n*a.mean*b.mean
	return num / (a.norm * b.norm)
}

// Recognize ищет предмет в ячейке полным перебором библиотеки: каждая
// пара ячейка-шаблон получает корреляционный балл, берется максимум по
// всей библиотеке без ранних выходов и индексов. Ячейка масштабируется
// под размер шаблона, если размеры расходятся. При равных баллах
// побеждает шаблон, встреченный раньше по порядку библиотеки.
// Совпадение возвращается только с баллом не ниже порога.
func (l *Library) Recognize(slotImg *image.RGBA, threshold float64) (Match, bool) {
	if len(l.templates) == 0 {
		return Match{}, false
	}

	// Ячейку готовим по одному разу на каждый встреченный размер шаблона
	prepared := make(map[image.Point]*grayImage, 1)
	slotSize := image.Pt(slotImg.Bounds().Dx(), slotImg.Bounds().Dy())

	best := Match{Score: math.Inf(-1)}
	for _, tpl := range l.templates {
		key := image.Pt(tpl.gray.w, tpl.gray.h)
		slotGray, ok := prepared[key]
		if !ok {
			if key == slotSize {
				slotGray = newGrayImage(slotImg)
			} else {
				slotGray = newGrayImage(imageutils.Resize(slotImg, key.X, key.Y))
			}
			prepared[key] = slotGray
		}

		score := nccScore(slotGray, tpl.gray)
		if score > best.Score {
			best = Match{Name: tpl.Name, Score: score}
		}
	}

	if best.Score >= threshold {
		return best, true
	}
	return Match{}, false
}
