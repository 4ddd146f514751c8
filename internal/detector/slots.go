package detector

import (
	"image"

	"shmon/internal/capture"
	"shmon/internal/config"
	"shmon/internal/imageutils"
)

// Slot — одна ячейка сетки инвентаря: подизображение slot_size×slot_size,
// координата в сетке и в пикселях кадра, флаг пустоты. Ячейки создаются
// заново каждый цикл и между циклами не живут.
type Slot struct {
	Img   *image.RGBA
	Row   int
	Col   int
	X     int
	Y     int
	Empty bool
}

// SegmentSlots нарезает область на сетку ячеек, построчно (слева направо,
// сверху вниз): cols = width/slot_size, rows = height/slot_size целочисленно,
// остаток справа и снизу не попадает ни в одну ячейку.
func SegmentSlots(frame *capture.Frame, region Region, p config.Detector) []Slot {
	cols := region.Width / p.SlotSize
	rows := region.Height / p.SlotSize
	if cols <= 0 || rows <= 0 {
		return nil
	}

	min := frame.Img.Bounds().Min
	slots := make([]Slot, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			x := region.X + col*p.SlotSize
			y := region.Y + row*p.SlotSize
			rect := image.Rect(min.X+x, min.Y+y, min.X+x+p.SlotSize, min.Y+y+p.SlotSize)
			sub := imageutils.CropRGBA(frame.Img, rect)
			slots = append(slots, Slot{
				Img:   sub,
				Row:   row,
				Col:   col,
				X:     x,
				Y:     y,
				Empty: SlotEmpty(sub, p),
			})
		}
	}
	return slots
}

// SlotEmpty классифицирует ячейку как пустую: по каждому каналу среднее
// строго внутри (empty_mean_low, empty_mean_high) И дисперсия строго меньше
// empty_variance_max. Пороги подобраны под фон ячеек конкретной темы
// оформления; нарушение любой границы любым каналом означает "занята".
// Чистая целочисленная накопка, результат воспроизводим бит-в-бит.
func SlotEmpty(img *image.RGBA, p config.Detector) bool {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return false
	}

	var sum [3]int64
	var sumSq [3]int64
	pix := img.Pix
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		rowOff := img.PixOffset(bounds.Min.X, y)
		for x := 0; x < bounds.Dx(); x++ {
			off := rowOff + x*4
			for c := 0; c < 3; c++ {
				v := int64(pix[off+c])
				sum[c] += v
				sumSq[c] += v * v
			}
		}
	}

	for c := 0; c < 3; c++ {
		mean := float64(sum[c]) / float64(n)
		variance := float64(sumSq[c])/float64(n) - mean*mean
		if mean <= p.EmptyMeanLow || mean >= p.EmptyMeanHigh {
			return false
		}
		if variance >= p.EmptyVarianceMax {
			return false
		}
	}
	return true
}
