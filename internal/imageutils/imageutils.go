package imageutils

import (
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"os"

	xdraw "golang.org/x/image/draw"
)

// GetPixelColor получает цвет пикселя по координатам (значения 0-255).
// Координаты вне границ возвращают нули, а не ошибку.
func GetPixelColor(img image.Image, x int, y int) (int, int, int, error) {
	bounds := img.Bounds()
	if x < bounds.Min.X || x >= bounds.Max.X || y < bounds.Min.Y || y >= bounds.Max.Y {
		return 0, 0, 0, nil
	}

	clr := img.At(x, y)
	r, g, b, _ := clr.RGBA()
	return int(r >> 8), int(g >> 8), int(b >> 8), nil
}

// Luma переводит компоненты цвета в яркость (0-255), целочисленно,
// чтобы результат был воспроизводим бит-в-бит.
func Luma(r, g, b int) int {
	return (299*r + 587*g + 114*b) / 1000
}

// ToRGBA приводит изображение к *image.RGBA без изменения содержимого
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// CropRGBA вырезает прямоугольник из изображения. Память общая с исходником,
// поэтому результат живет не дольше исходного кадра.
func CropRGBA(img *image.RGBA, rect image.Rectangle) *image.RGBA {
	return img.SubImage(rect).(*image.RGBA)
}

// Resize масштабирует изображение до заданного размера (быстрый билинейный фильтр)
func Resize(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// ResizeSmooth масштабирует с качественным фильтром, для офлайн инструментов
func ResizeSmooth(img image.Image, width, height int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), xdraw.Src, nil)
	return dst
}

// SavePNG сохраняет изображение в файл
func SavePNG(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %v", err)
	}
	defer file.Close()

	err = png.Encode(file, img)
	if err != nil {
		return fmt.Errorf("failed to encode image: %v", err)
	}

	return nil
}
