package recognizer

import (
	"image"
	"testing"
)

// stripesH — горизонтальные полосы, stripesV — вертикальные.
// Узоры взаимно почти не коррелируют, удобно для проверок распознавания.
func stripesH(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		v := uint8(40)
		if y%16 >= 8 {
			v = 220
		}
		for x := 0; x < w; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
		}
	}
	return img
}

func stripesV(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(40)
			if x%16 >= 8 {
				v = 220
			}
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
		}
	}
	return img
}

func solid(w, h int, v uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
	}
	return img
}

func makeTemplate(name string, img *image.RGBA) Template {
	return Template{
		Meta: Meta{Name: name},
		Img:  img,
		gray: newGrayImage(img),
	}
}

func testLibrary(templates ...Template) *Library {
	return &Library{templates: templates}
}

func TestRecognizeIdenticalImage(t *testing.T) {
	lib := testLibrary(
		makeTemplate("horizontal", stripesH(63, 63)),
		makeTemplate("vertical", stripesV(63, 63)),
	)

	match, ok := lib.Recognize(stripesV(63, 63), 0.8)
	if !ok {
		t.Fatal("identical image must match")
	}
	if match.Name != "vertical" {
		t.Errorf("matched %q, want vertical", match.Name)
	}
	if match.Score < 0.99 {
		t.Errorf("score = %v, want >= 0.99 for a pixel-identical image", match.Score)
	}
}

func TestRecognizeBelowThresholdRejected(t *testing.T) {
	lib := testLibrary(
		makeTemplate("horizontal", stripesH(63, 63)),
		makeTemplate("vertical", stripesV(63, 63)),
	)

	// Шахматные блоки 8×8 не коррелируют ни с одним из узоров
	checker := image.NewRGBA(image.Rect(0, 0, 63, 63))
	for y := 0; y < 63; y++ {
		for x := 0; x < 63; x++ {
			v := uint8(40)
			if (x/8+y/8)%2 == 1 {
				v = 220
			}
			i := checker.PixOffset(x, y)
			checker.Pix[i], checker.Pix[i+1], checker.Pix[i+2], checker.Pix[i+3] = v, v, v, 255
		}
	}

	if match, ok := lib.Recognize(checker, 0.8); ok {
		t.Errorf("uncorrelated image matched %q with score %v", match.Name, match.Score)
	}
}

func TestRecognizeNeverReturnsScoreBelowThreshold(t *testing.T) {
	lib := testLibrary(
		makeTemplate("horizontal", stripesH(63, 63)),
		makeTemplate("vertical", stripesV(63, 63)),
	)
	inputs := []*image.RGBA{
		stripesH(63, 63),
		stripesV(63, 63),
		solid(63, 63, 60),
		solid(63, 63, 200),
	}
	for _, in := range inputs {
		if match, ok := lib.Recognize(in, 0.8); ok && match.Score < 0.8 {
			t.Errorf("accepted match %q with score %v below threshold", match.Name, match.Score)
		}
	}
}

func TestRecognizeTieBreakFirstInLibraryOrder(t *testing.T) {
	// Два одинаковых шаблона дают одинаковый балл, победить должен первый
	lib := testLibrary(
		makeTemplate("first", stripesH(63, 63)),
		makeTemplate("second", stripesH(63, 63)),
	)

	match, ok := lib.Recognize(stripesH(63, 63), 0.8)
	if !ok {
		t.Fatal("expected a match")
	}
	if match.Name != "first" {
		t.Errorf("tie went to %q, want first", match.Name)
	}
}

func TestRecognizeResizesSlotToTemplateSize(t *testing.T) {
	tpl := stripesH(63, 63)
	lib := testLibrary(makeTemplate("horizontal", tpl))

	// Ячейка вдвое больше шаблона: каждый пиксель продублирован блоком 2×2
	big := image.NewRGBA(image.Rect(0, 0, 126, 126))
	for y := 0; y < 126; y++ {
		for x := 0; x < 126; x++ {
			src := tpl.PixOffset(x/2, y/2)
			dst := big.PixOffset(x, y)
			copy(big.Pix[dst:dst+4], tpl.Pix[src:src+4])
		}
	}

	match, ok := lib.Recognize(big, 0.8)
	if !ok {
		t.Fatal("scaled-up slot must still match after resize")
	}
	if match.Name != "horizontal" {
		t.Errorf("matched %q, want horizontal", match.Name)
	}
}

func TestRecognizeConstantImages(t *testing.T) {
	lib := testLibrary(makeTemplate("flat", solid(63, 63, 60)))

	if _, ok := lib.Recognize(solid(63, 63, 60), 0.8); !ok {
		t.Error("constant slot equal to constant template must match")
	}
	if match, ok := lib.Recognize(solid(63, 63, 200), 0.8); ok {
		t.Errorf("different constant matched with score %v", match.Score)
	}
}

func TestRecognizeEmptyLibrary(t *testing.T) {
	lib := testLibrary()
	if _, ok := lib.Recognize(stripesH(63, 63), 0.8); ok {
		t.Error("empty library must never match")
	}
}
