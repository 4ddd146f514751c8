package recognizer

import (
	"encoding/json"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"unicode"

	"shmon/internal/imageutils"
)

// TraderPrice — прайс торговца на момент сборки библиотеки
type TraderPrice struct {
	Price    int64  `json:"price"`
	Currency string `json:"currency"`
	Trader   string `json:"trader"`
}

// GridSize — размер предмета в ячейках инвентаря
type GridSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Meta — сайдкар-файл рядом с иконкой. Формат общий для сборщика
// библиотеки и загрузчика.
type Meta struct {
	Name         string      `json:"name"`
	ShortName    string      `json:"short_name"`
	GridSize     GridSize    `json:"grid_size"`
	TraderPrice  TraderPrice `json:"trader_price"`
	AvgFleaPrice int64       `json:"avg_flea_price"`
}

// Template — эталонная иконка предмета плюс метаданные.
// После загрузки не меняется.
type Template struct {
	Meta
	Img *image.RGBA

	// Предрасчет для корреляции, заполняется один раз при загрузке
	gray *grayImage
}

// Library — библиотека эталонов. Загружается один раз на старте процесса,
// дальше только читается, в том числе из нескольких горутин без блокировок.
// Порядок шаблонов — отсортированный порядок файлов, он же порядок
// разрешения ничьих при распознавании.
type Library struct {
	templates []Template
}

// SafeFileName приводит имя предмета к безопасному имени файла:
// каждый символ, кроме букв, цифр, пробела, дефиса и подчеркивания,
// заменяется подчеркиванием, затем обрезаются крайние пробелы.
func SafeFileName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.TrimSpace(b.String())
}

// LoadLibrary загружает все иконки с сайдкарами из каталога.
// Пустой каталог — не ошибка: распознавание просто ничего не найдет.
func LoadLibrary(dir string) (*Library, error) {
	pattern := filepath.Join(dir, "*.png")
	files, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения каталога шаблонов %s: %v", dir, err)
	}

	lib := &Library{templates: make([]Template, 0, len(files))}
	for _, file := range files {
		tpl, err := loadTemplate(file)
		if err != nil {
			return nil, fmt.Errorf("не удалось загрузить шаблон %s: %v", file, err)
		}
		lib.templates = append(lib.templates, tpl)
	}
	return lib, nil
}

func loadTemplate(file string) (Template, error) {
	f, err := os.Open(file)
	if err != nil {
		return Template{}, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return Template{}, fmt.Errorf("ошибка декодирования PNG: %v", err)
	}

	rgba := imageutils.ToRGBA(img)
	tpl := Template{Img: rgba, gray: newGrayImage(rgba)}

	// Сайдкар лежит рядом с тем же именем. Без него шаблон тоже рабочий,
	// именем предмета становится имя файла.
	metaPath := strings.TrimSuffix(file, filepath.Ext(file)) + ".json"
	data, err := os.ReadFile(metaPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return Template{}, fmt.Errorf("ошибка чтения метаданных: %v", err)
		}
		tpl.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		return tpl, nil
	}
	if err := json.Unmarshal(data, &tpl.Meta); err != nil {
		return Template{}, fmt.Errorf("ошибка разбора метаданных %s: %v", metaPath, err)
	}
	if tpl.Name == "" {
		tpl.Name = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	}
	return tpl, nil
}

// Count возвращает число загруженных шаблонов
func (l *Library) Count() int {
	return len(l.templates)
}

// Templates отдает шаблоны для перебора. Слайс только для чтения.
func (l *Library) Templates() []Template {
	return l.templates
}
