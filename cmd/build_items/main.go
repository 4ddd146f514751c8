package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"sort"

	"shmon/internal/config"
	"shmon/internal/imageutils"
	"shmon/internal/recognizer"
	"shmon/internal/tarkovdev"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Оффлайн-сборщик библиотеки шаблонов: выкачивает каталог tarkov.dev,
// отбирает дорогие предметы, приводит иконки к размеру ячейки и кладет
// рядом сайдкары с метаданными. Запускается отдельно от сканера.
func main() {
	err, c := config.InitConfig()
	if err != nil {
		log.Fatalf("Ошибка загрузки конфигурации: %v", err)
	}

	fmt.Println("Сборка библиотеки шаблонов...")
	fmt.Printf("Отбираем предметы дороже %d ₽\n", c.Builder.MinValue)

	client := tarkovdev.NewClient(c.API, nil)
	ctx := context.Background()

	items, err := client.FetchAllItems(ctx)
	if err != nil {
		log.Fatalf("Ошибка загрузки каталога: %v", err)
	}
	fmt.Printf("Получено предметов из каталога: %d\n", len(items))

	// Лучшая цена предмета — максимум по всем предложениям,
	// барахолка здесь участвует: фильтруем по общей ценности
	type valuableItem struct {
		item  tarkovdev.Item
		price int64
	}
	valuable := make([]valuableItem, 0)
	for _, item := range items {
		var best int64
		for _, offer := range item.SellFor {
			if offer.PriceRUB > best {
				best = offer.PriceRUB
			}
		}
		if best >= int64(c.Builder.MinValue) {
			valuable = append(valuable, valuableItem{item: item, price: best})
		}
	}

	sort.Slice(valuable, func(i, j int) bool {
		return valuable[i].price > valuable[j].price
	})
	fmt.Printf("Найдено ценных предметов: %d\n", len(valuable))

	fmt.Println("\nТоп-20 самых дорогих:")
	for i, v := range valuable {
		if i >= 20 {
			break
		}
		fmt.Printf("  - %s: %d ₽\n", v.item.Name, v.price)
	}

	if c.Builder.ItemLimit > 0 && len(valuable) > c.Builder.ItemLimit {
		valuable = valuable[:c.Builder.ItemLimit]
		fmt.Printf("Ограничиваем библиотеку до %d предметов\n", c.Builder.ItemLimit)
	}

	templatesDir := c.Recognizer.ItemsDir
	if err := os.MkdirAll(templatesDir, 0755); err != nil {
		log.Fatalf("Ошибка создания каталога %s: %v", templatesDir, err)
	}

	fmt.Println("\nСкачиваем иконки предметов...")
	processed := 0
	skipped := 0
	for i, v := range valuable {
		item := v.item

		imageURL := item.GridImageLink
		if imageURL == "" {
			imageURL = item.IconLink
		}
		if imageURL == "" {
			fmt.Printf("[%d/%d] У %s нет иконки, пропускаем\n", i+1, len(valuable), item.Name)
			skipped++
			continue
		}

		data, err := client.DownloadIcon(ctx, imageURL)
		if err != nil {
			fmt.Printf("[%d/%d] Не удалось скачать иконку %s: %v\n", i+1, len(valuable), item.Name, err)
			skipped++
			continue
		}

		img, _, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			fmt.Printf("[%d/%d] Не удалось декодировать иконку %s: %v\n", i+1, len(valuable), item.Name, err)
			skipped++
			continue
		}

		// Иконки каталога крупнее ячейки, ужимаем качественным фильтром
		resized := imageutils.ResizeSmooth(img, 63, 63)

		safeName := recognizer.SafeFileName(item.Name)
		templatePath := filepath.Join(templatesDir, safeName+".png")
		if err := imageutils.SavePNG(resized, templatePath); err != nil {
			fmt.Printf("[%d/%d] Не удалось сохранить шаблон %s: %v\n", i+1, len(valuable), item.Name, err)
			skipped++
			continue
		}

		meta := recognizer.Meta{
			Name:         item.Name,
			ShortName:    item.ShortName,
			GridSize:     recognizer.GridSize{Width: item.Width, Height: item.Height},
			AvgFleaPrice: item.Avg24hPrice,
		}
		if offer, ok := tarkovdev.BestTraderOffer(item); ok {
			meta.TraderPrice = recognizer.TraderPrice{
				Price:    offer.PriceRUB,
				Currency: offer.Currency,
				Trader:   offer.Trader,
			}
		}

		metaData, err := json.MarshalIndent(meta, "", "  ")
		if err != nil {
			fmt.Printf("[%d/%d] Не удалось сериализовать метаданные %s: %v\n", i+1, len(valuable), item.Name, err)
			skipped++
			continue
		}
		metaPath := filepath.Join(templatesDir, safeName+".json")
		if err := os.WriteFile(metaPath, metaData, 0644); err != nil {
			fmt.Printf("[%d/%d] Не удалось записать метаданные %s: %v\n", i+1, len(valuable), item.Name, err)
			skipped++
			continue
		}

		processed++
		fmt.Printf("[%d/%d] Обработан %s\n", i+1, len(valuable), item.Name)
	}

	absDir, err := filepath.Abs(templatesDir)
	if err != nil {
		absDir = templatesDir
	}
	fmt.Println("\nСборка библиотеки завершена!")
	fmt.Printf("Шаблонов записано: %d, пропущено: %d\n", processed, skipped)
	fmt.Printf("Каталог шаблонов: %s\n", absDir)
}
