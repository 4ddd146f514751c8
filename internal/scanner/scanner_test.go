package scanner

import (
	"errors"
	"image"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"shmon/internal/capture"
	"shmon/internal/config"
	"shmon/internal/imageutils"
	"shmon/internal/logger"
	"shmon/internal/price"
	"shmon/internal/recognizer"
)

func newTestLogger(t *testing.T) *logger.LoggerManager {
	t.Helper()
	log, err := logger.NewLoggerManager(filepath.Join(t.TempDir(), "test.log"))
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func testConfig() *config.Config {
	return &config.Config{
		Detector: config.Detector{
			DarkThreshold:    50,
			MinRegionWidth:   400,
			MinRegionHeight:  400,
			AspectMin:        0.8,
			AspectMax:        1.5,
			SlotSize:         63,
			EmptyMeanLow:     40,
			EmptyMeanHigh:    80,
			EmptyVarianceMax: 100,
		},
		Recognizer: config.Recognizer{ConfidenceThreshold: 0.8},
		Price:      config.Price{CacheHours: 6},
		Scanner: config.Scanner{
			ScanInterval:       0.02,
			ReportPollInterval: 0.01,
			ReportBuffer:       8,
			ShutdownTimeout:    0.3,
		},
	}
}

type fakeBackend struct {
	frame *image.RGBA
	err   error
	block chan struct{} // не nil: Capture виснет до закрытия канала

	mu     sync.Mutex
	calls  int
	closed bool
}

func (f *fakeBackend) Capture(region config.Rect) (*capture.Frame, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return nil, f.err
	}
	return &capture.Frame{
		Img:    f.frame,
		Top:    region.Y,
		Left:   region.X,
		Width:  f.frame.Bounds().Dx(),
		Height: f.frame.Bounds().Dy(),
	}, nil
}

func (f *fakeBackend) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func stubBackend(t *testing.T, backend captureBackend) {
	t.Helper()
	orig := newCaptureBackend
	newCaptureBackend = func(cfg *config.Config) (captureBackend, config.Rect) {
		return backend, config.Rect{Width: 500, Height: 500}
	}
	t.Cleanup(func() { newCaptureBackend = orig })
}

func fill(img *image.RGBA, rect image.Rectangle, v uint8) {
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			off := img.PixOffset(x, y)
			img.Pix[off], img.Pix[off+1], img.Pix[off+2], img.Pix[off+3] = v, v, v, 255
		}
	}
}

// stripes63 рисует ячейку с горизонтальными полосами: контрастный предмет,
// который детектор считает занятым, а распознаватель узнает по шаблону
func stripes63() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 63, 63))
	for y := 0; y < 63; y++ {
		v := uint8(40)
		if (y/16)%2 == 1 {
			v = 220
		}
		fill(img, image.Rect(0, y, 63, y+1), v)
	}
	return img
}

// lightFrame — светлый кадр без инвентаря
func lightFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 500, 500))
	fill(img, img.Bounds(), 200)
	return img
}

// inventoryFrame — кадр с темным инвентарем 441×441 (сетка 7×7)
// и одним занятым слотом в позиции (1,2)
func inventoryFrame(t *testing.T) *image.RGBA {
	t.Helper()
	img := lightFrame()
	fill(img, image.Rect(10, 10, 451, 451), 45)

	item := stripes63()
	for y := 0; y < 63; y++ {
		for x := 0; x < 63; x++ {
			img.Set(136+x, 73+y, item.At(x, y))
		}
	}
	return img
}

// testLibraryDir пишет шаблон "Graphics Card" на диск и загружает библиотеку
func testLibrary(t *testing.T) *recognizer.Library {
	t.Helper()
	dir := t.TempDir()
	if err := imageutils.SavePNG(stripes63(), filepath.Join(dir, "Graphics Card.png")); err != nil {
		t.Fatalf("save template: %v", err)
	}
	library, err := recognizer.LoadLibrary(dir)
	if err != nil {
		t.Fatalf("LoadLibrary() error = %v", err)
	}
	return library
}

func newTestManager(t *testing.T, cfg *config.Config) *ScanManager {
	t.Helper()
	log := newTestLogger(t)
	tracker := price.NewPriceTracker(cfg.Price, nil, log)
	return NewScanManager(cfg, testLibrary(t), tracker, nil, nil, log)
}

func waitForState(t *testing.T, sm *ScanManager, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if sm.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", sm.State(), want)
}

func nextReport(t *testing.T, sm *ScanManager) Report {
	t.Helper()
	select {
	case report := <-sm.Reports():
		return report
	case <-time.After(2 * time.Second):
		t.Fatal("no report within 2s")
		return Report{}
	}
}

func TestScanCycleRecognizesAndPricesItem(t *testing.T) {
	cfg := testConfig()
	stubBackend(t, &fakeBackend{frame: inventoryFrame(t)})
	sm := newTestManager(t, cfg)

	if !sm.StartScanning() {
		t.Fatal("StartScanning() = false, want true")
	}
	defer func() {
		sm.StopScanning()
		waitForState(t, sm, StateIdle)
	}()

	report := nextReport(t, sm)
	if report.Err != nil {
		t.Fatalf("report.Err = %v, want nil", report.Err)
	}
	if !report.InventoryFound {
		t.Fatal("InventoryFound = false, want true")
	}
	if len(report.Items) != 1 {
		t.Fatalf("len(Items) = %d, want 1", len(report.Items))
	}

	item := report.Items[0]
	if item.Name != "Graphics Card" {
		t.Errorf("Name = %q, want Graphics Card", item.Name)
	}
	if item.Row != 1 || item.Col != 2 {
		t.Errorf("position = (%d,%d), want (1,2)", item.Row, item.Col)
	}
	if item.Score < 0.99 {
		t.Errorf("Score = %v, want >= 0.99 for identical template", item.Score)
	}
	// Каталога нет, цена должна прийти из резервной таблицы
	if !item.Priced || item.PriceRUB != 285000 || item.Trader != "Mechanic" {
		t.Errorf("price = %+v, want 285000/Mechanic from fallback", item)
	}
	if report.TotalValue != 285000 {
		t.Errorf("TotalValue = %d, want 285000", report.TotalValue)
	}
}

func TestEmptyScreenProducesEmptyReportAndKeepsRunning(t *testing.T) {
	cfg := testConfig()
	stubBackend(t, &fakeBackend{frame: lightFrame()})
	sm := newTestManager(t, cfg)

	sm.StartScanning()
	defer func() {
		sm.StopScanning()
		waitForState(t, sm, StateIdle)
	}()

	for i := 0; i < 3; i++ {
		report := nextReport(t, sm)
		if report.Err != nil {
			t.Fatalf("report %d Err = %v, want nil", i, report.Err)
		}
		if report.InventoryFound {
			t.Errorf("report %d InventoryFound = true, want false", i)
		}
		if len(report.Items) != 0 {
			t.Errorf("report %d has %d items, want 0", i, len(report.Items))
		}
	}

	if sm.State() != StateRunning {
		t.Errorf("State() = %v, want Running (empty screen is not an error)", sm.State())
	}
}

func TestCaptureFailuresNeverStopScanning(t *testing.T) {
	cfg := testConfig()
	stubBackend(t, &fakeBackend{err: errors.New("backend lost")})
	sm := newTestManager(t, cfg)

	sm.StartScanning()
	defer func() {
		sm.StopScanning()
		waitForState(t, sm, StateIdle)
	}()

	for i := 0; i < 5; i++ {
		report := nextReport(t, sm)
		if report.Err == nil {
			t.Fatalf("report %d Err = nil, want capture error marker", i)
		}
		if report.InventoryFound || len(report.Items) != 0 {
			t.Errorf("report %d = %+v, want empty failed report", i, report)
		}
	}

	if sm.State() != StateRunning {
		t.Errorf("State() = %v, want Running after 5 failed cycles", sm.State())
	}
}

func TestStopScanningHaltsReports(t *testing.T) {
	cfg := testConfig()
	backend := &fakeBackend{frame: lightFrame()}
	stubBackend(t, backend)
	sm := newTestManager(t, cfg)

	sm.StartScanning()
	nextReport(t, sm)

	sm.StopScanning()
	waitForState(t, sm, StateIdle)

	// Дочитываем то, что цикл успел положить до остановки
	for {
		select {
		case <-sm.Reports():
			continue
		default:
		}
		break
	}

	time.Sleep(100 * time.Millisecond)
	select {
	case report := <-sm.Reports():
		t.Errorf("got report %+v after stop, want none", report)
	default:
	}

	backend.mu.Lock()
	closed := backend.closed
	backend.mu.Unlock()
	if !closed {
		t.Error("capture backend not closed after loop exit")
	}
}

func TestTerminateJoinIsBounded(t *testing.T) {
	cfg := testConfig()
	block := make(chan struct{})
	t.Cleanup(func() { close(block) })
	stubBackend(t, &fakeBackend{frame: lightFrame(), block: block})
	sm := newTestManager(t, cfg)

	sm.StartScanning()
	time.Sleep(50 * time.Millisecond) // цикл должен увязнуть в захвате

	start := time.Now()
	sm.Terminate()
	elapsed := time.Since(start)

	if elapsed > 1500*time.Millisecond {
		t.Fatalf("Terminate() took %v, want bounded by shutdown timeout", elapsed)
	}
	if sm.State() != StateIdle {
		t.Errorf("State() = %v, want Idle after terminate", sm.State())
	}
}

func TestStartScanningTwiceRejected(t *testing.T) {
	cfg := testConfig()
	stubBackend(t, &fakeBackend{frame: lightFrame()})
	sm := newTestManager(t, cfg)

	if !sm.StartScanning() {
		t.Fatal("first StartScanning() = false, want true")
	}
	if sm.StartScanning() {
		t.Error("second StartScanning() = true, want false while running")
	}

	sm.StopScanning()
	waitForState(t, sm, StateIdle)
}

func TestRestartAfterStop(t *testing.T) {
	cfg := testConfig()
	stubBackend(t, &fakeBackend{frame: lightFrame()})
	sm := newTestManager(t, cfg)

	sm.StartScanning()
	nextReport(t, sm)
	sm.StopScanning()
	waitForState(t, sm, StateIdle)

	if !sm.StartScanning() {
		t.Fatal("restart StartScanning() = false, want true")
	}
	nextReport(t, sm)
	sm.StopScanning()
	waitForState(t, sm, StateIdle)
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	cfg := testConfig()
	cfg.Scanner.ReportBuffer = 1
	stubBackend(t, &fakeBackend{frame: lightFrame()})
	sm := newTestManager(t, cfg)

	sm.publish(Report{TotalValue: 1})
	sm.publish(Report{TotalValue: 2}) // не должен блокировать

	report := <-sm.Reports()
	if report.TotalValue != 1 {
		t.Errorf("buffered report TotalValue = %d, want 1 (oldest kept)", report.TotalValue)
	}
	select {
	case extra := <-sm.Reports():
		t.Errorf("unexpected extra report %+v", extra)
	default:
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "Idle"},
		{StateRunning, "Running"},
		{StateStopping, "Stopping"},
		{State(42), "State(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", int32(tt.state), got, tt.want)
		}
	}
}
