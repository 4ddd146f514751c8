package arduino

import (
	"bytes"
	"fmt"

	"github.com/tarm/serial"
)

func InitializePort(name string, baud int) (*serial.Port, error) {
	port, err := serial.OpenPort(&serial.Config{
		Name:     name,
		Baud:     baud,
		Parity:   serial.ParityNone,
		StopBits: serial.Stop1,
	})
	return port, err
}

// SendScanStateToArduino передает панели состояние сканирования: scan:1 или scan:0
func SendScanStateToArduino(port *serial.Port, active bool) error {
	state := 0
	if active {
		state = 1
	}
	message := fmt.Sprintf("scan:%d\n", state)
	_, err := port.Write([]byte(message))
	if err != nil {
		return fmt.Errorf("error writing to Arduino: %v", err)
	}
	return nil
}

// SendCycleSummaryToArduino передает панели итог цикла: items:КОЛИЧЕСТВО,СУММА
func SendCycleSummaryToArduino(port *serial.Port, count int, totalValue int64) error {
	message := fmt.Sprintf("items:%d,%d\n", count, totalValue)
	_, err := port.Write([]byte(message))
	if err != nil {
		return fmt.Errorf("error writing to Arduino: %v", err)
	}
	return nil
}

func WaitForArduinoResponse(port *serial.Port, expectedResponse string) (string, error) {
	var response string
	for {
		buf := make([]byte, 128)
		n, err := port.Read(buf)
		if err != nil {
			return "", fmt.Errorf("error reading from Arduino: %v", err)
		}

		response += string(buf[:n])

		if len(response) > 0 && response[len(response)-1] == '\n' {
			response = response[:len(response)-1]
			response = string(bytes.TrimSpace([]byte(response)))

			if response == expectedResponse {
				return response, nil
			}
			return "", fmt.Errorf("unexpected response: '%s'", response)
		}
	}
}
