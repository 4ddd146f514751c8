package arduino

import (
	"fmt"

	"github.com/tarm/serial"
)

// ProcessAndWait выполняет отправку сообщения и ожидание подтверждения от Arduino
func ProcessAndWait(
	send func(*serial.Port) error,
	waitForResponse func(string, *serial.Port) (string, error),
	port *serial.Port) error {

	if err := send(port); err != nil {
		return err
	}

	// Панель подтверждает каждое сообщение строкой "received"
	_, err := waitForResponse("received", port)
	if err != nil {
		return fmt.Errorf("error waiting for Arduino response: %v", err)
	}
	return nil
}
