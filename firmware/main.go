//go:build tinygo

//go:generate tinygo flash -target=xiao

package main

import (
	"machine"
	"time"

	"tinygo.org/x/drivers/dht"
)

var (
	sensor dht.Device
	uart   = machine.UART0

	lastRead time.Time

	// Serial buffer for reading command lines
	cmdBuffer [CMD_BUFFER_LEN]byte
	cmdPos    int
)

func main() {
	PIN_LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	PIN_LED.Low()

	// Reads happen only on command, never on data access.
	sensor = dht.NewWithPolicy(PIN_DHT, dht.DHT11, dht.UpdatePolicy{
		UpdateTime:          time.Duration(MIN_READ_INTERVAL_MS) * time.Millisecond,
		UpdateAutomatically: false,
	})

	uart.Configure(machine.UARTConfig{
		BaudRate: UART_BAUD_RATE,
	})

	// The sensor needs a full interval after power-up before the first read.
	lastRead = time.Now()

	for {
		processSerial()
		time.Sleep(time.Millisecond)
	}
}

// processSerial reads available bytes and runs complete commands.
// The only command is "M": take one measurement and reply with one line.
func processSerial() {
	for uart.Buffered() > 0 {
		data, err := uart.ReadByte()
		if err != nil {
			break
		}

		if data == '\n' || data == '\r' {
			if cmdPos == 1 && cmdBuffer[0] == 'M' {
				measure()
			} else if cmdPos > 0 {
				replyError("protocol", "unknown command")
			}
			cmdPos = 0
			continue
		}

		if data == ' ' || data == '\t' {
			continue
		}

		if cmdPos < len(cmdBuffer) {
			cmdBuffer[cmdPos] = data
			cmdPos++
		}
	}
}

// measure performs one DHT transaction and replies with
// "R,<half degrees C>,<tenths of percent>" or "E,<kind>,<detail>".
func measure() {
	// Enforce the sensor's minimum interval instead of failing the command.
	if wait := time.Duration(MIN_READ_INTERVAL_MS)*time.Millisecond - time.Since(lastRead); wait >= 0 {
		time.Sleep(wait + time.Millisecond)
	}

	PIN_LED.High()
	err := sensor.ReadMeasurements()
	lastRead = time.Now()
	PIN_LED.Low()

	if err != nil {
		replyError(errorKind(err), err.Error())
		return
	}

	// Driver reports tenths of a degree and tenths of a percent.
	temperature, humidity, err := sensor.Measurements()
	if err != nil {
		replyError(errorKind(err), err.Error())
		return
	}

	print("R,")
	print(halfDegrees(temperature))
	print(",")
	print(humidity)
	print("\n")
}

func replyError(kind, detail string) {
	print("E,")
	print(kind)
	print(",")
	print(detail)
	print("\n")
}

func errorKind(err error) string {
	code, ok := err.(dht.ErrorCode)
	if !ok {
		return "protocol"
	}
	switch code {
	case dht.ChecksumError:
		return "checksum"
	case dht.NoSignalError, dht.NoDataError:
		return "timeout"
	default:
		return "protocol"
	}
}

// halfDegrees converts tenths of a degree to half degrees, rounding to nearest.
func halfDegrees(tenths int16) int16 {
	if tenths < 0 {
		return (tenths*2 - 5) / 10
	}
	return (tenths*2 + 5) / 10
}
