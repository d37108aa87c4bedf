//go:build tinygo

package main

import "machine"

const (
	// MIN_READ_INTERVAL_MS is the DHT11's minimum time between two measurements.
	MIN_READ_INTERVAL_MS = 1000

	// DHT11 data pin (single wire, external 10k pull-up)
	PIN_DHT = machine.D2

	// Status LED, lit while a measurement is in progress
	PIN_LED = machine.LED

	// Serial configuration
	// Replies are at most "E,protocol,cannot update now\n" (~30 bytes) per
	// command, and the host sends at most one command per second.
	UART_BAUD_RATE = 115200

	// Longest accepted command line
	CMD_BUFFER_LEN = 8
)
