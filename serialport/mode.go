package serialport

import (
	"fmt"
	"strconv"
	"strings"

	"go.bug.st/serial"
)

// DefaultMode is the line setting virtually every LIS-attached analyzer
// ships with.
const DefaultMode = "9600,8,N,1"

func defaultMode() *serial.Mode {
	return &serial.Mode{
		BaudRate: 9600,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
}

// ParseMode parses a "baud,databits,parity,stopbits" line setting such as
// "9600,8,N,1" or "19200,7,E,2". Trailing parts may be omitted and default
// to 8 data bits, no parity, one stop bit. Parity letters are N, O, E, M,
// and S; stop bits are 1, 1.5, or 2.
func ParseMode(s string) (*serial.Mode, error) {
	parts := strings.Split(s, ",")
	if len(parts) > 4 {
		return nil, fmt.Errorf("serialport: invalid mode %q: expected baud,databits,parity,stopbits", s)
	}

	mode := defaultMode()

	baud, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || baud <= 0 {
		return nil, fmt.Errorf("serialport: invalid baud rate %q", strings.TrimSpace(parts[0]))
	}
	mode.BaudRate = baud

	if len(parts) > 1 {
		bits, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil || bits < 5 || bits > 8 {
			return nil, fmt.Errorf("serialport: invalid data bits %q", strings.TrimSpace(parts[1]))
		}
		mode.DataBits = bits
	}

	if len(parts) > 2 {
		parity, err := parseParity(strings.TrimSpace(parts[2]))
		if err != nil {
			return nil, err
		}
		mode.Parity = parity
	}

	if len(parts) > 3 {
		stop, err := parseStopBits(strings.TrimSpace(parts[3]))
		if err != nil {
			return nil, err
		}
		mode.StopBits = stop
	}

	return mode, nil
}

func parseParity(s string) (serial.Parity, error) {
	switch strings.ToUpper(s) {
	case "N":
		return serial.NoParity, nil
	case "O":
		return serial.OddParity, nil
	case "E":
		return serial.EvenParity, nil
	case "M":
		return serial.MarkParity, nil
	case "S":
		return serial.SpaceParity, nil
	default:
		return serial.NoParity, fmt.Errorf("serialport: invalid parity %q", s)
	}
}

func parseStopBits(s string) (serial.StopBits, error) {
	switch s {
	case "1":
		return serial.OneStopBit, nil
	case "1.5":
		return serial.OnePointFiveStopBits, nil
	case "2":
		return serial.TwoStopBits, nil
	default:
		return serial.OneStopBit, fmt.Errorf("serialport: invalid stop bits %q", s)
	}
}
