package compass

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"go.bug.st/serial"

	"github.com/shaunagostinho/field-compass/internal/heading"
)

// NMEAConfig holds configuration for a serial NMEA compass.
type NMEAConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NMEAProvider reads HDG (magnetic) and HDT (true) heading sentences from
// an electronic compass such as a fluxgate or HMC5883-based module.
type NMEAProvider struct {
	portPath string
	baudRate int

	mu      sync.Mutex
	port    serial.Port
	rd      io.Reader
	scanner *bufio.Scanner
}

// NewNMEA creates an unconnected provider. BaudRate defaults to 4800.
func NewNMEA(cfg NMEAConfig) *NMEAProvider {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 4800 // NMEA 0183 heading sensors default
	}
	return &NMEAProvider{portPath: cfg.PortPath, baudRate: cfg.BaudRate}
}

func (n *NMEAProvider) Name() string { return "NMEA compass" }

// Connect opens the serial port.
func (n *NMEAProvider) Connect() error {
	port, err := serial.Open(n.portPath, &serial.Mode{
		BaudRate: n.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("compass: failed to open %s: %w", n.portPath, err)
	}
	port.SetReadTimeout(100 * time.Millisecond)

	n.mu.Lock()
	n.port = port
	n.attach(port)
	n.mu.Unlock()
	log.Printf("[compass] connected to %s at %d baud", n.portPath, n.baudRate)
	return nil
}

// Close releases the serial port. It is safe to call more than once.
func (n *NMEAProvider) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.port == nil {
		return nil
	}
	err := n.port.Close()
	n.port = nil
	n.rd = nil
	n.scanner = nil
	return err
}

// Read scans up to 10 lines for a heading sentence.
func (n *NMEAProvider) Read() (heading.Sample, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.scanner == nil {
		return heading.Sample{}, ErrNotConnected
	}
	for i := 0; i < 10; i++ {
		if !n.scanner.Scan() {
			if err := n.scanner.Err(); err != nil && !errors.Is(err, io.ErrNoProgress) {
				return heading.Sample{}, fmt.Errorf("compass: read %s: %w", n.portPath, err)
			}
			// Read timeouts stall the scanner for good; start over.
			n.attach(n.rd)
			break
		}
		if s, ok := parseHeading(n.scanner.Text()); ok {
			return s, nil
		}
	}
	return heading.Sample{}, ErrNoSample
}

// attach points the line scanner at r. Callers hold n.mu.
func (n *NMEAProvider) attach(r io.Reader) {
	n.rd = r
	n.scanner = bufio.NewScanner(r)
}

// parseHeading turns an HDG or HDT sentence into an absolute sample.
// HDG deviation is applied so the result is a magnetic heading; variation
// is left to the filter's configured declination.
func parseHeading(line string) (heading.Sample, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return heading.Sample{}, false
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		return heading.Sample{}, false
	}
	switch m := sentence.(type) {
	case nmea.HDG:
		h := m.Heading
		switch m.DeviationDirection {
		case "E":
			h += m.Deviation
		case "W":
			h -= m.Deviation
		}
		return heading.NewAbsolute(h), true
	case nmea.HDT:
		return heading.NewAbsolute(m.Heading), true
	}
	return heading.Sample{}, false
}
