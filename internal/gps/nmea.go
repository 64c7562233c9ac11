package gps

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	nmea "github.com/adrianmo/go-nmea"
	"go.bug.st/serial"
)

// uere is the user equivalent range error used to turn HDOP into an
// approximate horizontal accuracy in meters.
const uere = 5.0

// NMEAProvider reads standard NMEA 0183 sentences from a UART GPS.
// Compatible with u-blox NEO-M8N and any standard NMEA GPS.
type NMEAProvider struct {
	portPath string
	baudRate int
	port     serial.Port
	rd       io.Reader
	scanner  *bufio.Scanner
	mu       sync.Mutex
	last     *Data
}

// NMEAConfig holds configuration for the NMEA GPS provider.
type NMEAConfig struct {
	PortPath string `yaml:"port_path" json:"portPath"`
	BaudRate int    `yaml:"baud_rate" json:"baudRate"`
}

// NewNMEA creates a new NMEA GPS provider.
func NewNMEA(cfg NMEAConfig) *NMEAProvider {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 9600 // Standard NMEA default
	}
	return &NMEAProvider{
		portPath: cfg.PortPath,
		baudRate: cfg.BaudRate,
		last:     &Data{},
	}
}

func (n *NMEAProvider) Name() string { return "NMEA GPS" }

// Connect opens the serial port.
func (n *NMEAProvider) Connect() error {
	mode := &serial.Mode{
		BaudRate: n.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(n.portPath, mode)
	if err != nil {
		return fmt.Errorf("gps: failed to open %s: %w", n.portPath, err)
	}
	port.SetReadTimeout(200 * time.Millisecond)

	n.mu.Lock()
	n.port = port
	n.attach(port)
	n.mu.Unlock()
	log.Printf("[gps] connected to %s at %d baud", n.portPath, n.baudRate)
	return nil
}

// Close releases the serial port. It is safe to call more than once.
func (n *NMEAProvider) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.port != nil {
		err := n.port.Close()
		n.port = nil
		n.rd = nil
		n.scanner = nil
		return err
	}
	return nil
}

// Read reads NMEA sentences until we have a complete fix update, or timeout.
// A receiver that sent nothing in this window yields ErrNoData along with
// the last known fix.
func (n *NMEAProvider) Read() (*Data, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.scanner == nil {
		return n.snapshot(), ErrNotConnected
	}

	// Read up to 20 lines to find RMC + GGA
	lines := 0
	gotRMC := false
	gotGGA := false
	for i := 0; i < 20 && !(gotRMC && gotGGA); i++ {
		if !n.scanner.Scan() {
			if err := n.scanner.Err(); err != nil && !errors.Is(err, io.ErrNoProgress) {
				return n.snapshot(), fmt.Errorf("gps: read %s: %w", n.portPath, err)
			}
			// Serial read timeouts come back as (0, nil); after enough of
			// them the scanner gives up for good, so start a fresh one.
			n.attach(n.rd)
			break
		}
		lines++
		switch applySentence(n.last, n.scanner.Text()) {
		case nmea.TypeRMC:
			gotRMC = true
		case nmea.TypeGGA:
			gotGGA = true
		}
	}

	if lines == 0 {
		return n.snapshot(), ErrNoData
	}
	return n.snapshot(), nil
}

// attach points the line scanner at r. Callers hold n.mu.
func (n *NMEAProvider) attach(r io.Reader) {
	n.rd = r
	n.scanner = bufio.NewScanner(r)
}

func (n *NMEAProvider) snapshot() *Data {
	cp := *n.last
	return &cp
}

// applySentence parses one NMEA line into d and returns the sentence type
// it consumed, or "" when the line was ignored (bad checksum, unsupported).
func applySentence(d *Data, line string) string {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "$") {
		return ""
	}
	sentence, err := nmea.Parse(line)
	if err != nil {
		// noisy GPS or partial sentences
		return ""
	}

	switch m := sentence.(type) {
	case nmea.RMC:
		d.Valid = m.Validity == nmea.ValidRMC
		if m.Date.Valid && m.Time.Valid {
			d.Time = time.Date(2000+m.Date.YY, time.Month(m.Date.MM), m.Date.DD,
				m.Time.Hour, m.Time.Minute, m.Time.Second, m.Time.Millisecond*int(time.Millisecond), time.UTC)
		}
		if d.Valid {
			d.Latitude = m.Latitude
			d.Longitude = m.Longitude
			d.Speed = m.Speed * 1.852 // Knots to km/h
			d.Course = m.Course
		}
		return nmea.TypeRMC

	case nmea.GGA:
		if q, err := strconv.Atoi(m.FixQuality); err == nil {
			d.FixQuality = q
		}
		d.Satellites = int(m.NumSatellites)
		d.HDOP = m.HDOP
		d.Accuracy = m.HDOP * uere
		if d.FixQuality > 0 {
			d.Altitude = m.Altitude
		} else {
			d.Valid = false
		}
		return nmea.TypeGGA
	}
	return ""
}
