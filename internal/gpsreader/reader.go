package gpsreader

import (
	"bufio"
	"context"
	"sync"

	"go.bug.st/serial"

	"github.com/dashcamv2/control-go/internal/dashcamerrors"
	"github.com/dashcamv2/control-go/internal/logging"
)

// defaultBaudRate matches common consumer NMEA-0183 GPS receivers.
const defaultBaudRate = 9600

// Reader owns the GPS serial/USB channel, parses NMEA-0183 sentences on a
// background goroutine, and caches the most recent fix for lock-protected,
// non-blocking reads. It is the sole owner of the port: only Stop
// releases it.
type Reader struct {
	port   serial.Port
	logger *logging.Logger

	mu        sync.RWMutex
	hasGGA    bool
	hasRMC    bool
	latestGGA parsedGGA
	latestRMC parsedRMC

	cancel context.CancelFunc
	done   chan struct{}
}

// Open opens portName at defaultBaudRate (8N1) and starts the background
// read loop under ctx. Cancelling ctx stops the loop; calling Stop stops
// the loop and releases the port.
func Open(ctx context.Context, portName string) (*Reader, error) {
	mode := &serial.Mode{
		BaudRate: defaultBaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, &dashcamerrors.DeviceUnavailable{Device: portName, Err: err}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r := &Reader{
		port:   port,
		logger: logging.GetLogger("gpsreader"),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go r.run(loopCtx)
	return r, nil
}

// run scans lines from the serial port and folds recognized sentences
// into the cached fix until ctx is cancelled or the port returns EOF.
func (r *Reader) run(ctx context.Context) {
	defer close(r.done)
	scanner := bufio.NewScanner(r.port)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				r.logger.WithError(err).Warn("GPS serial read failed")
			}
			return
		}
		r.ingest(scanner.Text())
	}
}

func (r *Reader) ingest(line string) {
	sentenceType, fields, ok := splitSentence(line)
	if !ok {
		return
	}

	switch sentenceType {
	case "GGA":
		gga, ok := parseGGA(fields)
		if !ok {
			return
		}
		r.mu.Lock()
		r.latestGGA = gga
		r.hasGGA = true
		r.mu.Unlock()
	case "RMC":
		rmc, ok := parseRMC(fields)
		if !ok || !rmc.valid {
			return
		}
		r.mu.Lock()
		r.latestRMC = rmc
		r.hasRMC = true
		r.mu.Unlock()
	}
}

// Read returns the most recent fix, or nil if no valid fix has arrived
// yet. It is a cheap snapshot over the cached state and never blocks.
func (r *Reader) Read() *Fix {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.hasGGA || r.latestGGA.fixQuality < 1 {
		return nil
	}

	fix := &Fix{
		Latitude:   r.latestGGA.latitude,
		Longitude:  r.latestGGA.longitude,
		FixQuality: r.latestGGA.fixQuality,
	}
	altitude := r.latestGGA.altitude
	fix.Altitude = &altitude
	satellites := r.latestGGA.satellites
	fix.Satellites = &satellites

	if r.hasRMC {
		// RMC's position is generally the most recently reported fix; prefer
		// it over GGA's when both are present, since GGA and RMC sentences
		// in the same cycle share a timestamp but RMC may arrive later.
		fix.Latitude = r.latestRMC.latitude
		fix.Longitude = r.latestRMC.longitude
		speed := knotsToMPS(r.latestRMC.speedKnots)
		fix.Speed = &speed
		heading := r.latestRMC.heading
		fix.Heading = &heading
	}

	return fix
}

// Stop implements shutdown.Stoppable: it cancels the read loop and closes
// the serial port, waiting for the read goroutine to exit or ctx to
// expire, whichever comes first.
func (r *Reader) Stop(ctx context.Context) error {
	r.cancel()
	select {
	case <-r.done:
	case <-ctx.Done():
	}
	return r.port.Close()
}
