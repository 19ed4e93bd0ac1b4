// Package ingest parses the line-oriented sensor text format (spec sec. 6)
// into fusion.Event values. It is explicitly a CLI-only, non-core
// component (spec sec. 1's scoping) — the three core subsystems never
// import it. Grounded on cmd/od/load.go's bufio.Scanner line-parsing
// style (comment/blank skipping, per-field strconv parsing, skip-and-warn
// on malformed lines) translated from CSV ephemeris records to the
// simpler whitespace-delimited IMU/ODOM/GNSS record format.
package ingest

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	kitlog "github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"github.com/KaranBalakumar/Imu-GNSS/fusion"
	"github.com/KaranBalakumar/Imu-GNSS/gnssprep"
	"github.com/KaranBalakumar/Imu-GNSS/navstate"
)

// Scan reads r line by line and sends one fusion.Event per accepted
// record on the returned channel, closing it at EOF. Malformed lines are
// logged and skipped (spec sec. 7); Scan itself never returns an error. A
// read error, or a line longer than bufio.Scanner's buffer, ends the scan
// and closes the channel just as EOF does; scanner.Err() is not checked, so
// such an error is not reported.
func Scan(r io.Reader, logger kitlog.Logger) <-chan fusion.Event {
	if logger == nil {
		logger = kitlog.NewNopLogger()
	}
	logger = kitlog.With(logger, "subsys", "ingest")

	out := make(chan fusion.Event, 64)
	go func() {
		defer close(out)
		scanner := bufio.NewScanner(r)
		lineNo := 0
		for scanner.Scan() {
			lineNo++
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			ev, err := parseLine(line)
			if err != nil {
				level.Warn(logger).Log("msg", "skipping malformed line", "line_no", lineNo, "err", err.Error())
				continue
			}
			out <- ev
		}
	}()
	return out
}

func parseLine(line string) (fusion.Event, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return fusion.Event{}, fmt.Errorf("empty record")
	}

	switch fields[0] {
	case "IMU":
		return parseIMU(fields)
	case "ODOM":
		return parseOdom(fields)
	case "GNSS":
		return parseGNSS(fields)
	default:
		return fusion.Event{}, fmt.Errorf("unknown record kind %q", fields[0])
	}
}

func parseIMU(fields []string) (fusion.Event, error) {
	if len(fields) != 8 {
		return fusion.Event{}, fmt.Errorf("IMU record wants 7 fields after the tag, got %d", len(fields)-1)
	}
	vals, err := parseFloats(fields[1:])
	if err != nil {
		return fusion.Event{}, err
	}
	return fusion.Event{Kind: fusion.EventIMU, IMU: navstate.IMUSample{
		T: vals[0],
		W: [3]float64{vals[1], vals[2], vals[3]},
		A: [3]float64{vals[4], vals[5], vals[6]},
	}}, nil
}

func parseOdom(fields []string) (fusion.Event, error) {
	if len(fields) != 4 {
		return fusion.Event{}, fmt.Errorf("ODOM record wants 3 fields after the tag, got %d", len(fields)-1)
	}
	vals, err := parseFloats(fields[1:])
	if err != nil {
		return fusion.Event{}, err
	}
	return fusion.Event{Kind: fusion.EventOdom, Odom: navstate.OdomSample{
		T: vals[0], PulsesLeft: vals[1], PulsesRight: vals[2],
	}}, nil
}

func parseGNSS(fields []string) (fusion.Event, error) {
	if len(fields) != 7 {
		return fusion.Event{}, fmt.Errorf("GNSS record wants 6 fields after the tag, got %d", len(fields)-1)
	}
	vals, err := parseFloats(fields[1:6])
	if err != nil {
		return fusion.Event{}, err
	}
	headingValid := fields[6] == "1"
	return fusion.Event{Kind: fusion.EventGNSS, GNSS: gnssprep.Reading{
		T: vals[0], LatDeg: vals[1], LonDeg: vals[2], Alt: vals[3],
		HeadingDeg: vals[4], HeadingValid: headingValid,
		Status: gnssprep.StatusUnknown,
	}}, nil
}

func parseFloats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d (%q): %w", i, f, err)
		}
		out[i] = v
	}
	return out, nil
}
