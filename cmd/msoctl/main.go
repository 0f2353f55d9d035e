// msoctl drives an instrument over USB with the single-byte opcode protocol.
package main

import (
	"encoding/binary"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/google/gousb"

	"github.com/mso/pkg/hostlink"
	"github.com/mso/pkg/settings"
)

var simpleOps = map[string]byte{
	"save":         hostlink.OpSave,
	"stop":         hostlink.OpStop,
	"start":        hostlink.OpStart,
	"force":        hostlink.OpForceTrigger,
	"autosetup":    hostlink.OpAutoSetup,
	"defaults":     hostlink.OpDefaults,
	"autosend-on":  hostlink.OpAutosendOn,
	"autosend-off": hostlink.OpAutosendOff,
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s <command> [args]\n", os.Args[0])
	fmt.Fprintln(os.Stderr, "  version")
	fmt.Fprintln(os.Stderr, "  settings              dump the settings snapshot")
	fmt.Fprintln(os.Stderr, "  write <index> <value> write one register")
	fmt.Fprintln(os.Stderr, "  awg <frequency*100>   set the AWG frequency")
	fmt.Fprintln(os.Stderr, "  post <count>          set the post-trigger count")
	fmt.Fprintln(os.Stderr, "  meter                 read the meter")
	fmt.Fprintln(os.Stderr, "  save|stop|start|force|autosetup|defaults|autosend-on|autosend-off")
	os.Exit(2)
}

func parseUint(s string, bits int) uint64 {
	v, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		log.Fatalf("Invalid number %q: %v", s, err)
	}
	return v
}

func main() {
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	ctx := gousb.NewContext()
	defer ctx.Close()

	c, err := hostlink.OpenUSB(ctx)
	if err != nil {
		log.Fatalf("[USB] %v", err)
	}
	defer c.Close()
	log.Printf("[USB] %s %s", c.Product, c.Serial)

	switch cmd := args[0]; cmd {
	case "version":
		v, err := c.Version()
		if err != nil {
			log.Fatalf("[USB] %v", err)
		}
		fmt.Println(v)

	case "settings":
		s, err := c.Settings()
		if err != nil {
			log.Fatalf("[USB] %v", err)
		}
		for r := settings.Register(0); r < settings.RegisterCount; r++ {
			v, _ := s.Register(r)
			fmt.Printf("%2d %-12s %3d\n", r, r, v)
		}

	case "write":
		if len(args) != 3 {
			usage()
		}
		r := settings.Register(parseUint(args[1], 8))
		if err := c.WriteRegister(r, uint8(parseUint(args[2], 8))); err != nil {
			log.Fatalf("[USB] %v", err)
		}

	case "awg":
		if len(args) != 2 {
			usage()
		}
		var p [4]byte
		binary.LittleEndian.PutUint32(p[:], uint32(parseUint(args[1], 32)))
		if _, err := c.Do(hostlink.OpAWGFrequency, p[:]); err != nil {
			log.Fatalf("[USB] %v", err)
		}

	case "post":
		if len(args) != 2 {
			usage()
		}
		var p [2]byte
		binary.LittleEndian.PutUint16(p[:], uint16(parseUint(args[1], 16)))
		if _, err := c.Do(hostlink.OpPostTrigger, p[:]); err != nil {
			log.Fatalf("[USB] %v", err)
		}

	case "meter":
		s, err := c.Settings()
		if err != nil {
			log.Fatalf("[USB] %v", err)
		}
		raw, err := c.Meter()
		if err != nil {
			log.Fatalf("[USB] %v", err)
		}
		m, err := hostlink.DecodeMeter(s.Status.Meter(), raw)
		if err != nil {
			log.Fatalf("[USB] %v", err)
		}
		switch m.Mode {
		case settings.MeterFrequency:
			fmt.Printf("frequency %d\n", m.Frequency)
		case settings.MeterCounter:
			fmt.Printf("count %d\n", m.Count)
		case settings.MeterDC:
			fmt.Printf("dc %d %d\n", m.DC[0], m.DC[1])
		case settings.MeterPeakToPeak:
			fmt.Printf("vpp %d %d\n", m.VPP[0], m.VPP[1])
		}

	default:
		op, ok := simpleOps[cmd]
		if !ok {
			usage()
		}
		if _, err := c.Do(op, nil); err != nil {
			log.Fatalf("[USB] %v", err)
		}
	}
}
