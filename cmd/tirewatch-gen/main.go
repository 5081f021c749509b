// Package main provides a CLI tool for generating tirewatch scenario datasets.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"

	"tirewatch/internal/config"
	"tirewatch/internal/report"
	"tirewatch/internal/schema"
	"tirewatch/internal/session"
)

var version = "dev"

// scenarios maps scenario names to the damage they inject. A nil damage
// type means a clean run.
var scenarios = map[string]struct {
	damage      schema.DamageType
	description string
}{
	"normal":   {"", "healthy tire, no damage injected"},
	"wear":     {schema.DamageWear, "gradual tread wear from the onset tick"},
	"sidewall": {schema.DamageSidewall, "sidewall bulge on the sidewall sensor"},
	"tread":    {schema.DamageTread, "tread cut on the first tread sensor"},
	"puncture": {schema.DamagePuncture, "sharp puncture with decaying aftermath"},
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		runScenarioCmd(os.Args[2:])
	case "list":
		runListCmd()
	case "-version", "--version", "-v":
		fmt.Printf("tirewatch-gen %s\n", version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown subcommand: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: tirewatch-gen <command> [flags]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	fmt.Fprintf(os.Stderr, "  run   Run a scenario and write its readings and alerts\n")
	fmt.Fprintf(os.Stderr, "  list  List available scenarios\n\n")
	fmt.Fprintf(os.Stderr, "Flags:\n")
	fmt.Fprintf(os.Stderr, "  -version  Show version and exit\n")
}

func runListCmd() {
	names := make([]string, 0, len(scenarios))
	for name := range scenarios {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Println("Available scenarios:")
	for _, name := range names {
		fmt.Printf("  %-10s %s\n", name, scenarios[name].description)
	}
}

func runScenarioCmd(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	scenario := fs.String("scenario", "normal", "Scenario to run")
	ticks := fs.Int("ticks", 300, "Number of ticks to simulate")
	onset := fs.Int("onset", 0, "Damage onset tick (default: ticks/4)")
	seed := fs.Int64("seed", 42, "RNG seed")
	out := fs.String("out", "", "Output CSV path for readings (default: <scenario>.csv)")
	reportOut := fs.String("report", "", "Optional report CSV path for alerts")
	fs.Parse(args)

	spec, ok := scenarios[*scenario]
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: unknown scenario %q (see tirewatch-gen list)\n", *scenario)
		os.Exit(1)
	}
	if *ticks <= 0 {
		fmt.Fprintf(os.Stderr, "Error: ticks must be positive\n")
		os.Exit(1)
	}

	os.Exit(runScenario(*scenario, spec.damage, *ticks, *onset, *seed, *out, *reportOut))
}

func runScenario(name string, damage schema.DamageType, ticks, onset int, seed int64, out, reportOut string) int {
	cfg := config.DefaultConfig()
	cfg.Simulation.Seed = seed

	sess, err := session.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if damage != "" {
		if onset <= 0 {
			onset = ticks / 4
		}
		ev, err := sess.InjectDamage(schema.DamageEvent{Type: damage, OnsetTick: onset})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: inject damage: %v\n", err)
			return 1
		}
		fmt.Printf("Injected %s damage on %s at tick %d\n", ev.Type, ev.SensorID, ev.OnsetTick)
	}

	if out == "" {
		out = name + ".csv"
	}

	f, err := os.Create(out)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer f.Close()

	w := csv.NewWriter(f)
	w.Write([]string{"tick", "sensor_id", "raw_impedance", "temperature", "ratio", "suspect"})

	for i := 0; i < ticks; i++ {
		snap := sess.Tick()

		raw := make(map[string]float64, len(snap.Raw))
		for _, r := range snap.Raw {
			raw[r.SensorID] = r.Impedance
		}
		for _, reading := range snap.Readings {
			w.Write([]string{
				strconv.Itoa(reading.Tick),
				reading.SensorID,
				strconv.FormatFloat(raw[reading.SensorID], 'f', 3, 64),
				strconv.FormatFloat(reading.Temperature, 'f', 2, 64),
				strconv.FormatFloat(reading.Ratio, 'f', 4, 64),
				strconv.FormatBool(reading.Suspect),
			})
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: writing %s: %v\n", out, err)
		return 1
	}

	counts := sess.Counts()
	fmt.Printf("Scenario %s: %d ticks, %d readings written to %s\n", name, ticks, ticks*len(cfg.Sensors), out)
	fmt.Printf("Alerts emitted: %d\n", counts.Total)
	if worst, ok := sess.WorstSeverity(); ok {
		fmt.Printf("Worst severity: %s\n", worst)
	}

	if reportOut != "" {
		rf, err := os.Create(reportOut)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		defer rf.Close()

		rep := report.Build(sess)
		if err := rep.WriteCSV(rf); err != nil {
			fmt.Fprintf(os.Stderr, "Error: writing report: %v\n", err)
			return 1
		}
		fmt.Printf("Alert report written to %s\n", reportOut)
	}

	return 0
}
