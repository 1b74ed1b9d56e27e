// Command blockpairs prepares on-time-performance training data from the
// trips report: it imports the raw report, computes variability cells,
// links block pairs, cuts block sequences, fits the feature encoding, and
// summarizes model predictions.
package main

import (
	"fmt"
	"log"
	"os"
)

const defaultDBFile = "trips_report.db"

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "migrate":
		err = cmdMigrate(args)
	case "import":
		err = cmdImport(args)
	case "stats":
		err = cmdStats(args)
	case "pairs":
		err = cmdPairs(args)
	case "sequences":
		err = cmdSequences(args)
	case "encode":
		err = cmdEncode(args)
	case "apply":
		err = cmdApply(args)
	case "report":
		err = cmdReport(args)
	case "runs":
		err = cmdRuns(args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `usage: blockpairs <command> [flags]

commands:
  import     load a raw trips-report CSV into the database
  stats      compute variability cells over the trip history
  pairs      build adjacent block-pair feature rows
  sequences  build fixed-length block sequence windows
  encode     fit the feature encoding and write model artifacts
  apply      encode feature rows with fitted artifacts
  report     summarize model predictions against observed pairs
  migrate    manage the database schema (up, down, version, force N)
  runs       list recent pipeline runs

run "blockpairs <command> -h" for command flags
`)
}
