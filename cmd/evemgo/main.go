package main

import (
	"flag"
	"fmt"
	"log"
)

const usage = `usage: evemgo [-db=<uri>] [-name=<database>] <command> [<args>]

Configuration flags:

   -db         The mongodb connection string. The environment variable EVEMGO_DB is used
               if this flag is not set. Without either a seeded in-memory store is used.

   -name       The database name, defaults to evemgo.

Schema commands
   resources   List the registered resource names
   schema      Print the generated validation schema for one or all resources
   settings    Print the effective settings for one or all resources

Other commands
   repl        Runs a read-eval-print-loop for resource queries
   help        Display help message
`

var (
	dbFlag   = flag.String("db", "", "mongodb connection string")
	nameFlag = flag.String("name", "evemgo", "database name")
)

func main() {
	flag.Parse()
	log.SetFlags(0)
	args := flag.Args()
	if len(args) == 0 {
		log.Printf("missing command\n\n")
		fmt.Print(usage)
		return
	}
	args = args[1:]
	var err error
	switch cmd := flag.Arg(0); cmd {
	case "resources":
		err = resources(args)
	case "schema":
		err = schema(args)
	case "settings":
		err = settings(args)
	case "repl":
		err = repl(args)
	case "help":
		fmt.Print(usage)
	default:
		log.Printf("unknown command: %s\n\n", cmd)
		fmt.Print(usage)
	}
	if err != nil {
		log.Fatalf("%s error: %+v\n", flag.Arg(0), err)
	}
}
