package main

import (
	"errors"
	"flag"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/kohlab/pyeongga/core/evaluation"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db       *sqlx.DB
	evalRepo evaluation.Repository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate                                  - apply pending database migrations")
	fmt.Println("  seed -evaluatee ID -name NAME [-level N] - seed a demo evaluation for an evaluatee")
	fmt.Println("  report -evaluatee ID                     - print the evaluatee's score report")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedCmd := flag.NewFlagSet("seed", flag.ExitOnError)
	seedEvaluatee := seedCmd.String("evaluatee", "", "The evaluatee's id.")
	seedName := seedCmd.String("name", "", "The evaluatee's display name.")
	seedLevel := seedCmd.Int("level", 1, "The evaluatee's growth level (1-4).")

	reportCmd := flag.NewFlagSet("report", flag.ExitOnError)
	reportEvaluatee := reportCmd.String("evaluatee", "", "The evaluatee's id.")

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *seedEvaluatee == "" || *seedName == "" {
			seedCmd.Usage()
			return errHelp
		}
		return cli.seed(*seedEvaluatee, *seedName, *seedLevel)
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *reportEvaluatee == "" {
			reportCmd.Usage()
			return errHelp
		}
		return cli.report(*reportEvaluatee)
	default:
		cli.printUsage()
		return errHelp
	}
}
