/*
 * EliasDB
 *
 * Copyright 2016 Matthias Ladkau. All rights reserved.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
eliasgraph runs a single query against a graph datastore.

Usage:

	eliasgraph [options] <query>

The datastore is configured with a JSON config file (created with default values
if it does not exist). Values of the config file can be overwritten with
ELIASGRAPH_* environment variables. A .env file in the working directory is
loaded before the environment is read.

Examples:

	eliasgraph "MATCH (p:Person) RETURN p.name ORDER BY p.name"
	eliasgraph -p '{"age": 30}' -f json "MATCH (p:Person) WHERE p.age > $age RETURN p"
	eliasgraph --explain "MATCH (p:Person {age: 42}) RETURN p"
	eliasgraph --checkpoint
*/
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
	"github.com/krotik/common/stringutil"
	"github.com/krotik/eliasgraph/config"
	"github.com/krotik/eliasgraph/engine"
	"github.com/krotik/eliasgraph/query/budget"
	flag "github.com/spf13/pflag"
)

/*
Exit codes of the runner
*/
const (
	ExitOK     = 0
	ExitUsage  = 1
	ExitConfig = 2
	ExitQuery  = 3
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

/*
run executes the runner with the given arguments and returns the exit code.
*/
func run(args []string, out io.Writer, errOut io.Writer) int {
	flags := flag.NewFlagSet("eliasgraph", flag.ContinueOnError)
	flags.SetOutput(errOut)

	configFile := flags.StringP("config", "c", config.DefaultConfigFile, "Config file of the datastore")
	params := flags.StringP("params", "p", "", "Query parameters as JSON object")
	preset := flags.StringP("budget", "b", "", "Budget preset of the query (default from config)")
	format := flags.StringP("format", "f", "table", "Output format: table, csv or json")
	explain := flags.Bool("explain", false, "Print the plan of the query instead of running it")
	checkpoint := flags.Bool("checkpoint", false, "Write a checkpoint after the query")
	indexes := flags.Bool("indexes", false, "List the defined indexes")

	flags.Usage = func() {
		fmt.Fprintln(errOut, "Usage: eliasgraph [options] <query>")
		fmt.Fprintln(errOut)
		flags.PrintDefaults()
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return ExitOK
		}
		return ExitUsage
	}

	text := strings.TrimSpace(strings.Join(flags.Args(), " "))

	if text == "" && !*checkpoint && !*indexes {
		flags.Usage()
		return ExitUsage
	}

	if *format != "table" && *format != "csv" && *format != "json" {
		fmt.Fprintf(errOut, "Error: unknown output format %v\n", *format)
		return ExitUsage
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(errOut, "Error: could not load .env file: %v\n", err)
		return ExitConfig
	}

	if err := config.LoadConfigFile(*configFile); err != nil {
		fmt.Fprintf(errOut, "Error: could not load config file %v: %v\n", *configFile, err)
		return ExitConfig
	}

	opts, err := engine.OptionsFromConfig()
	if err != nil {
		fmt.Fprintf(errOut, "Error: invalid configuration: %v\n", err)
		return ExitConfig
	}

	e, err := engine.Open(opts)
	if err != nil {
		fmt.Fprintf(errOut, "Error: could not open datastore: %v\n", err)
		return ExitConfig
	}

	defer func() {
		if err := e.Close(); err != nil {
			fmt.Fprintf(errOut, "Error: could not close datastore: %v\n", err)
		}
	}()

	if *indexes {
		tab := []string{"Name", "Kind", "Label", "Properties"}
		for _, spec := range e.Indexes() {
			tab = append(tab, spec.Name, string(spec.Kind), spec.Label, strings.Join(spec.Properties, ", "))
		}
		fmt.Fprint(out, stringutil.PrintStringTable(tab, 4))
	}

	if text != "" {
		if code := runQuery(e, text, *params, *preset, *format, *explain, out, errOut); code != ExitOK {
			return code
		}
	}

	if *checkpoint {
		cp, err := e.Checkpoint()
		if err != nil {
			fmt.Fprintf(errOut, "Error: checkpoint failed: %v\n", err)
			return ExitQuery
		}
		fmt.Fprintf(out, "Checkpoint written at LSN %v\n", cp.LSN)
	}

	return ExitOK
}

/*
runQuery explains or runs a query and prints its result.
*/
func runQuery(e *engine.Engine, text string, params string, preset string, format string,
	explain bool, out io.Writer, errOut io.Writer) int {

	if explain {
		plan, err := e.Explain(text)
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return ExitQuery
		}
		fmt.Fprint(out, plan)
		return ExitOK
	}

	values, err := parseParams(params)
	if err != nil {
		fmt.Fprintf(errOut, "Error: invalid parameters: %v\n", err)
		return ExitUsage
	}

	if preset == "" {
		preset = config.Str(config.DefaultBudget)
	}

	spec, err := budget.Preset(preset)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return ExitUsage
	}

	cur, err := e.RunQuery(text, values, spec)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return ExitQuery
	}

	res, err := cur.All()
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		return ExitQuery
	}

	switch format {
	case "csv":
		fmt.Fprint(out, res.CSV())
	case "json":
		data, err := json.Marshal(res)
		if err != nil {
			fmt.Fprintf(errOut, "Error: %v\n", err)
			return ExitQuery
		}
		var buf bytes.Buffer
		json.Indent(&buf, data, "", "  ")
		fmt.Fprintln(out, buf.String())
	default:
		fmt.Fprint(out, res.String())
	}

	return ExitOK
}

/*
parseParams decodes query parameters from a JSON object. Integral numbers are
passed as integers.
*/
func parseParams(params string) (map[string]interface{}, error) {
	var ret map[string]interface{}

	if params == "" {
		return nil, nil
	}

	dec := json.NewDecoder(strings.NewReader(params))
	dec.UseNumber()

	if err := dec.Decode(&ret); err != nil {
		return nil, err
	}

	for k, v := range ret {
		ret[k] = numbers(v)
	}

	return ret, nil
}

/*
numbers replaces json.Number values with int64 or float64 values.
*/
func numbers(v interface{}) interface{} {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		f, _ := val.Float64()
		return f
	case []interface{}:
		for i, e := range val {
			val[i] = numbers(e)
		}
	case map[string]interface{}:
		for k, e := range val {
			val[k] = numbers(e)
		}
	}
	return v
}
