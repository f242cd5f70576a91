package main

import (
	"flag"
	"strconv"
)

var (
	flagConfigFile string
	flagDB         bool

	flagCreateHead, flagCheckpoint, flagForceSnapshot bool
	flagTick                                          uint64

	flagLoad, flagDelete, flagChain, flagRenderChain        uint64
	flagHaveLoad, flagHaveDelete, flagHaveChain, flagHaveRC bool

	flagList, flagStats bool

	flagIntervalFile       string
	flagIntervalQuery      uint64
	flagHaveIntervalQuery  bool

	flagServer    bool
	flagLogLevel  string
)

func parseUint(s string, out *uint64) error {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return err
	}
	*out = v
	return nil
}

func cliInit() {
	flag.StringVar(&flagConfigFile, "config", "./config.json", "Path to `config.json`; missing file uses built-in defaults")
	flag.BoolVar(&flagDB, "db", false, "Enable the database offload overlay backed by internal/ckptdb")
	flag.BoolVar(&flagCreateHead, "create-head", false, "Create the head checkpoint from the toy simulator's current state")
	flag.BoolVar(&flagCheckpoint, "checkpoint", false, "Create a checkpoint at the current simulator tick (set with -tick)")
	flag.BoolVar(&flagForceSnapshot, "snapshot", false, "Force the next -checkpoint to be stored as a full snapshot")
	flag.Uint64Var(&flagTick, "tick", 0, "Simulator tick to advance to before -checkpoint")
	flag.Func("load", "Restore the simulator to checkpoint `id`", func(v string) error { flagHaveLoad = true; return parseUint(v, &flagLoad) })
	flag.Func("delete", "Tombstone checkpoint `id`", func(v string) error { flagHaveDelete = true; return parseUint(v, &flagDelete) })
	flag.Func("chain", "Print the ancestry chain of checkpoint `id`", func(v string) error { flagHaveChain = true; return parseUint(v, &flagChain) })
	flag.Func("render-chain", "Pretty-print the ancestry chain of checkpoint `id`", func(v string) error { flagHaveRC = true; return parseUint(v, &flagRenderChain) })
	flag.BoolVar(&flagList, "list", false, "List every live checkpoint id")
	flag.BoolVar(&flagStats, "stats", false, "Print total stored bytes across all stored checkpoints, tombstoned ones included")
	flag.StringVar(&flagIntervalFile, "interval-file", "", "Prefix of a record.bin/index.bin pair to query with -interval-query")
	flag.Func("interval-query", "Stabbing-query the interval file named by -interval-file at tick `t`", func(v string) error {
		flagHaveIntervalQuery = true
		return parseUint(v, &flagIntervalQuery)
	})
	flag.BoolVar(&flagServer, "server", false, "After handling the flags above, keep running periodic maintenance until SIGINT/SIGTERM")
	flag.StringVar(&flagLogLevel, "loglevel", "info", "Sets the logging level: `[debug, info, warn, err]`")
	flag.Parse()
}
