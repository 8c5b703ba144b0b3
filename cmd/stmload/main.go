package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"github.com/meltpond/stm/pkg/common"
)

var (
	configPath = flag.String("config", "", "path of the workload config file")
	scenario   = flag.String("scenario", "", "scenario override: counter, transfer or pingpong")
	logLevel   = flag.String("loglevel", "", "the level of log")
)

func main() {
	flag.Parse()
	conf := common.NewDefaultLoadConfig()

	if *configPath != "" {
		conf.LoadFromFile(*configPath)
	}
	if *scenario != "" {
		conf.Scenario = *scenario
	}
	if *logLevel != "" {
		conf.LogLevel = *logLevel
	}

	err := conf.Validate()
	if err != nil {
		log.Fatalf("%v", err)
	}
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		log.Fatalf("%v", err)
	}
	log.SetLevel(lvl)

	runScenario(conf)
}
