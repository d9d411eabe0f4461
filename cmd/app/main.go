package main

import (
	_ "time/tzdata"

	"github.com/sirupsen/logrus"

	"github.com/Kodanda10/iConnect-sub000/config"
	"github.com/Kodanda10/iConnect-sub000/internal/appServer"
)

func main() {
	v, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	cfg, err := config.ParseConfig(v)
	if err != nil {
		logrus.Fatalf("failed to parse config: %v", err)
	}

	appServer.NewServer(cfg)
}
