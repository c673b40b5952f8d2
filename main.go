package main

import (
	"github.com/sirupsen/logrus"

	"github.com/nicholas-fedor/docker-monitor/cmd"
)

func init() {
	logrus.SetLevel(logrus.InfoLevel)
}

func main() {
	cmd.Execute()
}
