package main

import (
	"context"

	"agency/internal/pkg"

	"github.com/sirupsen/logrus"
)

// @title Agency Operations API
// @version 1.0
// @description Бэкенд учета заявок, начислений и выплат digital-агентства

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	logrus.Info("App start")

	app, err := pkg.NewApp(context.Background())
	if err != nil {
		logrus.Fatal("app init failed: ", err)
	}

	app.RunApp()
	logrus.Info("App terminated")
}
