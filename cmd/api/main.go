package main

import "akimat/internal/app"

// @title                       Akimat API
// @version                     1.0
// @description                 Учёт обращений акимата: вход по ЭЦП (NCANode), регистрация и управление пользователями.
// @BasePath                    /
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
func main() {
	app.Run()
}
