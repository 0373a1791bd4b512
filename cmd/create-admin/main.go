package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/coinbot/backend/internal/config"
	"github.com/coinbot/backend/internal/database"
	"github.com/coinbot/backend/internal/logger"
	"github.com/coinbot/backend/internal/services"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// create-admin provisions an operator for the admin API.
//
//	create-admin -username root -password secret123 -name "Ops"
func main() {
	username := flag.String("username", "", "admin login name")
	password := flag.String("password", "", "admin password (min 6 characters)")
	name := flag.String("name", "", "display name")
	flag.Parse()

	if *username == "" || *password == "" {
		flag.Usage()
		os.Exit(2)
	}

	viper.SetConfigFile(".env")
	viper.SetConfigType("env")
	viper.AutomaticEnv()
	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")
	viper.ReadInConfig()

	log := logger.Must(false)
	defer log.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := database.InitDatabase(ctx, log)
	defer db.Close()

	auth := services.NewAuthService(db, nil, config.LoadAuthConfig(), log)
	admin, err := auth.CreateAdmin(ctx, *username, *password, *name)
	if err != nil {
		log.Fatal("failed to create admin", zap.Error(err))
	}
	fmt.Printf("created admin %q (id %d)\n", admin.Username, admin.ID)
}
