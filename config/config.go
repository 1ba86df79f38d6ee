package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Debug            bool   `envconfig:"debug"`
	Port             int    `envconfig:"port" default:"8080"`
	Env              string `envconfig:"env"`
	Host             string `envconfig:"host"`
	PostgresHost     string `envconfig:"postgres_host"`
	PostgresUser     string `envconfig:"postgres_user"`
	PostgresPassword string `envconfig:"postgres_password"`
	PostgresDB       string `envconfig:"postgres_db"`
	PostgresPort     int    `envconfig:"postgres_port"`
	RedisAddr        string `envconfig:"redis_addr" default:"localhost:6379"`
	RedisPassword    string `envconfig:"redis_password"`
	RedisDB          int    `envconfig:"redis_db"`
	JWTSecret        string `envconfig:"jwt_secret"`
	AWSRegion        string `envconfig:"aws_region"`
	AWSBucket        string `envconfig:"aws_bucket"`
	AWSAccessKeyID   string `envconfig:"aws_access_key_id"`
	AWSSecretKey     string `envconfig:"aws_secret_access_key"`
	FirebaseCredFile string `envconfig:"firebase_cred_file"`
	BaseUrl          string `envconfig:"base_url"`
}

func Load() (*Config, error) {
	env := os.Getenv("GIN_MODE")
	if env != "release" {
		if err := godotenv.Load("./.env"); err != nil {
			log.Printf("couldn't load env vars: %v", err)
		}
	}

	c := &Config{}
	err := envconfig.Process("chatly", c)
	if err != nil {
		return nil, err
	}
	return c, nil
}
