package config

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

type DbConfig interface {
	GetConnectionString() string
	GetDriverName() string
}

// DatabaseConfig описывает подключение к postgres либо к локальному файлу sqlite.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
}

func (dc *DatabaseConfig) GetDriverName() string {
	return dc.Driver
}

func (dc *DatabaseConfig) GetConnectionString() string {
	if dc.Driver == DriverSQLite {
		return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", dc.Path)
	}
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		dc.Host, dc.Port, dc.User, dc.Password, dc.DBName)
}

func (dc *DatabaseConfig) Validate() error {
	return validation.ValidateStruct(dc,
		validation.Field(&dc.Driver, validation.Required, validation.In(DriverPostgres, DriverSQLite)),
		validation.Field(&dc.Path, validation.When(dc.Driver == DriverSQLite, validation.Required)),
		validation.Field(&dc.Host, validation.When(dc.Driver == DriverPostgres, validation.Required)),
		validation.Field(&dc.DBName, validation.When(dc.Driver == DriverPostgres, validation.Required)),
	)
}
