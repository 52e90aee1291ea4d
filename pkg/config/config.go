// Package config загружает конфигурацию ядра интеграции: учётные данные,
// предпочтения, логирование и метрики.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emiago/sipgo/sip"

	"github.com/arzzra/phone_integration/pkg/logger"
)

// Config корневая конфигурация
type Config struct {
	Auth        Auth          `mapstructure:"auth" yaml:"auth"`
	Preferences Preferences   `mapstructure:"preferences" yaml:"preferences"`
	Log         logger.Config `mapstructure:"log" yaml:"log"`
	Metrics     Metrics       `mapstructure:"metrics" yaml:"metrics"`
}

// Auth учётные данные SIP аккаунта
type Auth struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
	Domain   string `mapstructure:"domain" yaml:"domain"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Secure   bool   `mapstructure:"secure" yaml:"secure"`
}

// Preferences поведение ядра
type Preferences struct {
	// RegistrationTimeout предельное время проверки регистрации
	RegistrationTimeout time.Duration `mapstructure:"registration_timeout" yaml:"registration_timeout"`
	// RefreshInterval период обновления уведомления о звонке
	RefreshInterval time.Duration `mapstructure:"refresh_interval" yaml:"refresh_interval"`
	// PhoneAccountHandle имя самоуправляемой учётной записи в ОС
	PhoneAccountHandle string `mapstructure:"phone_account_handle" yaml:"phone_account_handle"`
}

// Metrics HTTP эндпоинт Prometheus
type Metrics struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// DefaultPreferences значения предпочтений по умолчанию
func DefaultPreferences() Preferences {
	return Preferences{
		RegistrationTimeout: 10 * time.Second,
		RefreshInterval:     time.Second,
		PhoneAccountHandle:  "phone-integration",
	}
}

// Default возвращает конфигурацию по умолчанию (без учётных данных)
func Default() Config {
	return Config{
		Auth:        Auth{Port: 5060},
		Preferences: DefaultPreferences(),
		Log:         logger.DefaultConfig(),
		Metrics: Metrics{
			Listen: ":9090",
			Path:   "/metrics",
		},
	}
}

var (
	errEmptyUsername = errors.New("username is empty")
	errEmptyPassword = errors.New("password is empty")
	errEmptyDomain   = errors.New("domain is empty")
)

// Validate проверяет учётные данные
func (a Auth) Validate() error {
	switch {
	case strings.TrimSpace(a.Username) == "":
		return errEmptyUsername
	case a.Password == "":
		return errEmptyPassword
	case strings.TrimSpace(a.Domain) == "":
		return errEmptyDomain
	case a.Port < 0 || a.Port > 65535:
		return fmt.Errorf("port %d out of range", a.Port)
	}
	if _, err := a.RegistrarURI(); err != nil {
		return err
	}
	return nil
}

// IsValid сообщает, что учётные данные пригодны для регистрации
func (a Auth) IsValid() bool {
	return a.Validate() == nil
}

// RegistrarURI строит адрес регистрации (AOR) вида sip:user@domain:port
func (a Auth) RegistrarURI() (sip.Uri, error) {
	scheme := "sip"
	if a.Secure {
		scheme = "sips"
	}
	raw := fmt.Sprintf("%s:%s@%s", scheme, a.Username, a.Domain)
	if a.Port > 0 {
		raw = fmt.Sprintf("%s:%d", raw, a.Port)
	}

	var uri sip.Uri
	if err := sip.ParseUri(raw, &uri); err != nil {
		return sip.Uri{}, fmt.Errorf("invalid registrar uri %q: %w", raw, err)
	}
	return uri, nil
}

// Masked возвращает копию без пароля, пригодную для вывода
func (a Auth) Masked() Auth {
	if a.Password != "" {
		a.Password = "******"
	}
	return a
}
