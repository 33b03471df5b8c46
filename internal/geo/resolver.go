package geo

import (
	"fmt"
	"net"
	"sync"

	"github.com/oschwald/geoip2-golang"
	"go.uber.org/zap"
)

// Resolver определяет страну адреса назначения по локальной базе MaxMind.
// Внешних API нет: адреса соединений устройства никуда не уходят.
// nil Resolver и Resolver без базы безопасны и возвращают "".
type Resolver struct {
	db     *geoip2.Reader
	cache  sync.Map // map[string]string
	logger *zap.Logger
}

// NewResolver открывает базу. Пустой путь — обогащение выключено, это не ошибка.
func NewResolver(dbPath string, logger *zap.Logger) (*Resolver, error) {
	r := &Resolver{logger: logger.With(zap.String("mod", "geo"))}
	if dbPath == "" {
		return r, nil
	}

	db, err := geoip2.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("geo: open %s: %w", dbPath, err)
	}
	r.db = db
	return r, nil
}

func (r *Resolver) Enabled() bool { return r != nil && r.db != nil }

func (r *Resolver) Close() error {
	if !r.Enabled() {
		return nil
	}
	return r.db.Close()
}

// Country — ISO код страны ("US") или "", если база выключена или адрес не найден.
func (r *Resolver) Country(ipStr string) string {
	if !r.Enabled() {
		return ""
	}
	if v, ok := r.cache.Load(ipStr); ok {
		return v.(string)
	}

	ip := net.ParseIP(ipStr)
	if ip == nil {
		return ""
	}

	var code string
	record, err := r.db.Country(ip)
	if err != nil {
		r.logger.Debug("geo lookup failed", zap.String("ip", ipStr), zap.Error(err))
	} else {
		code = record.Country.IsoCode
	}

	r.cache.Store(ipStr, code)
	return code
}
